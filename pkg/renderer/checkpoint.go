package renderer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrBadCheckpoint is returned when a checkpoint file is corrupt or not a checkpoint
	ErrBadCheckpoint = errors.New("bad checkpoint")
	// ErrCheckpointMismatch is returned when a checkpoint belongs to a different render
	ErrCheckpointMismatch = errors.New("checkpoint does not match render")
)

const (
	checkpointMagic   = "PTCK"
	checkpointVersion = 2

	// Upper bounds accepted from a checkpoint header
	maxCheckpointDimension = 1 << 15
	maxCheckpointPixels    = 1 << 26
)

// Codec selects the compression used for a checkpoint payload
type Codec uint8

const (
	CodecZstd   Codec = 0 // Default, smaller files
	CodecSnappy Codec = 1 // Faster, used for ".sz" files
)

// CodecForPath picks the codec from the file extension
func CodecForPath(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), ".sz") {
		return CodecSnappy
	}
	return CodecZstd
}

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Checkpoint is a snapshot of the accumulated pixel statistics after a completed pass.
// Besides the pixels it records everything that decides which samples the
// remaining passes draw, so a resumed render only continues an identical one.
type Checkpoint struct {
	Width          int
	Height         int
	TileSize       int
	Seed           int64
	InitialSamples int
	MaxSamples     int // MaxSamplesPerPixel of the render
	MaxPasses      int
	SceneHash      uint64 // scene.Fingerprint of the rendered scene
	Pass           int    // Last completed pass
	Pixels         [][]PixelStats
}

type checkpointHeader struct {
	Width          int32
	Height         int32
	TileSize       int32
	Pass           int32
	InitialSamples int32
	MaxSamples     int32
	MaxPasses      int32
	Seed           int64
	SceneHash      uint64
}

type pixelRecord struct {
	R, G, B float64
	Count   int32
}

// Checkpoint returns a copy of the current render state
func (pr *ProgressiveRaytracer) Checkpoint() *Checkpoint {
	pixels := newPixelGrid(pr.width, pr.height)
	for y := range pr.pixelStats {
		copy(pixels[y], pr.pixelStats[y])
	}
	return &Checkpoint{
		Width:          pr.width,
		Height:         pr.height,
		TileSize:       pr.config.TileSize,
		Seed:           pr.config.Seed,
		InitialSamples: pr.config.InitialSamples,
		MaxSamples:     pr.config.MaxSamplesPerPixel,
		MaxPasses:      pr.config.MaxPasses,
		SceneHash:      pr.sceneHash,
		Pass:           pr.currentPass,
		Pixels:         pixels,
	}
}

// Restore loads a checkpoint taken from an identical render, so the next
// pass continues where the checkpoint left off. It must be called before rendering starts.
func (pr *ProgressiveRaytracer) Restore(cp *Checkpoint) error {
	switch {
	case cp.Width != pr.width || cp.Height != pr.height:
		return fmt.Errorf("%w: image is %dx%d, checkpoint is %dx%d", ErrCheckpointMismatch, pr.width, pr.height, cp.Width, cp.Height)
	case cp.Seed != pr.config.Seed:
		return fmt.Errorf("%w: seed %d, checkpoint seed %d", ErrCheckpointMismatch, pr.config.Seed, cp.Seed)
	case cp.TileSize != pr.config.TileSize:
		return fmt.Errorf("%w: tile size %d, checkpoint tile size %d", ErrCheckpointMismatch, pr.config.TileSize, cp.TileSize)
	case cp.InitialSamples != pr.config.InitialSamples || cp.MaxSamples != pr.config.MaxSamplesPerPixel || cp.MaxPasses != pr.config.MaxPasses:
		return fmt.Errorf("%w: schedule %d..%d samples in %d passes, checkpoint has %d..%d in %d",
			ErrCheckpointMismatch, pr.config.InitialSamples, pr.config.MaxSamplesPerPixel, pr.config.MaxPasses,
			cp.InitialSamples, cp.MaxSamples, cp.MaxPasses)
	case cp.SceneHash != pr.sceneHash:
		return fmt.Errorf("%w: checkpoint was taken from a different scene", ErrCheckpointMismatch)
	case cp.Pass > pr.config.MaxPasses:
		return fmt.Errorf("%w: checkpoint is at pass %d of %d", ErrCheckpointMismatch, cp.Pass, pr.config.MaxPasses)
	case len(cp.Pixels) != pr.height:
		return fmt.Errorf("%w: checkpoint holds %d rows, expected %d", ErrBadCheckpoint, len(cp.Pixels), pr.height)
	}

	for y := range pr.pixelStats {
		copy(pr.pixelStats[y], cp.Pixels[y])
	}
	for _, tile := range pr.tiles {
		tile.PassesCompleted = cp.Pass
	}
	pr.currentPass = cp.Pass

	pr.logger.Printf("Resumed from checkpoint after pass %d\n", cp.Pass)
	return nil
}

// SaveCheckpoint writes the checkpoint to path, compressed with the codec chosen by its extension.
// The file is replaced atomically.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}

	if err := WriteCheckpoint(f, cp, CodecForPath(path)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer f.Close()

	return ReadCheckpoint(f)
}

// WriteCheckpoint encodes the checkpoint to w. The magic, version and codec
// are written uncompressed, followed by the compressed header and pixels.
func WriteCheckpoint(w io.Writer, cp *Checkpoint, codec Codec) error {
	if _, err := io.WriteString(w, checkpointMagic); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if _, err := w.Write([]byte{checkpointVersion, byte(codec)}); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	var stream io.WriteCloser
	switch codec {
	case CodecSnappy:
		stream = snappy.NewBufferedWriter(w)
	case CodecZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		stream = enc
	default:
		return fmt.Errorf("unsupported checkpoint codec %v", codec)
	}

	if err := writePayload(stream, cp); err != nil {
		stream.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to flush %v stream: %w", codec, err)
	}
	return nil
}

func writePayload(w io.Writer, cp *Checkpoint) error {
	buf := bufio.NewWriter(w)
	header := checkpointHeader{
		Width:          int32(cp.Width),
		Height:         int32(cp.Height),
		TileSize:       int32(cp.TileSize),
		Pass:           int32(cp.Pass),
		InitialSamples: int32(cp.InitialSamples),
		MaxSamples:     int32(cp.MaxSamples),
		MaxPasses:      int32(cp.MaxPasses),
		Seed:           cp.Seed,
		SceneHash:      cp.SceneHash,
	}
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return err
	}

	row := make([]pixelRecord, cp.Width)
	for y := 0; y < cp.Height; y++ {
		for x, ps := range cp.Pixels[y] {
			row[x] = pixelRecord{R: ps.ColorAccum.X, G: ps.ColorAccum.Y, B: ps.ColorAccum.Z, Count: int32(ps.SampleCount)}
		}
		if err := binary.Write(buf, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// ReadCheckpoint decodes a checkpoint from r. The codec is taken from the stream, not the file name.
func ReadCheckpoint(r io.Reader) (*Checkpoint, error) {
	prefix := make([]byte, len(checkpointMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	if string(prefix[:len(checkpointMagic)]) != checkpointMagic {
		return nil, fmt.Errorf("%w: missing magic", ErrBadCheckpoint)
	}
	if version := prefix[len(checkpointMagic)]; version != checkpointVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadCheckpoint, version)
	}

	codec := Codec(prefix[len(checkpointMagic)+1])
	var stream io.Reader
	switch codec {
	case CodecSnappy:
		stream = snappy.NewReader(r)
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
		}
		defer dec.Close()
		stream = dec
	default:
		return nil, fmt.Errorf("%w: unknown codec %v", ErrBadCheckpoint, codec)
	}

	cp, err := readPayload(bufio.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	return cp, nil
}

func readPayload(r io.Reader) (*Checkpoint, error) {
	var header checkpointHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Width <= 0 || header.Height <= 0 ||
		header.Width > maxCheckpointDimension || header.Height > maxCheckpointDimension ||
		int64(header.Width)*int64(header.Height) > maxCheckpointPixels {
		return nil, fmt.Errorf("implausible image size %dx%d", header.Width, header.Height)
	}
	if header.Pass < 0 {
		return nil, fmt.Errorf("negative pass %d", header.Pass)
	}

	cp := &Checkpoint{
		Width:          int(header.Width),
		Height:         int(header.Height),
		TileSize:       int(header.TileSize),
		Seed:           header.Seed,
		InitialSamples: int(header.InitialSamples),
		MaxSamples:     int(header.MaxSamples),
		MaxPasses:      int(header.MaxPasses),
		SceneHash:      header.SceneHash,
		Pass:           int(header.Pass),
	}

	// Rows are allocated as they arrive so a lying header costs at most one row
	row := make([]pixelRecord, cp.Width)
	for y := 0; y < cp.Height; y++ {
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, err
		}
		pixels := make([]PixelStats, cp.Width)
		for x, rec := range row {
			ps := &pixels[x]
			ps.ColorAccum.X, ps.ColorAccum.Y, ps.ColorAccum.Z = rec.R, rec.G, rec.B
			ps.SampleCount = int(rec.Count)
		}
		cp.Pixels = append(cp.Pixels, pixels)
	}
	return cp, nil
}
