package renderer

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize           int   // Size of each tile (64x64 recommended)
	InitialSamples     int   // Samples for first pass (1 recommended)
	MaxSamplesPerPixel int   // Maximum total samples per pixel
	MaxPasses          int   // Maximum number of passes
	NumWorkers         int   // Number of parallel workers (0 = use CPU count)
	Seed               int64 // Base seed; the same seed gives the same image
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:           64,
		InitialSamples:     1,
		MaxSamplesPerPixel: 50,
		MaxPasses:          7, // 1, then six even steps up to the maximum
		NumWorkers:         0, // Auto-detect CPU count
		Seed:               42,
	}
}

// normalized fills in unusable values so the pass schedule is always well defined
func (c ProgressiveConfig) normalized() ProgressiveConfig {
	if c.TileSize <= 0 {
		c.TileSize = 64
	}
	if c.InitialSamples <= 0 {
		c.InitialSamples = 1
	}
	if c.MaxSamplesPerPixel < c.InitialSamples {
		c.MaxSamplesPerPixel = c.InitialSamples
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 1
	}
	return c
}

// ProgressiveRaytracer manages progressive rendering with multiple passes
type ProgressiveRaytracer struct {
	scene         *scene.Scene
	width, height int
	config        ProgressiveConfig
	tiles         []*Tile        // Tile management
	currentPass   int            // Last completed pass
	pixelStats    [][]PixelStats // Shared pixel statistics array (global image coordinates)
	workerPool    *WorkerPool    // Worker pool for parallel processing
	logger        core.Logger    // Logger for rendering output
	sceneHash     uint64         // Identifies the scene in checkpoints
}

// NewProgressiveRaytracer creates a new progressive raytracer
func NewProgressiveRaytracer(s *scene.Scene, width, height int, config ProgressiveConfig, logger core.Logger) *ProgressiveRaytracer {
	config = config.normalized()
	if logger == nil {
		logger = NewDefaultLogger()
	}

	tiles := NewTileGrid(width, height, config.TileSize)

	sceneHash, err := scene.Fingerprint(s)
	if err != nil {
		logger.Printf("Warning: scene cannot be fingerprinted, checkpoints will not detect scene changes: %v\n", err)
	}

	return &ProgressiveRaytracer{
		scene:      s,
		width:      width,
		height:     height,
		config:     config,
		tiles:      tiles,
		pixelStats: newPixelGrid(width, height),
		workerPool: NewWorkerPool(s, width, height, len(tiles), config.NumWorkers),
		logger:     logger,
		sceneHash:  sceneHash,
	}
}

// Config returns the effective configuration
func (pr *ProgressiveRaytracer) Config() ProgressiveConfig {
	return pr.config
}

// CurrentPass returns the number of the last completed pass
func (pr *ProgressiveRaytracer) CurrentPass() int {
	return pr.currentPass
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *ProgressiveRaytracer) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// For multiple passes: first pass is quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// For the final pass, use all remaining samples
	if passNumber >= pr.config.MaxPasses {
		return pr.config.MaxSamplesPerPixel
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	samplesPerPass := remainingSamples / (pr.config.MaxPasses - 1)

	return pr.config.InitialSamples + (passNumber-1)*samplesPerPass
}

// tileSeed derives the sampler seed for one tile in one pass, so the image
// does not depend on which worker renders which tile
func tileSeed(seed int64, tileID, pass int) int64 {
	z := uint64(seed) + uint64(tileID+1)*0x9E3779B97F4A7C15 + uint64(pass)*0xD1B54A32D192ED03
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

// RenderPass renders a single progressive pass using parallel processing
func (pr *ProgressiveRaytracer) RenderPass(passNumber int, tileCallback func(TileCompletionResult)) (*image.RGBA, RenderStats, error) {
	targetSamples := pr.getSamplesForPass(passNumber)

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	pr.workerPool.Start()

	for taskID, tile := range pr.tiles {
		pr.workerPool.SubmitTask(TileTask{
			Tile:          tile,
			PassNumber:    passNumber,
			TargetSamples: targetSamples,
			TaskID:        taskID,
			Seed:          tileSeed(pr.config.Seed, tile.ID, passNumber),
			PixelStats:    pr.pixelStats,
		})
	}

	// Collect results; callbacks run on this goroutine only
	var firstErr error
	for i := 0; i < len(pr.tiles); i++ {
		result, ok := pr.workerPool.GetResult()
		if !ok {
			return nil, RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}

		tile := pr.tiles[result.TaskID]
		tile.PassesCompleted++

		if tileCallback != nil && firstErr == nil {
			tileCallback(TileCompletionResult{
				TileX:      tile.Bounds.Min.X / pr.config.TileSize,
				TileY:      tile.Bounds.Min.Y / pr.config.TileSize,
				TileImage:  pr.extractTileImage(tile),
				PassNumber: passNumber,

				TileNumber:  i + 1,
				TotalTiles:  len(pr.tiles),
				TotalPasses: pr.config.MaxPasses,
			})
		}
	}
	if firstErr != nil {
		return nil, RenderStats{}, firstErr
	}

	pr.currentPass = passNumber
	img, stats := pr.assembleCurrentImage(targetSamples)

	return img, stats, nil
}

// extractTileImage extracts a tile image from the shared pixel stats array
func (pr *ProgressiveRaytracer) extractTileImage(tile *Tile) *image.RGBA {
	bounds := tile.Bounds
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			stats := &pr.pixelStats[y][x]
			if stats.SampleCount > 0 {
				tileImage.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, Vec3ToColor(stats.GetColor()))
			}
		}
	}

	return tileImage
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *image.RGBA
	Stats      RenderStats
	IsLast     bool
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX      int // Tile coordinates (not pixel coordinates)
	TileY      int
	TileImage  *image.RGBA // Image data for just this tile
	PassNumber int         // Which pass this tile was rendered in

	// Progress information
	TileNumber  int // Current tile number in this pass (1-based)
	TotalTiles  int // Total number of tiles in the image
	TotalPasses int // Total number of passes planned
}

// RenderOptions configures progressive rendering behavior
type RenderOptions struct {
	TileUpdates    bool   // Whether to generate tile completion events
	CheckpointPath string // When set, a checkpoint is written after every pass
}

// RenderProgressive renders with channel-based communication.
// Returns channels for events. The caller should read from these channels in separate goroutines.
// If options.TileUpdates is false, the tile channel will be closed immediately and no tile events will be generated.
// Rendering resumes after the last completed pass, so a restored checkpoint is continued rather than redone.
func (pr *ProgressiveRaytracer) RenderProgressive(ctx context.Context, options RenderOptions) (<-chan PassResult, <-chan TileCompletionResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	tileChan := make(chan TileCompletionResult, 100) // Buffer for tiles
	errChan := make(chan error, 1)

	if !options.TileUpdates {
		close(tileChan)
	}

	go func() {
		defer close(passChan)
		if options.TileUpdates {
			defer close(tileChan)
		}
		defer close(errChan)
		defer pr.workerPool.Stop()

		firstPass := pr.currentPass + 1
		pr.logger.Printf("Starting progressive rendering with %d passes...\n", pr.config.MaxPasses-pr.currentPass)

		for pass := firstPass; pass <= pr.config.MaxPasses; pass++ {
			// Check if client disconnected before starting this pass
			select {
			case <-ctx.Done():
				pr.logger.Printf("Rendering cancelled before pass %d\n", pass)
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()

			var tileCallback func(TileCompletionResult)
			if options.TileUpdates {
				tileCallback = func(result TileCompletionResult) {
					select {
					case tileChan <- result:
					case <-ctx.Done():
					default:
						// Channel full; the pass image carries the same pixels
					}
				}
			}

			img, stats, err := pr.RenderPass(pass, tileCallback)
			if err != nil {
				errChan <- err
				return
			}

			actualSamples := int(stats.AverageSamples)
			pr.logger.Printf("Pass %d completed in %v (actual: %d samples/pixel)\n",
				pass, time.Since(startTime), actualSamples)

			if options.CheckpointPath != "" {
				if err := SaveCheckpoint(options.CheckpointPath, pr.Checkpoint()); err != nil {
					pr.logger.Printf("Warning: failed to write checkpoint: %v\n", err)
				}
			}

			isLast := pass == pr.config.MaxPasses || actualSamples >= pr.config.MaxSamplesPerPixel
			select {
			case passChan <- PassResult{PassNumber: pass, Image: img, Stats: stats, IsLast: isLast}:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if isLast {
				break
			}
		}
	}()

	return passChan, tileChan, errChan
}

// assembleCurrentImage creates an image from the current state of the shared pixel stats
// and calculates render statistics in a single pass
func (pr *ProgressiveRaytracer) assembleCurrentImage(targetSamples int) (*image.RGBA, RenderStats) {
	img := image.NewRGBA(image.Rect(0, 0, pr.width, pr.height))

	stats := RenderStats{
		TotalPixels: pr.width * pr.height,
		MaxSamples:  targetSamples,
		MinSamples:  math.MaxInt,
	}

	for y := 0; y < pr.height; y++ {
		for x := 0; x < pr.width; x++ {
			pixel := &pr.pixelStats[y][x]
			img.SetRGBA(x, y, Vec3ToColor(pixel.GetColor()))

			stats.TotalSamples += pixel.SampleCount
			stats.MinSamples = min(stats.MinSamples, pixel.SampleCount)
			stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, pixel.SampleCount)
		}
	}

	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	} else {
		stats.MinSamples = 0
	}

	return img, stats
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []*Tile {
	var tiles []*Tile

	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, &Tile{ID: len(tiles), Bounds: image.Rect(x0, y0, x1, y1)})
		}
	}

	return tiles
}
