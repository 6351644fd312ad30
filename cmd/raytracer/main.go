package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// options holds the parsed command line
type options struct {
	sceneName  string
	sceneFile  string
	width      int
	samples    int
	depth      int
	passes     int
	workers    int
	tileSize   int
	seed       int64
	checkpoint string
	resume     bool
	out        string
	saveScene  string
	help       bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	if opts.help {
		printHelp(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, renderer.NewDefaultLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet registers every command line flag, storing values into opts
func newFlagSet(opts *options, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("raytracer", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.sceneName, "scene", "default", "Built-in scene: "+strings.Join(scene.Names(), ", "))
	fs.StringVar(&opts.sceneFile, "scene-file", "", "Load the scene from a JSON file instead of a built-in scene")
	fs.IntVar(&opts.width, "width", 0, "Image width in pixels (0 = scene default)")
	fs.IntVar(&opts.samples, "samples", 0, "Samples per pixel (0 = scene default)")
	fs.IntVar(&opts.depth, "depth", 0, "Maximum bounce depth (0 = scene default)")
	fs.IntVar(&opts.passes, "passes", 5, "Number of progressive passes")
	fs.IntVar(&opts.workers, "workers", 0, "Number of parallel workers (0 = CPU count)")
	fs.IntVar(&opts.tileSize, "tile", 64, "Tile size in pixels")
	fs.Int64Var(&opts.seed, "seed", 42, "Random seed for the scene and the sampler")
	fs.StringVar(&opts.checkpoint, "checkpoint", "", "Write a checkpoint after every pass (.zst or .sz)")
	fs.BoolVar(&opts.resume, "resume", false, "Resume from the -checkpoint file if it exists")
	fs.StringVar(&opts.out, "out", "", "Output PNG path (default output/<scene>/render_<timestamp>.png)")
	fs.StringVar(&opts.saveScene, "save-scene", "", "Write the scene as JSON to this path")
	fs.BoolVar(&opts.help, "help", false, "Show help information")

	return fs
}

// parseFlags parses the command line into options. Zero values mean "use the scene's recommendation".
func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	if err := newFlagSet(&opts, output).Parse(args); err != nil {
		return options{}, err
	}
	if opts.resume && opts.checkpoint == "" {
		fmt.Fprintln(output, "-resume requires -checkpoint")
		return options{}, errors.New("-resume requires -checkpoint")
	}
	return opts, nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Progressive Path Tracer")
	fmt.Fprintln(w, "Usage: raytracer [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	var discard options
	newFlagSet(&discard, w).PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Available scenes:")
	for _, info := range scene.ListScenes() {
		fmt.Fprintf(w, "  %-8s - %s\n", info.ID, info.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output will be saved to output/<scene>/render_<timestamp>.png unless -out is given")
}

// createScene loads the scene file if one is given, otherwise builds the named built-in scene
func createScene(opts options) (*scene.Scene, error) {
	if opts.sceneFile != "" {
		return scene.Load(opts.sceneFile)
	}
	return scene.New(opts.sceneName, opts.seed)
}

// applyOverrides replaces the scene's recommended sampling settings with any given on the command line
func applyOverrides(s *scene.Scene, opts options) {
	if opts.width > 0 {
		s.SamplingConfig.Width = opts.width
		s.SamplingConfig.Height = scene.HeightForWidth(opts.width, s.CameraConfig.AspectRatio)
	}
	if opts.samples > 0 {
		s.SamplingConfig.SamplesPerPixel = opts.samples
	}
	if opts.depth > 0 {
		s.SamplingConfig.MaxDepth = opts.depth
	}
}

// outputPath returns where the final image is written
func outputPath(opts options, now time.Time) string {
	if opts.out != "" {
		return opts.out
	}
	name := opts.sceneName
	if opts.sceneFile != "" {
		name = strings.TrimSuffix(filepath.Base(opts.sceneFile), filepath.Ext(opts.sceneFile))
	}
	return filepath.Join("output", name, fmt.Sprintf("render_%s.png", now.Format("20060102_150405")))
}

func run(ctx context.Context, opts options, logger core.Logger) error {
	logger.Printf("Starting Progressive Path Tracer...\n")

	s, err := createScene(opts)
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}
	applyOverrides(s, opts)

	if opts.saveScene != "" {
		if err := scene.Save(opts.saveScene, s); err != nil {
			return fmt.Errorf("failed to save scene: %w", err)
		}
		logger.Printf("Scene saved as %s\n", opts.saveScene)
	}

	width, height := s.SamplingConfig.Width, s.SamplingConfig.Height
	logger.Printf("Rendering %dx%d, %d samples, depth %d, %d spheres\n",
		width, height, s.SamplingConfig.SamplesPerPixel, s.SamplingConfig.MaxDepth, s.GetPrimitiveCount())

	config := renderer.ProgressiveConfig{
		TileSize:           opts.tileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: s.SamplingConfig.SamplesPerPixel,
		MaxPasses:          opts.passes,
		NumWorkers:         opts.workers,
		Seed:               opts.seed,
	}
	pr := renderer.NewProgressiveRaytracer(s, width, height, config, logger)

	if opts.resume {
		if err := resume(pr, opts.checkpoint, logger); err != nil {
			return err
		}
	}

	startTime := time.Now()
	passChan, _, errChan := pr.RenderProgressive(ctx, renderer.RenderOptions{CheckpointPath: opts.checkpoint})

	var last *image.RGBA
	var stats renderer.RenderStats
	for pass := range passChan {
		last = pass.Image
		stats = pass.Stats
	}
	if err := <-errChan; err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if last == nil {
		logger.Printf("Checkpoint already holds a finished render, nothing to do\n")
		return nil
	}

	logger.Printf("Render completed in %v\n", time.Since(startTime))
	logger.Printf("Samples per pixel: %.1f (range %d - %d)\n",
		stats.AverageSamples, stats.MinSamples, stats.MaxSamplesUsed)

	filename := outputPath(opts, time.Now())
	if err := writePNG(filename, last); err != nil {
		return err
	}
	logger.Printf("Render saved as %s\n", filename)
	return nil
}

// resume restores a checkpoint when the file exists; a missing file starts a fresh render
func resume(pr *renderer.ProgressiveRaytracer, path string, logger core.Logger) error {
	cp, err := renderer.LoadCheckpoint(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Printf("No checkpoint at %s, starting fresh\n", path)
		return nil
	}
	if err != nil {
		return err
	}
	return pr.Restore(cp)
}

func writePNG(filename string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return file.Close()
}
