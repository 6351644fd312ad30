package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
)

type testLogger struct{}

func (tl *testLogger) Printf(format string, args ...interface{}) {}

func TestCreateScene(t *testing.T) {
	tests := []struct {
		name        string
		opts        options
		expectError bool
	}{
		{"default scene", options{sceneName: "default"}, false},
		{"random scene", options{sceneName: "random", seed: 3}, false},
		{"motion scene", options{sceneName: "motion", seed: 3}, false},
		{"unknown scene", options{sceneName: "nonexistent"}, true},
		{"empty scene name", options{sceneName: ""}, true},
		{"missing scene file", options{sceneFile: "no/such/file.json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := createScene(tt.opts)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				}
				if s != nil {
					t.Errorf("Expected nil scene, got %T", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if s.GetPrimitiveCount() == 0 {
				t.Error("Expected a populated scene")
			}
		})
	}
}

func TestCreateSceneUnknownIsTyped(t *testing.T) {
	_, err := createScene(options{sceneName: "teapot"})
	if !errors.Is(err, scene.ErrUnknownScene) {
		t.Errorf("Expected ErrUnknownScene, got %v", err)
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-scene", "random", "-width", "120", "-seed", "9", "-checkpoint", "c.zst", "-resume"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if opts.sceneName != "random" || opts.width != 120 || opts.seed != 9 || !opts.resume {
		t.Errorf("Unexpected options %+v", opts)
	}
	if opts.passes != 5 || opts.tileSize != 64 {
		t.Errorf("Expected default passes and tile size, got %+v", opts)
	}

	if _, err := parseFlags([]string{"-resume"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected -resume without -checkpoint to fail")
	}
	if _, err := parseFlags([]string{"-bogus"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected an unknown flag to fail")
	}
}

func TestPrintHelpListsScenes(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf)

	for _, name := range scene.Names() {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("Help output does not mention scene %q", name)
		}
	}
	if !strings.Contains(buf.String(), "-checkpoint") {
		t.Error("Help output does not list flags")
	}
}

func TestApplyOverrides(t *testing.T) {
	s := scene.NewDefaultScene()
	applyOverrides(s, options{width: 160, samples: 3, depth: 4})

	if s.SamplingConfig.Width != 160 || s.SamplingConfig.Height != 90 {
		t.Errorf("Expected 160x90, got %dx%d", s.SamplingConfig.Width, s.SamplingConfig.Height)
	}
	if s.SamplingConfig.SamplesPerPixel != 3 || s.SamplingConfig.MaxDepth != 4 {
		t.Errorf("Unexpected sampling config %+v", s.SamplingConfig)
	}
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	if got := outputPath(options{out: "x.png"}, now); got != "x.png" {
		t.Errorf("Expected explicit path, got %s", got)
	}
	expected := filepath.Join("output", "random", "render_20240506_070809.png")
	if got := outputPath(options{sceneName: "random"}, now); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
	expected = filepath.Join("output", "mine", "render_20240506_070809.png")
	if got := outputPath(options{sceneFile: "scenes/mine.json"}, now); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}

func TestRunWritesPNGAndCheckpoint(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		sceneName:  "default",
		width:      32,
		samples:    2,
		depth:      4,
		passes:     2,
		workers:    2,
		tileSize:   16,
		seed:       1,
		checkpoint: filepath.Join(dir, "render.sz"),
		out:        filepath.Join(dir, "out", "render.png"),
		saveScene:  filepath.Join(dir, "scene.json"),
	}

	if err := run(context.Background(), opts, &testLogger{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	file, err := os.Open(opts.out)
	if err != nil {
		t.Fatalf("Output not written: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 18 {
		t.Errorf("Expected 32x18 image, got %v", img.Bounds())
	}

	cp, err := renderer.LoadCheckpoint(opts.checkpoint)
	if err != nil {
		t.Fatalf("Checkpoint not written: %v", err)
	}
	if cp.Pass != 2 {
		t.Errorf("Expected checkpoint at pass 2, got %d", cp.Pass)
	}

	if _, err := scene.Load(opts.saveScene); err != nil {
		t.Errorf("Saved scene does not load: %v", err)
	}

	// Resuming a finished render has nothing left to do
	opts.resume = true
	opts.out = filepath.Join(dir, "again.png")
	if err := run(context.Background(), opts, &testLogger{}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if _, err := os.Stat(opts.out); !os.IsNotExist(err) {
		t.Errorf("Expected no new output for a finished render, stat err = %v", err)
	}
}

func TestRunRejectsMismatchedCheckpoint(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *options)
	}{
		{"width", func(o *options) { o.width = 24 }},
		{"samples", func(o *options) { o.samples = 3 }},
		{"depth", func(o *options) { o.depth = 5 }},
		{"scene", func(o *options) { o.sceneName = "random" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := options{
				sceneName:  "default",
				width:      16,
				samples:    1,
				depth:      2,
				passes:     1,
				tileSize:   8,
				seed:       1,
				checkpoint: filepath.Join(dir, "render.zst"),
				out:        filepath.Join(dir, "render.png"),
			}
			if err := run(context.Background(), opts, &testLogger{}); err != nil {
				t.Fatalf("run failed: %v", err)
			}

			tt.modify(&opts)
			opts.resume = true
			err := run(context.Background(), opts, &testLogger{})
			if !errors.Is(err, renderer.ErrCheckpointMismatch) {
				t.Errorf("Expected ErrCheckpointMismatch, got %v", err)
			}
		})
	}
}
