package renderer

import (
	"image"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// testLogger implements core.Logger for testing by discarding all output
type testLogger struct{}

// Ensure testLogger implements core.Logger
var _ core.Logger = (*testLogger)(nil)

func (tl *testLogger) Printf(format string, args ...interface{}) {
	// Discard log output during tests
}

// emptyScene returns a scene with nothing but sky
func emptyScene(width, height int) *scene.Scene {
	config := geometry.CameraConfig{
		Center:      core.NewVec3(0, 0, 0),
		LookAt:      core.NewVec3(0, 0, -1),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        90,
		AspectRatio: float64(width) / float64(height),
	}
	return &scene.Scene{
		Camera:         geometry.NewCamera(config),
		CameraConfig:   config,
		World:          geometry.NewShapeList(),
		SamplingConfig: scene.SamplingConfig{Width: width, Height: height, SamplesPerPixel: 4, MaxDepth: 5},
	}
}

// smallDefaultScene returns the default scene at a test-friendly resolution
func smallDefaultScene() *scene.Scene {
	s := scene.NewDefaultScene()
	s.SamplingConfig.Width = 24
	s.SamplingConfig.Height = 14
	s.SamplingConfig.MaxDepth = 8
	return s
}

func imagesEqual(t *testing.T, a, b *image.RGBA) {
	t.Helper()
	if a.Bounds() != b.Bounds() {
		t.Fatalf("Image bounds differ: %v vs %v", a.Bounds(), b.Bounds())
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("Images differ at byte %d: %d vs %d", i, a.Pix[i], b.Pix[i])
		}
	}
}
