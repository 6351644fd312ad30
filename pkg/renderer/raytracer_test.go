package renderer

import (
	"image/color"
	"math"
	"testing"

	"github.com/df07/go-pathtracer/pkg/core"
)

func TestVec3ToColor(t *testing.T) {
	tests := []struct {
		name     string
		input    core.Vec3
		expected color.RGBA
	}{
		{"black", core.NewVec3(0, 0, 0), color.RGBA{0, 0, 0, 255}},
		{"white saturates below 256", core.NewVec3(1, 1, 1), color.RGBA{255, 255, 255, 255}},
		{"gamma two", core.NewVec3(0.25, 0.25, 0.25), color.RGBA{128, 128, 128, 255}},
		{"over-bright clamps", core.NewVec3(4, 2, 1.5), color.RGBA{255, 255, 255, 255}},
		{"negative clamps", core.NewVec3(-1, 0.25, -0.5), color.RGBA{0, 128, 0, 255}},
		{"nan is black", core.NewVec3(math.NaN(), 0, 0), color.RGBA{0, 0, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Vec3ToColor(tt.input)
			if got != tt.expected {
				t.Errorf("Vec3ToColor(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAxisScale(t *testing.T) {
	if axisScale(1) != 1 {
		t.Errorf("Single pixel axis should divide by 1, got %f", axisScale(1))
	}
	if axisScale(400) != 399 {
		t.Errorf("Expected 399, got %f", axisScale(400))
	}
}

func TestRaytracerRowsRunTopDown(t *testing.T) {
	// Looking at an empty sky, the top row is bluer (less red) than the bottom row
	s := emptyScene(4, 4)
	rt := NewRaytracer(s, 4, 4)
	img := rt.RenderImage(4, core.NewSeededSampler(1))

	top := img.RGBAAt(1, 0)
	bottom := img.RGBAAt(1, 3)
	if top.R >= bottom.R {
		t.Errorf("Expected top row bluer than bottom: top %v, bottom %v", top, bottom)
	}
	if top.B != 255 || bottom.B != 255 {
		t.Errorf("Sky blue channel should saturate: top %v, bottom %v", top, bottom)
	}
}

func TestRaytracerSeesCentreSphere(t *testing.T) {
	// The default scene's blue diffuse sphere fills the image centre
	s := smallDefaultScene()
	rt := NewRaytracer(s, s.SamplingConfig.Width, s.SamplingConfig.Height)
	img := rt.RenderImage(16, core.NewSeededSampler(3))

	centre := img.RGBAAt(s.SamplingConfig.Width/2, s.SamplingConfig.Height/2)
	if centre.B <= centre.R {
		t.Errorf("Expected a blue-dominant centre pixel, got %v", centre)
	}
	if img.Bounds().Dx() != 24 || img.Bounds().Dy() != 14 {
		t.Errorf("Unexpected image size %v", img.Bounds())
	}
}

func TestPixelRayCorners(t *testing.T) {
	// Pinhole camera at the origin; the bottom-left pixel with zero jitter
	// hits the viewport's lower-left corner and the top-right pixel the upper-right
	s := emptyScene(5, 5)
	rt := NewRaytracer(s, 5, 5)
	sampler := core.NewSeededSampler(0)

	bottomLeft := rt.PixelRay(0, 4, core.NewVec2(0, 0), sampler).Direction
	topRight := rt.PixelRay(4, 0, core.NewVec2(0, 0), sampler).Direction

	if math.Abs(bottomLeft.X-(-1)) > 1e-9 || math.Abs(bottomLeft.Y-(-1)) > 1e-9 {
		t.Errorf("Expected lower-left direction (-1,-1,-1), got %v", bottomLeft)
	}
	if math.Abs(topRight.X-1) > 1e-9 || math.Abs(topRight.Y-1) > 1e-9 {
		t.Errorf("Expected upper-right direction (1,1,-1), got %v", topRight)
	}
}
