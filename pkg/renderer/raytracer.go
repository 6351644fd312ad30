package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/integrator"
	"github.com/df07/go-pathtracer/pkg/scene"
)

// Raytracer maps image pixels to camera rays and estimates their colour
type Raytracer struct {
	scene      *scene.Scene
	width      int
	height     int
	integrator integrator.Integrator
}

// NewRaytracer creates a raytracer for the scene using a path tracing
// integrator limited to the scene's maximum depth
func NewRaytracer(s *scene.Scene, width, height int) *Raytracer {
	return &Raytracer{
		scene:      s,
		width:      width,
		height:     height,
		integrator: integrator.NewPathTracingIntegrator(s.SamplingConfig.MaxDepth),
	}
}

// SamplePixel traces one jittered sample through image pixel (x, y). Row 0 is the top of the image.
func (rt *Raytracer) SamplePixel(x, y int, sampler core.Sampler) core.Vec3 {
	ray := rt.PixelRay(x, y, sampler.Get2D(), sampler)
	return rt.integrator.RayColor(ray, rt.scene.World, sampler)
}

// PixelRay returns the camera ray through image pixel (x, y) offset by jitter in [0,1)².
// The sampler is only used by the lens and the shutter.
func (rt *Raytracer) PixelRay(x, y int, jitter core.Vec2, sampler core.Sampler) core.Ray {
	// Camera coordinates grow upwards
	i, j := x, rt.height-1-y

	s := (float64(i) + jitter.X) / axisScale(rt.width)
	t := (float64(j) + jitter.Y) / axisScale(rt.height)

	return rt.scene.Camera.GetRay(s, t, sampler)
}

// axisScale returns the divisor normalising a pixel index, so the last pixel lands on 1
func axisScale(n int) float64 {
	if n <= 1 {
		return 1
	}
	return float64(n - 1)
}

// RenderImage renders the whole image single-threaded with the given samples per pixel
func (rt *Raytracer) RenderImage(samplesPerPixel int, sampler core.Sampler) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, rt.width, rt.height))

	for y := 0; y < rt.height; y++ {
		for x := 0; x < rt.width; x++ {
			var ps PixelStats
			for sample := 0; sample < samplesPerPixel; sample++ {
				ps.AddSample(rt.SamplePixel(x, y, sampler))
			}
			img.SetRGBA(x, y, Vec3ToColor(ps.GetColor()))
		}
	}

	return img
}

// Vec3ToColor converts a linear colour to 8-bit RGBA using gamma 2 and
// 256-level quantisation of the clamped channel
func Vec3ToColor(colorVec core.Vec3) color.RGBA {
	return color.RGBA{
		R: quantize(colorVec.X),
		G: quantize(colorVec.Y),
		B: quantize(colorVec.Z),
		A: 255,
	}
}

func quantize(c float64) uint8 {
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	return uint8(256 * min(math.Sqrt(c), 0.999))
}
