package scene

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Scene contains all the elements needed for rendering
type Scene struct {
	Camera         *geometry.Camera
	CameraConfig   geometry.CameraConfig
	World          *geometry.ShapeList // Objects in the scene
	SamplingConfig SamplingConfig
}

// SamplingConfig contains the recommended render configuration for a scene
type SamplingConfig struct {
	Width           int `json:"width"`            // Image width
	Height          int `json:"height,omitempty"` // Image height, derived from the camera aspect ratio
	SamplesPerPixel int `json:"samplesPerPixel"`  // Number of rays per pixel
	MaxDepth        int `json:"maxDepth"`         // Maximum ray bounce depth
}

// HeightForWidth returns the image height matching an aspect ratio, at least one pixel
func HeightForWidth(width int, aspectRatio float64) int {
	return max(1, int(float64(width)/aspectRatio))
}

// newScene builds a scene around a camera configuration
func newScene(cameraConfig geometry.CameraConfig, sampling SamplingConfig) *Scene {
	if sampling.Height == 0 {
		sampling.Height = HeightForWidth(sampling.Width, cameraConfig.AspectRatio)
	}
	return &Scene{
		Camera:         geometry.NewCamera(cameraConfig),
		CameraConfig:   cameraConfig,
		World:          geometry.NewShapeList(),
		SamplingConfig: sampling,
	}
}

// AddSphere adds a stationary sphere to the scene
func (s *Scene) AddSphere(center core.Vec3, radius float64, mat material.Material) {
	s.World.Add(geometry.NewSphere(center, radius, mat))
}

// SetCamera replaces the camera, keeping the image height in step with the aspect ratio
func (s *Scene) SetCamera(config geometry.CameraConfig) {
	s.CameraConfig = config
	s.Camera = geometry.NewCamera(config)
	s.SamplingConfig.Height = HeightForWidth(s.SamplingConfig.Width, config.AspectRatio)
}

// GetPrimitiveCount returns the total number of spheres in the scene
func (s *Scene) GetPrimitiveCount() int {
	return countPrimitivesInShape(s.World)
}

// countPrimitivesInShape counts primitives in a single shape, descending into lists
func countPrimitivesInShape(shape geometry.Shape) int {
	switch obj := shape.(type) {
	case *geometry.ShapeList:
		count := 0
		for _, child := range obj.Shapes {
			count += countPrimitivesInShape(child)
		}
		return count
	default:
		return 1
	}
}
