package scene

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
)

// NewDefaultScene creates the default scene: diffuse, glass and gold spheres on a large ground sphere
func NewDefaultScene(cameraOverrides ...geometry.CameraConfig) *Scene {
	defaultCameraConfig := geometry.CameraConfig{
		Center:        core.NewVec3(0, 0, 1),
		LookAt:        core.NewVec3(0, 0, -1),
		Up:            core.NewVec3(0, 1, 0),
		VFov:          90,
		AspectRatio:   16.0 / 9.0,
		Aperture:      0,
		FocusDistance: 1,
	}

	// Apply any overrides using the reusable merge function
	cameraConfig := defaultCameraConfig
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(defaultCameraConfig, cameraOverrides[0])
	}

	s := newScene(cameraConfig, SamplingConfig{
		Width:           512,
		SamplesPerPixel: 128,
		MaxDepth:        32,
	})

	// Create materials
	materialGround := material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))
	materialCenter := material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))
	materialLeft := material.NewDielectric(1.5)
	materialRight := material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0.0)

	// The three small spheres share the centre material
	s.AddSphere(core.NewVec3(0.0, 0.0, -1.0), 0.5, materialCenter)
	s.AddSphere(core.NewVec3(0.0, 0.0, 0.0), 0.2, materialCenter)
	s.AddSphere(core.NewVec3(-1.0, 0.0, -1.5), 0.2, materialCenter)
	s.AddSphere(core.NewVec3(-1.0, 0.0, -1.0), 0.5, materialLeft)
	s.AddSphere(core.NewVec3(1.0, 0.0, -1.0), 0.5, materialRight)
	s.AddSphere(core.NewVec3(0.0, -100.5, -1.0), 100.0, materialGround)

	return s
}
