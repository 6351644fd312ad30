package scene

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
)

// NewRandomScene creates the classic cover scene: a field of small random spheres around three large ones.
// The same seed always produces the same scene.
func NewRandomScene(seed int64, cameraOverrides ...geometry.CameraConfig) *Scene {
	cameraConfig := randomSceneCamera()
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(cameraConfig, cameraOverrides[0])
	}

	s := newScene(cameraConfig, SamplingConfig{
		Width:           600,
		SamplesPerPixel: 100,
		MaxDepth:        50,
	})
	sampler := core.NewSeededSampler(seed)

	populateRandomScene(s, sampler, func(center core.Vec3, mat material.Material) geometry.Shape {
		return geometry.NewSphere(center, 0.2, mat)
	})

	return s
}

// NewMotionBlurScene creates the cover scene with bouncing diffuse spheres and an open shutter
func NewMotionBlurScene(seed int64, cameraOverrides ...geometry.CameraConfig) *Scene {
	cameraConfig := randomSceneCamera()
	cameraConfig.Time0 = 0
	cameraConfig.Time1 = 1
	if len(cameraOverrides) > 0 {
		cameraConfig = geometry.MergeCameraConfig(cameraConfig, cameraOverrides[0])
	}

	s := newScene(cameraConfig, SamplingConfig{
		Width:           400,
		SamplesPerPixel: 100,
		MaxDepth:        50,
	})
	sampler := core.NewSeededSampler(seed)

	populateRandomScene(s, sampler, func(center core.Vec3, mat material.Material) geometry.Shape {
		// Only diffuse spheres bounce
		if _, diffuse := mat.(*material.Lambertian); !diffuse {
			return geometry.NewSphere(center, 0.2, mat)
		}
		center1 := center.Add(core.NewVec3(0, core.RandomFloat(sampler, 0, 0.5), 0))
		return geometry.NewMovingSphere(center, center1, 0, 1, 0.2, mat)
	})

	return s
}

func randomSceneCamera() geometry.CameraConfig {
	return geometry.CameraConfig{
		Center:        core.NewVec3(13, 2, 3),
		LookAt:        core.NewVec3(0, 0, 0),
		Up:            core.NewVec3(0, 1, 0),
		VFov:          20,
		AspectRatio:   3.0 / 2.0,
		Aperture:      0.1,
		FocusDistance: 10,
	}
}

// populateRandomScene fills s with the ground, the random small spheres built by makeSmall, and the three feature spheres
func populateRandomScene(s *Scene, sampler core.Sampler, makeSmall func(core.Vec3, material.Material) geometry.Shape) {
	groundMaterial := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	s.AddSphere(core.NewVec3(0, -1000, 0), 1000, groundMaterial)

	// One glass material is shared by every small glass sphere
	glass := material.NewDielectric(1.5)
	clearing := core.NewVec3(4, 0.2, 0)

	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMat := sampler.Get1D()
			center := core.NewVec3(
				float64(a)+0.9*sampler.Get1D(),
				0.2,
				float64(b)+0.9*sampler.Get1D(),
			)

			if center.Subtract(clearing).Length() <= 0.9 {
				continue
			}

			var sphereMaterial material.Material
			switch {
			case chooseMat < 0.8:
				sphereMaterial = material.NewLambertian(core.RandomVec3(sampler, 0, 1))
			case chooseMat < 0.95:
				albedo := core.RandomVec3(sampler, 0.5, 1)
				fuzz := core.RandomFloat(sampler, 0, 0.5)
				sphereMaterial = material.NewMetal(albedo, fuzz)
			default:
				sphereMaterial = glass
			}
			s.World.Add(makeSmall(center, sphereMaterial))
		}
	}

	s.AddSphere(core.NewVec3(0, 1, 0), 1.0, material.NewDielectric(1.5))
	s.AddSphere(core.NewVec3(-4, 1, 0), 1.0, material.NewLambertian(core.NewVec3(0.4, 0.2, 0.1)))
	s.AddSphere(core.NewVec3(4, 1, 0), 1.0, material.NewMetal(core.NewVec3(0.7, 0.6, 0.5), 0.0))
}
