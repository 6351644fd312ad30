package integrator

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
)

// Integrator defines the interface for light transport algorithms
type Integrator interface {
	// RayColor estimates the radiance arriving along ray from the given world
	RayColor(ray core.Ray, world geometry.Shape, sampler core.Sampler) core.Vec3
}

// Background supplies the radiance of rays that escape the scene
type Background struct {
	Top    core.Vec3 // Color seen looking straight up
	Bottom core.Vec3 // Color seen looking straight down
}

// DefaultBackground returns the white to sky-blue vertical gradient
func DefaultBackground() Background {
	return Background{
		Top:    core.NewVec3(0.5, 0.7, 1.0),
		Bottom: core.NewVec3(1.0, 1.0, 1.0),
	}
}

// Evaluate returns the gradient color for a ray direction
func (b Background) Evaluate(r core.Ray) core.Vec3 {
	unitDirection := r.Direction.Normalize()

	// Use the y-component to create a gradient (map from -1,1 to 0,1)
	k := 0.5 * (unitDirection.Y + 1.0)

	// Linear interpolation: (1-k)*bottom + k*top
	return b.Bottom.Multiply(1.0 - k).Add(b.Top.Multiply(k))
}
