package geometry

import (
	"math"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Sphere represents a sphere shape. A sphere whose centre moves during the
// shutter interval is described by Center1, Time0 and Time1.
type Sphere struct {
	Center   core.Vec3
	Radius   float64
	Material material.Material

	Center1      core.Vec3
	Time0, Time1 float64
	moving       bool
}

// NewSphere creates a new stationary sphere
func NewSphere(center core.Vec3, radius float64, mat material.Material) *Sphere {
	return &Sphere{
		Center:   center,
		Radius:   radius,
		Material: mat,
		Center1:  center,
	}
}

// NewMovingSphere creates a sphere travelling linearly from center0 at time0 to center1 at time1
func NewMovingSphere(center0, center1 core.Vec3, time0, time1, radius float64, mat material.Material) *Sphere {
	return &Sphere{
		Center:   center0,
		Radius:   radius,
		Material: mat,
		Center1:  center1,
		Time0:    time0,
		Time1:    time1,
		moving:   center0 != center1 && time1 != time0,
	}
}

// IsMoving reports whether the sphere travels during the shutter interval
func (s *Sphere) IsMoving() bool {
	return s.moving
}

// CenterAt returns the sphere centre at the given time
func (s *Sphere) CenterAt(time float64) core.Vec3 {
	if !s.moving {
		return s.Center
	}
	fraction := (time - s.Time0) / (s.Time1 - s.Time0)
	return s.Center.Add(s.Center1.Subtract(s.Center).Multiply(fraction))
}

// Hit tests if a ray intersects with the sphere
func (s *Sphere) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	// Degenerate spheres are never hit
	if s.Radius <= 0 {
		return nil, false
	}

	center := s.CenterAt(ray.Time)

	// Vector from sphere center to ray origin
	oc := ray.Origin.Subtract(center)

	// Quadratic equation coefficients: at² + 2·halfB·t + c = 0
	a := ray.Direction.LengthSquared()
	if a == 0 {
		return nil, false // A zero direction goes nowhere
	}
	halfB := ray.Direction.Dot(oc)
	c := oc.LengthSquared() - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return nil, false
	}

	sqrtD := math.Sqrt(discriminant)

	// Try the closer intersection point first
	// Written so that a NaN root is rejected
	root := (-halfB - sqrtD) / a
	if !(root >= tMin && root <= tMax) {
		root = (-halfB + sqrtD) / a
		if !(root >= tMin && root <= tMax) {
			return nil, false
		}
	}

	hitRecord := &material.HitRecord{
		T:        root,
		Point:    ray.At(root),
		Material: s.Material,
	}

	outwardNormal := hitRecord.Point.Subtract(center).Divide(s.Radius)
	hitRecord.SetFaceNormal(ray, outwardNormal)

	return hitRecord, true
}

func (s *Sphere) sealed() {}
