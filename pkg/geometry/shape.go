package geometry

import (
	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Shape interface for objects that can be hit by rays.
// Implemented by Sphere and ShapeList only.
type Shape interface {
	// Hit reports the nearest intersection with t in [tMin, tMax]
	Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool)

	sealed()
}

// ShapeList is an ordered aggregate of shapes that is itself a shape
type ShapeList struct {
	Shapes []Shape
}

// NewShapeList creates a shape list holding the given shapes
func NewShapeList(shapes ...Shape) *ShapeList {
	return &ShapeList{Shapes: append([]Shape(nil), shapes...)}
}

// Add appends shapes to the list
func (l *ShapeList) Add(shapes ...Shape) {
	l.Shapes = append(l.Shapes, shapes...)
}

// Len returns the number of direct members of the list
func (l *ShapeList) Len() int {
	return len(l.Shapes)
}

// Hit tests every member and returns the closest hit.
// The upper bound shrinks to each accepted hit, so a later member never wins with a farther hit.
func (l *ShapeList) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	var closestHit *material.HitRecord
	closestSoFar := tMax

	for _, shape := range l.Shapes {
		if hit, isHit := shape.Hit(ray, tMin, closestSoFar); isHit {
			closestSoFar = hit.T
			closestHit = hit
		}
	}

	return closestHit, closestHit != nil
}

func (l *ShapeList) sealed() {}
