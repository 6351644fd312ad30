package core

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func vecApproxEqual(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestVec3_Arithmetic(t *testing.T) {
	a := NewVec3(1, 2, 3)
	b := NewVec3(4, -5, 6)

	tests := []struct {
		name     string
		result   Vec3
		expected Vec3
	}{
		{"Add", a.Add(b), NewVec3(5, -3, 9)},
		{"Subtract", a.Subtract(b), NewVec3(-3, 7, -3)},
		{"Multiply", a.Multiply(2), NewVec3(2, 4, 6)},
		{"Divide", b.Divide(2), NewVec3(2, -2.5, 3)},
		{"MultiplyVec", a.MultiplyVec(b), NewVec3(4, -10, 18)},
		{"Negate", a.Negate(), NewVec3(-1, -2, -3)},
		{"Cross", NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0)), NewVec3(0, 0, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !vecApproxEqual(tt.result, tt.expected, tolerance) {
				t.Errorf("Expected %v, got %v", tt.expected, tt.result)
			}
		})
	}

	if got := a.Dot(b); got != 12 {
		t.Errorf("Expected dot product 12, got %f", got)
	}
	if got := NewVec3(3, 4, 0).Length(); got != 5 {
		t.Errorf("Expected length 5, got %f", got)
	}
	if got := NewVec3(3, 4, 0).LengthSquared(); got != 25 {
		t.Errorf("Expected squared length 25, got %f", got)
	}
}

func TestVec3_NormalizeIdempotent(t *testing.T) {
	vectors := []Vec3{
		NewVec3(1, 0, 0),
		NewVec3(3, 4, 5),
		NewVec3(-0.001, 2000, 7),
		NewVec3(1e-6, -1e-6, 1e-6),
	}

	for _, v := range vectors {
		once := v.Normalize()
		twice := once.Normalize()
		if !vecApproxEqual(once, twice, 1e-12) {
			t.Errorf("Normalize not idempotent for %v: %v vs %v", v, once, twice)
		}
		if math.Abs(once.Length()-1) > tolerance {
			t.Errorf("Expected unit length for %v, got %f", v, once.Length())
		}
	}

	if zero := (Vec3{}).Normalize(); zero != (Vec3{}) {
		t.Errorf("Expected zero vector to stay zero, got %v", zero)
	}
}

func TestVec3_NearZero(t *testing.T) {
	tests := []struct {
		name     string
		vector   Vec3
		expected bool
	}{
		{"zero", NewVec3(0, 0, 0), true},
		{"tiny", NewVec3(1e-9, -1e-9, 5e-9), true},
		{"one component large", NewVec3(1e-9, 1e-7, 0), false},
		{"unit", NewVec3(0, 1, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vector.NearZero(); got != tt.expected {
				t.Errorf("NearZero(%v) = %t, want %t", tt.vector, got, tt.expected)
			}
		})
	}
}

func TestVec3_Reflect(t *testing.T) {
	incoming := NewVec3(1, -1, 0)
	normal := NewVec3(0, 1, 0)

	reflected := incoming.Reflect(normal)
	expected := NewVec3(1, 1, 0)
	if !vecApproxEqual(reflected, expected, tolerance) {
		t.Errorf("Expected %v, got %v", expected, reflected)
	}
}

func TestVec3_Refract(t *testing.T) {
	normal := NewVec3(0, 1, 0)

	t.Run("index ratio one leaves direction unchanged", func(t *testing.T) {
		directions := []Vec3{
			NewVec3(1, -1, 0),
			NewVec3(0.3, -2, 0.7),
			NewVec3(0, -1, 0),
		}
		for _, d := range directions {
			refracted := d.Refract(normal, 1.0)
			if !vecApproxEqual(refracted, d.Normalize(), 1e-9) {
				t.Errorf("Expected %v, got %v", d.Normalize(), refracted)
			}
		}
	})

	t.Run("normal incidence passes straight through", func(t *testing.T) {
		refracted := NewVec3(0, -3, 0).Refract(normal, 1.0/1.5)
		if !vecApproxEqual(refracted, NewVec3(0, -1, 0), tolerance) {
			t.Errorf("Expected straight-through refraction, got %v", refracted)
		}
	})

	t.Run("obeys snell's law", func(t *testing.T) {
		ratio := 1.0 / 1.5
		incoming := NewVec3(1, -1, 0).Normalize()
		refracted := incoming.Refract(normal.Multiply(4), ratio)

		sinIn := math.Sqrt(1 - math.Pow(incoming.Dot(normal), 2))
		sinOut := math.Sqrt(1 - math.Pow(refracted.Normalize().Dot(normal), 2))
		if math.Abs(sinOut-ratio*sinIn) > 1e-9 {
			t.Errorf("Snell's law violated: sinOut=%f, ratio*sinIn=%f", sinOut, ratio*sinIn)
		}
		if math.Abs(refracted.Length()-1) > 1e-9 {
			t.Errorf("Expected unit refracted direction, got length %f", refracted.Length())
		}
	})
}

func TestVec3_ColorHelpers(t *testing.T) {
	clamped := NewVec3(-1, 0.5, 2).Clamp(0, 1)
	if clamped != NewVec3(0, 0.5, 1) {
		t.Errorf("Unexpected clamp result %v", clamped)
	}

	gamma := NewVec3(0.25, 1, 0).GammaCorrect(2)
	if !vecApproxEqual(gamma, NewVec3(0.5, 1, 0), tolerance) {
		t.Errorf("Unexpected gamma result %v", gamma)
	}

	if l := NewVec3(1, 1, 1).Luminance(); math.Abs(l-1) > tolerance {
		t.Errorf("Expected luminance 1 for white, got %f", l)
	}
}

func TestRay_At(t *testing.T) {
	ray := NewRayAtTime(NewVec3(1, 2, 3), NewVec3(2, 0, -1), 0.25)

	if got := ray.At(2); got != NewVec3(5, 2, 1) {
		t.Errorf("Expected (5,2,1), got %v", got)
	}
	if ray.Time != 0.25 {
		t.Errorf("Expected time 0.25, got %f", ray.Time)
	}
	if NewRay(Vec3{}, Vec3{}).Time != 0 {
		t.Error("Expected NewRay to default time to zero")
	}
}
