package scene

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/geometry"
	"github.com/df07/go-pathtracer/pkg/material"
)

// ErrInvalidScene is wrapped by every error describing a malformed scene file
var ErrInvalidScene = errors.New("invalid scene")

// Material type names used in scene files
const (
	MaterialLambertian = "lambertian"
	MaterialMetal      = "metal"
	MaterialDielectric = "dielectric"
)

// File is the JSON description of a scene. Materials are declared once by
// name and referenced by spheres, so several spheres can share one material.
type File struct {
	Camera    CameraSpec              `json:"camera"`
	Sampling  *SamplingConfig         `json:"sampling,omitempty"`
	Materials map[string]MaterialSpec `json:"materials"`
	Spheres   []SphereSpec            `json:"spheres"`
}

// CameraSpec mirrors geometry.CameraConfig with plain arrays for vectors
type CameraSpec struct {
	Center        [3]float64 `json:"center"`
	LookAt        [3]float64 `json:"lookAt"`
	Up            [3]float64 `json:"up"`
	VFov          float64    `json:"vfov"`
	AspectRatio   float64    `json:"aspectRatio"`
	Aperture      float64    `json:"aperture,omitempty"`
	FocusDistance float64    `json:"focusDistance,omitempty"`
	Time0         float64    `json:"time0,omitempty"`
	Time1         float64    `json:"time1,omitempty"`
}

// MaterialSpec describes one named material
type MaterialSpec struct {
	Type            string     `json:"type"`
	Albedo          [3]float64 `json:"albedo"`
	Fuzz            float64    `json:"fuzz,omitempty"`
	RefractiveIndex float64    `json:"refractiveIndex,omitempty"`
}

// SphereSpec describes one sphere. Center1 with Time0/Time1 makes it a moving sphere.
type SphereSpec struct {
	Center   [3]float64  `json:"center"`
	Radius   float64     `json:"radius"`
	Material string      `json:"material"`
	Center1  *[3]float64 `json:"center1,omitempty"`
	Time0    float64     `json:"time0,omitempty"`
	Time1    float64     `json:"time1,omitempty"`
}

// Load reads a JSON scene file from disk and builds the scene
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer f.Close()

	file, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file.Build()
}

// Decode parses a JSON scene description. Unknown fields are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return &file, nil
}

// Build validates the description and constructs the scene
func (f *File) Build() (*Scene, error) {
	cameraConfig := f.Camera.config()
	if cameraConfig.AspectRatio <= 0 {
		return nil, fmt.Errorf("%w: camera aspect ratio must be positive", ErrInvalidScene)
	}
	if cameraConfig.VFov <= 0 || cameraConfig.VFov >= 180 {
		return nil, fmt.Errorf("%w: camera vfov must be in (0, 180), got %g", ErrInvalidScene, cameraConfig.VFov)
	}
	if cameraConfig.Up == (core.Vec3{}) {
		cameraConfig.Up = core.NewVec3(0, 1, 0)
	}
	view := cameraConfig.Center.Subtract(cameraConfig.LookAt)
	if view.LengthSquared() == 0 {
		return nil, fmt.Errorf("%w: camera center and lookAt must differ", ErrInvalidScene)
	}
	if cameraConfig.Up.Normalize().Cross(view.Normalize()).NearZero() {
		return nil, fmt.Errorf("%w: camera up must not be parallel to the view direction", ErrInvalidScene)
	}

	sampling := SamplingConfig{Width: 400, SamplesPerPixel: 100, MaxDepth: 50}
	if f.Sampling != nil {
		sampling = *f.Sampling
		sampling.Height = 0
	}
	if sampling.Width <= 0 || sampling.SamplesPerPixel <= 0 || sampling.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: sampling width and samples must be positive", ErrInvalidScene)
	}

	materials := make(map[string]material.Material, len(f.Materials))
	for name, spec := range f.Materials {
		mat, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("%w: material %q: %v", ErrInvalidScene, name, err)
		}
		materials[name] = mat
	}

	s := newScene(cameraConfig, sampling)
	for i, spec := range f.Spheres {
		mat, ok := materials[spec.Material]
		if !ok {
			return nil, fmt.Errorf("%w: sphere %d references undefined material %q", ErrInvalidScene, i, spec.Material)
		}
		if spec.Radius <= 0 {
			return nil, fmt.Errorf("%w: sphere %d has non-positive radius %g", ErrInvalidScene, i, spec.Radius)
		}

		center := vecFromArray(spec.Center)
		if spec.Center1 != nil {
			s.World.Add(geometry.NewMovingSphere(center, vecFromArray(*spec.Center1), spec.Time0, spec.Time1, spec.Radius, mat))
		} else {
			s.World.Add(geometry.NewSphere(center, spec.Radius, mat))
		}
	}

	return s, nil
}

// Encode writes the description as indented JSON
func (f *File) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// Save writes the scene to path as JSON
func Save(path string, s *Scene) error {
	file, err := Describe(s)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create scene file: %w", err)
	}
	if err := file.Encode(out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write scene file: %w", err)
	}
	return out.Close()
}

// Fingerprint identifies the scene content: camera, sampling, materials and
// spheres. Scenes that describe to the same JSON share a fingerprint.
func Fingerprint(s *Scene) (uint64, error) {
	file, err := Describe(s)
	if err != nil {
		return 0, err
	}

	h := sha256.New()
	if err := json.NewEncoder(h).Encode(file); err != nil {
		return 0, fmt.Errorf("failed to encode scene: %w", err)
	}
	return binary.BigEndian.Uint64(h.Sum(nil)), nil
}

// Describe converts a scene back into its JSON description. Spheres sharing
// a material pointer share one named material entry.
func Describe(s *Scene) (*File, error) {
	sampling := s.SamplingConfig
	file := &File{
		Camera:    cameraSpec(s.CameraConfig),
		Sampling:  &sampling,
		Materials: make(map[string]MaterialSpec),
	}

	names := make(map[material.Material]string)
	var walk func(shape geometry.Shape) error
	walk = func(shape geometry.Shape) error {
		switch obj := shape.(type) {
		case *geometry.ShapeList:
			for _, child := range obj.Shapes {
				if err := walk(child); err != nil {
					return err
				}
			}
		case *geometry.Sphere:
			name, ok := names[obj.Material]
			if !ok {
				spec, err := materialSpec(obj.Material)
				if err != nil {
					return err
				}
				name = fmt.Sprintf("%s%d", spec.Type, len(names))
				names[obj.Material] = name
				file.Materials[name] = spec
			}

			sphere := SphereSpec{Center: arrayFromVec(obj.Center), Radius: obj.Radius, Material: name}
			if obj.IsMoving() {
				c1 := arrayFromVec(obj.Center1)
				sphere.Center1 = &c1
				sphere.Time0, sphere.Time1 = obj.Time0, obj.Time1
			}
			file.Spheres = append(file.Spheres, sphere)
		}
		return nil
	}

	if s.World != nil {
		if err := walk(s.World); err != nil {
			return nil, err
		}
	}
	return file, nil
}

// MaterialNames returns the declared material names in sorted order
func (f *File) MaterialNames() []string {
	names := make([]string, 0, len(f.Materials))
	for name := range f.Materials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m MaterialSpec) build() (material.Material, error) {
	switch m.Type {
	case MaterialLambertian:
		return material.NewLambertian(vecFromArray(m.Albedo)), nil
	case MaterialMetal:
		return material.NewMetal(vecFromArray(m.Albedo), m.Fuzz), nil
	case MaterialDielectric:
		if m.RefractiveIndex <= 0 {
			return nil, fmt.Errorf("refractive index must be positive, got %g", m.RefractiveIndex)
		}
		return material.NewDielectric(m.RefractiveIndex), nil
	default:
		return nil, fmt.Errorf("unsupported material type %q", m.Type)
	}
}

func materialSpec(mat material.Material) (MaterialSpec, error) {
	switch m := mat.(type) {
	case *material.Lambertian:
		return MaterialSpec{Type: MaterialLambertian, Albedo: arrayFromVec(m.Albedo)}, nil
	case *material.Metal:
		return MaterialSpec{Type: MaterialMetal, Albedo: arrayFromVec(m.Albedo), Fuzz: m.Fuzzness}, nil
	case *material.Dielectric:
		return MaterialSpec{Type: MaterialDielectric, RefractiveIndex: m.RefractiveIndex}, nil
	default:
		return MaterialSpec{}, fmt.Errorf("unsupported material %T", mat)
	}
}

func (c CameraSpec) config() geometry.CameraConfig {
	return geometry.CameraConfig{
		Center:        vecFromArray(c.Center),
		LookAt:        vecFromArray(c.LookAt),
		Up:            vecFromArray(c.Up),
		VFov:          c.VFov,
		AspectRatio:   c.AspectRatio,
		Aperture:      c.Aperture,
		FocusDistance: c.FocusDistance,
		Time0:         c.Time0,
		Time1:         c.Time1,
	}
}

func cameraSpec(c geometry.CameraConfig) CameraSpec {
	return CameraSpec{
		Center:        arrayFromVec(c.Center),
		LookAt:        arrayFromVec(c.LookAt),
		Up:            arrayFromVec(c.Up),
		VFov:          c.VFov,
		AspectRatio:   c.AspectRatio,
		Aperture:      c.Aperture,
		FocusDistance: c.FocusDistance,
		Time0:         c.Time0,
		Time1:         c.Time1,
	}
}

func vecFromArray(a [3]float64) core.Vec3 {
	return core.NewVec3(a[0], a[1], a[2])
}

func arrayFromVec(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
