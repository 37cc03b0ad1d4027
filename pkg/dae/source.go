package dae

import (
	"math"

	"github.com/taigrr/collada/pkg/math3d"
)

// Source is a flat, named-component array backing one vertex attribute
// channel or controller parameter channel.
type Source interface {
	SourceID() string
	Components() []string
	TupleCount() int

	source()
}

// FloatSource holds numeric data: positions, normals, texture coordinates,
// colors, skin weights, matrices.
type FloatSource struct {
	ID    string
	Names []string
	Data  []float64
}

// NewFloatSource builds a FloatSource. The data length must divide evenly
// by the component count or the constructor fails with KindMalformedSource.
// NaN values in the input are scrubbed to zero.
func NewFloatSource(id string, data []float64, components ...string) (*FloatSource, error) {
	if len(components) == 0 {
		return nil, errMalformedSource(id, "source has no components")
	}
	if len(data)%len(components) != 0 {
		return nil, errMalformedSource(id, "data length %d not divisible by %d components", len(data), len(components))
	}
	for i, v := range data {
		if math.IsNaN(v) {
			data[i] = 0
		}
	}
	return &FloatSource{ID: id, Names: components, Data: data}, nil
}

func (s *FloatSource) SourceID() string     { return s.ID }
func (s *FloatSource) Components() []string { return s.Names }

// TupleCount returns the number of component tuples in the source.
func (s *FloatSource) TupleCount() int {
	return len(s.Data) / len(s.Names)
}

// Tuple returns the i-th component tuple as a slice into the backing array.
// The caller must not grow it.
func (s *FloatSource) Tuple(i int) []float64 {
	n := len(s.Names)
	return s.Data[i*n : i*n+n : i*n+n]
}

// Vec3 reads tuple i as a 3D vector. Missing components read as zero so a
// 2-component source can still be sampled.
func (s *FloatSource) Vec3(i int) math3d.Vec3 {
	t := s.Tuple(i)
	var v math3d.Vec3
	if len(t) > 0 {
		v.X = t[0]
	}
	if len(t) > 1 {
		v.Y = t[1]
	}
	if len(t) > 2 {
		v.Z = t[2]
	}
	return v
}

// Vec2 reads tuple i as a 2D vector, the shape of a texture coordinate set.
func (s *FloatSource) Vec2(i int) math3d.Vec2 {
	t := s.Tuple(i)
	var v math3d.Vec2
	if len(t) > 0 {
		v.X = t[0]
	}
	if len(t) > 1 {
		v.Y = t[1]
	}
	return v
}

// Mat4 reads tuple i as a row-major 4x4 matrix, the layout of an
// inverse-bind-matrix source.
func (s *FloatSource) Mat4(i int) math3d.Mat4 {
	t := s.Tuple(i)
	var raw [16]float64
	copy(raw[:], t)
	return math3d.FromRowMajor(raw)
}

func (s *FloatSource) source() {}

// NameSource holds name tokens, such as a skin's joint name list.
type NameSource struct {
	ID    string
	Names []string
	Data  []string
}

// NewNameSource builds a NameSource with the same length invariant as
// NewFloatSource.
func NewNameSource(id string, data []string, components ...string) (*NameSource, error) {
	if len(components) == 0 {
		return nil, errMalformedSource(id, "source has no components")
	}
	if len(data)%len(components) != 0 {
		return nil, errMalformedSource(id, "data length %d not divisible by %d components", len(data), len(components))
	}
	return &NameSource{ID: id, Names: components, Data: data}, nil
}

func (s *NameSource) SourceID() string     { return s.ID }
func (s *NameSource) Components() []string { return s.Names }

func (s *NameSource) TupleCount() int {
	return len(s.Data) / len(s.Names)
}

// Tuple returns the i-th component tuple as a slice into the backing array.
func (s *NameSource) Tuple(i int) []string {
	n := len(s.Names)
	return s.Data[i*n : i*n+n : i*n+n]
}

func (s *NameSource) source() {}

// IDRefSource holds identifier references, used by skins that name joints
// by element id and by morph target lists.
type IDRefSource struct {
	ID    string
	Names []string
	Data  []string
}

// NewIDRefSource builds an IDRefSource with the same length invariant as
// NewFloatSource.
func NewIDRefSource(id string, data []string, components ...string) (*IDRefSource, error) {
	if len(components) == 0 {
		return nil, errMalformedSource(id, "source has no components")
	}
	if len(data)%len(components) != 0 {
		return nil, errMalformedSource(id, "data length %d not divisible by %d components", len(data), len(components))
	}
	return &IDRefSource{ID: id, Names: components, Data: data}, nil
}

func (s *IDRefSource) SourceID() string     { return s.ID }
func (s *IDRefSource) Components() []string { return s.Names }

func (s *IDRefSource) TupleCount() int {
	return len(s.Data) / len(s.Names)
}

// Tuple returns the i-th component tuple as a slice into the backing array.
func (s *IDRefSource) Tuple(i int) []string {
	n := len(s.Names)
	return s.Data[i*n : i*n+n : i*n+n]
}

func (s *IDRefSource) source() {}
