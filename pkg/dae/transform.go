package dae

import "github.com/taigrr/collada/pkg/math3d"

// Transform is one operator in a node's ordered transform list. A node's
// local matrix is the product of its operators in declaration order.
type Transform interface {
	Matrix() math3d.Mat4

	transform()
}

// TranslateTransform moves by an offset.
type TranslateTransform struct {
	Offset math3d.Vec3
}

func (t TranslateTransform) Matrix() math3d.Mat4 { return math3d.Translate(t.Offset) }
func (t TranslateTransform) transform()          {}

// RotateTransform rotates around an axis by an angle in degrees, the unit
// used by <rotate> elements.
type RotateTransform struct {
	Axis    math3d.Vec3
	Degrees float64
}

func (t RotateTransform) Matrix() math3d.Mat4 { return math3d.RotateAxisDeg(t.Axis, t.Degrees) }
func (t RotateTransform) transform()          {}

// ScaleTransform scales by per-axis factors.
type ScaleTransform struct {
	Factors math3d.Vec3
}

func (t ScaleTransform) Matrix() math3d.Mat4 { return math3d.Scale(t.Factors) }
func (t ScaleTransform) transform()          {}

// MatrixTransform applies a raw 4x4 matrix.
type MatrixTransform struct {
	M math3d.Mat4
}

func (t MatrixTransform) Matrix() math3d.Mat4 { return t.M }
func (t MatrixTransform) transform()          {}

// LookAtTransform poses a node at Eye oriented toward Interest. Meaningful
// on camera-bearing nodes.
type LookAtTransform struct {
	Eye      math3d.Vec3
	Interest math3d.Vec3
	Up       math3d.Vec3
}

func (t LookAtTransform) Matrix() math3d.Mat4 {
	return math3d.LookAtPose(t.Eye, t.Interest, t.Up)
}
func (t LookAtTransform) transform() {}

// localMatrix composes an ordered operator list into one matrix.
func localMatrix(ts []Transform) math3d.Mat4 {
	m := math3d.Identity()
	for _, t := range ts {
		m = m.Mul(t.Matrix())
	}
	return m
}
