package dae

import "github.com/taigrr/collada/pkg/math3d"

// LightKind distinguishes the four light definitions.
type LightKind int

const (
	LightAmbient LightKind = iota
	LightDirectional
	LightPoint
	LightSpot
)

func (k LightKind) String() string {
	switch k {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	}
	return "ambient"
}

// Light holds a light definition. Attenuation applies to point and spot
// lights; falloff applies to spot lights.
type Light struct {
	ID   string
	Name string
	Kind LightKind

	Color math3d.Vec3

	ConstantAttenuation  float64
	LinearAttenuation    float64
	QuadraticAttenuation float64

	FalloffAngle    float64
	FalloffExponent float64
}

// Bind attaches a world transform, producing the traversal view.
func (l *Light) Bind(matrix math3d.Mat4) *BoundLight {
	return &BoundLight{Light: l, Matrix: matrix}
}

// BoundLight is a light seen through its node's world transform.
type BoundLight struct {
	Light  *Light
	Matrix math3d.Mat4
}

// Position returns the light's world position. Meaningful for point and
// spot lights.
func (bl *BoundLight) Position() math3d.Vec3 {
	return bl.Matrix.Translation()
}

// Direction returns the world direction the light shines in. A light points
// down its local -Z axis.
func (bl *BoundLight) Direction() math3d.Vec3 {
	return bl.Matrix.MulVec3Dir(math3d.V3(0, 0, -1)).Normalize()
}
