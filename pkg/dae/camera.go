package dae

import "github.com/taigrr/collada/pkg/math3d"

// CameraKind distinguishes the two projection models.
type CameraKind int

const (
	CameraPerspective CameraKind = iota
	CameraOrthographic
)

func (k CameraKind) String() string {
	if k == CameraOrthographic {
		return "orthographic"
	}
	return "perspective"
}

// Camera holds the projection parameters of an optics definition. Fields
// that the document leaves out stay zero; XFov/YFov apply to perspective
// cameras and XMag/YMag to orthographic ones.
type Camera struct {
	ID   string
	Name string
	Kind CameraKind

	XFov        float64
	YFov        float64
	XMag        float64
	YMag        float64
	AspectRatio float64
	ZNear       float64
	ZFar        float64
}

// Bind attaches a world transform, producing the traversal view.
func (c *Camera) Bind(matrix math3d.Mat4) *BoundCamera {
	return &BoundCamera{Camera: c, Matrix: matrix}
}

// BoundCamera is a camera seen through its node's world transform.
type BoundCamera struct {
	Camera *Camera
	Matrix math3d.Mat4
}

// Position returns the camera's world position.
func (bc *BoundCamera) Position() math3d.Vec3 {
	return bc.Matrix.Translation()
}

// Direction returns the world view direction. A camera looks down its local
// -Z axis.
func (bc *BoundCamera) Direction() math3d.Vec3 {
	return bc.Matrix.MulVec3Dir(math3d.V3(0, 0, -1)).Normalize()
}

// Up returns the camera's world up vector.
func (bc *BoundCamera) Up() math3d.Vec3 {
	return bc.Matrix.MulVec3Dir(math3d.V3(0, 1, 0)).Normalize()
}
