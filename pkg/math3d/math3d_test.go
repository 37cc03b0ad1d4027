package math3d

import (
	"math"
	"testing"
)

func TestFromRowMajorRoundTrip(t *testing.T) {
	var v [16]float64
	for i := range v {
		v[i] = float64(i + 1)
	}
	m := FromRowMajor(v)
	got := m.RowMajor()
	if got != v {
		t.Errorf("RowMajor round trip mismatch: got %v want %v", got, v)
	}
	// Translation lives in the last column of the row-major form.
	tr := FromRowMajor([16]float64{
		1, 0, 0, 5,
		0, 1, 0, 6,
		0, 0, 1, 7,
		0, 0, 0, 1,
	})
	if tr.Translation() != V3(5, 6, 7) {
		t.Errorf("FromRowMajor translation = %v, want (5,6,7)", tr.Translation())
	}
}

func TestTranslateMulVec3(t *testing.T) {
	m := Translate(V3(1, 2, 3))
	got := m.MulVec3(V3(10, 20, 30))
	if !got.ApproxEqual(V3(11, 22, 33), 1e-12) {
		t.Errorf("Translate·point = %v", got)
	}
	// Directions ignore translation.
	dir := m.MulVec3Dir(V3(1, 0, 0))
	if !dir.ApproxEqual(V3(1, 0, 0), 1e-12) {
		t.Errorf("Translate·dir = %v", dir)
	}
}

func TestRotateAxisDeg(t *testing.T) {
	m := RotateAxisDeg(V3(0, 0, 1), 90)
	got := m.MulVec3(V3(1, 0, 0))
	if !got.ApproxEqual(V3(0, 1, 0), 1e-9) {
		t.Errorf("rotate 90deg about Z: got %v, want (0,1,0)", got)
	}
}

func TestInverseMulIsIdentity(t *testing.T) {
	m := Translate(V3(1, 2, 3)).Mul(Rotate(V3(0, 1, 0), 0.5)).Mul(Scale(V3(2, 2, 2)))
	id := m.Mul(m.Inverse())
	if !id.ApproxEqual(Identity(), 1e-9) {
		t.Errorf("m * m^-1 != I: %v", id)
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// A plane scaled by (2,1,1) keeps its normal along +Y only if the
	// normal goes through the inverse-transpose.
	m := Scale(V3(2, 1, 1))
	n := m.NormalMatrix().MulVec3Dir(V3(0, 1, 0)).Normalize()
	if !n.ApproxEqual(V3(0, 1, 0), 1e-12) {
		t.Errorf("normal matrix Y = %v", n)
	}
	n = m.NormalMatrix().MulVec3Dir(V3(1, 0, 0)).Normalize()
	if !n.ApproxEqual(V3(1, 0, 0), 1e-12) {
		t.Errorf("normal matrix X = %v", n)
	}
}

func TestLookAtPosePlacesEye(t *testing.T) {
	m := LookAtPose(V3(0, 0, 5), V3(0, 0, 0), V3(0, 1, 0))
	if !m.Translation().ApproxEqual(V3(0, 0, 5), 1e-12) {
		t.Errorf("lookat eye = %v", m.Translation())
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	z := V3(0, 0, 0).Normalize()
	if z != Zero3() {
		t.Errorf("Normalize(0) = %v, want zero", z)
	}
	if math.IsNaN(z.X) || math.IsNaN(z.Y) || math.IsNaN(z.Z) {
		t.Error("Normalize produced NaN")
	}
}

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Translate(V3(1, 2, 3))
	m2 := Rotate(V3(0, 1, 0), 0.5)

	for b.Loop() {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4MulVec3(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(Rotate(V3(0, 1, 0), 0.5))
	v := V3(1, 2, 3)

	for b.Loop() {
		_ = m.MulVec3(v)
	}
}

func BenchmarkMat4Inverse(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(Rotate(V3(0, 1, 0), 0.5)).Mul(Scale(V3(2, 2, 2)))

	for b.Loop() {
		_ = m.Inverse()
	}
}
