package dae

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFloatSource(t *testing.T, id string, data []float64, comps ...string) *FloatSource {
	t.Helper()
	src, err := NewFloatSource(id, data, comps...)
	require.NoError(t, err)
	return src
}

func mustInputs(t *testing.T, inputs ...Input) *InputList {
	t.Helper()
	il, err := NewInputList(inputs)
	require.NoError(t, err)
	return il
}

// gridSource builds a float source with n distinct 3-component tuples.
func gridSource(t *testing.T, id string, n int) *FloatSource {
	t.Helper()
	data := make([]float64, 0, n*3)
	for i := range n {
		data = append(data, float64(i), float64(i*2), float64(i*3))
	}
	return mustFloatSource(t, id, data, "X", "Y", "Z")
}

func TestTriangleSetStrideTwoDecode(t *testing.T) {
	pos := gridSource(t, "pos", 8)
	norm := gridSource(t, "norm", 6)
	il := mustInputs(t,
		Input{Offset: 0, Semantic: SemanticVertex, Source: pos},
		Input{Offset: 1, Semantic: SemanticNormal, Source: norm},
	)

	index := make([]int, 0, 72)
	for i := range 36 {
		index = append(index, i%8, i%6)
	}
	ts, err := NewTriangleSet("mat", il, index)
	require.NoError(t, err)

	assert.Equal(t, 12, ts.FaceCount())
	require.Len(t, ts.VertexIndex(), 36)
	require.Len(t, ts.NormalIndex(), 36)
	for i, vi := range ts.VertexIndex() {
		assert.Equal(t, i%8, vi)
	}
	for i, ni := range ts.NormalIndex() {
		assert.Equal(t, i%6, ni)
	}
}

func TestTriangleSetEmpty(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})

	ts, err := NewTriangleSet("", il, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ts.FaceCount())
	assert.Empty(t, ts.VertexIndex())
	assert.Equal(t, 0, ts.Triangulate().FaceCount())
}

func TestTriangleSetRaggedIndex(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	il := mustInputs(t,
		Input{Offset: 0, Semantic: SemanticVertex, Source: pos},
		Input{Offset: 1, Semantic: SemanticNormal, Source: pos},
	)
	_, err := NewTriangleSet("", il, []int{0, 0, 1, 1, 2})
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)
}

func TestInputListOffsetsMustBeDense(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	_, err := NewInputList([]Input{
		{Offset: 0, Semantic: SemanticVertex, Source: pos},
		{Offset: 2, Semantic: SemanticNormal, Source: pos},
	})
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)
}

func TestTriangleSetTexCoordChannels(t *testing.T) {
	pos := gridSource(t, "pos", 3)
	uv0 := mustFloatSource(t, "uv0", []float64{0, 0, 1, 0, 1, 1}, "S", "T")
	uv1 := mustFloatSource(t, "uv1", []float64{0, 1, 1, 1, 0, 0}, "S", "T")
	il := mustInputs(t,
		Input{Offset: 0, Semantic: SemanticVertex, Source: pos},
		Input{Offset: 1, Semantic: SemanticTexCoord, Source: uv0, Set: 0},
		Input{Offset: 2, Semantic: SemanticTexCoord, Source: uv1, Set: 1},
	)
	ts, err := NewTriangleSet("", il, []int{
		0, 0, 2,
		1, 1, 1,
		2, 2, 0,
	})
	require.NoError(t, err)

	require.Len(t, ts.TexCoordIndex(), 2)
	tri := ts.Triangle(0)
	require.Len(t, tri.TexCoords, 2)
	assert.Equal(t, 1.0, tri.TexCoords[0][1].X)
	assert.Equal(t, 1.0, tri.TexCoords[1][0].Y)
}

func TestPolylistFaceDecode(t *testing.T) {
	pos := gridSource(t, "pos", 7)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})

	pl, err := NewPolylist("mat", il, []int{4, 3}, []int{0, 1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, 2, pl.FaceCount())
	assert.Equal(t, []int{0, 1, 2, 3}, pl.Face(0).Indices)
	assert.Equal(t, []int{4, 5, 6}, pl.Face(1).Indices)

	ts := pl.Triangulate()
	require.Equal(t, 3, ts.FaceCount())
	vi := ts.VertexIndex()
	assert.Equal(t, []int{0, 1, 2, 0, 2, 3, 4, 5, 6}, vi)
}

func TestPolylistCountMismatch(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})
	_, err := NewPolylist("", il, []int{4}, []int{0, 1, 2})
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)
}

func TestPrimitivesRequireVertexInput(t *testing.T) {
	norm := gridSource(t, "norm", 3)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticNormal, Source: norm})

	var derr *Error

	_, err := NewPolylist("", il, []int{3}, []int{0, 1, 2})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)

	_, err = NewTriangleSet("", il, []int{0, 1, 2})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)

	_, err = NewLineSet("", il, []int{0, 1})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)
}

func TestTriangulatePreservesSemanticIndices(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	norm := gridSource(t, "norm", 4)
	il := mustInputs(t,
		Input{Offset: 0, Semantic: SemanticVertex, Source: pos},
		Input{Offset: 1, Semantic: SemanticNormal, Source: norm},
	)
	// One quad, corner k carrying normal index 3-k.
	pl, err := NewPolylist("", il, []int{4}, []int{
		0, 3, 1, 2, 2, 1, 3, 0,
	})
	require.NoError(t, err)

	ts := pl.Triangulate()
	require.Equal(t, 2, ts.FaceCount())
	assert.Equal(t, []int{0, 1, 2, 0, 2, 3}, ts.VertexIndex())
	assert.Equal(t, []int{3, 2, 1, 3, 1, 0}, ts.NormalIndex())
}

func TestTriangulateDegenerateFaces(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})

	pl, err := NewPolylist("", il, []int{2, 3}, []int{0, 1, 1, 2, 3})
	require.NoError(t, err)
	// The 2-vertex face emits nothing; the triangle survives.
	assert.Equal(t, 1, pl.Triangulate().FaceCount())

	empty, err := NewPolylist("", mustInputs(t), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Triangulate().FaceCount())
}

func TestTriStripConversion(t *testing.T) {
	pos := gridSource(t, "pos", 5)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})

	ts, err := triangleSetFromStrips("", il, [][]int{{0, 1, 2, 3, 4}})
	require.NoError(t, err)
	require.Equal(t, 3, ts.FaceCount())
	// Winding flips on every other strip triangle.
	assert.Equal(t, []int{0, 1, 2, 2, 1, 3, 2, 3, 4}, ts.VertexIndex())
}

func TestTriFanConversion(t *testing.T) {
	pos := gridSource(t, "pos", 5)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})

	ts, err := triangleSetFromFans("", il, [][]int{{0, 1, 2, 3, 4}})
	require.NoError(t, err)
	require.Equal(t, 3, ts.FaceCount())
	assert.Equal(t, []int{0, 1, 2, 0, 2, 3, 0, 3, 4}, ts.VertexIndex())
}

func TestLineSetDecode(t *testing.T) {
	pos := gridSource(t, "pos", 4)
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})

	ls, err := NewLineSet("wire", il, []int{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, ls.FaceCount())
	assert.Equal(t, [2]int{2, 3}, ls.Line(1).Indices)
	assert.Equal(t, 0, ls.Triangulate().FaceCount())
}

func quadPolylist(t *testing.T) *Polylist {
	t.Helper()
	pos := mustFloatSource(t, "pos", []float64{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	}, "X", "Y", "Z")
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})
	pl, err := NewPolylist("", il, []int{4}, []int{0, 1, 2, 3})
	require.NoError(t, err)
	return pl
}

func TestGenerateNormalsPlanarQuad(t *testing.T) {
	pl := quadPolylist(t)
	src := pl.GenerateNormals()
	require.NotNil(t, src)

	require.Equal(t, 4, src.TupleCount())
	for i := range 4 {
		n := src.Vec3(i)
		assert.InDelta(t, 0, n.X, 1e-12)
		assert.InDelta(t, 0, n.Y, 1e-12)
		assert.InDelta(t, 1, n.Z, 1e-12)
	}
	// The synthesized channel rides on the position index stream.
	assert.Equal(t, pl.VertexIndex(), pl.streams.normal)
}

func TestGenerateNormalsIdempotent(t *testing.T) {
	pl := quadPolylist(t)
	first := pl.GenerateNormals()
	require.NotNil(t, first)
	snapshot := append([]float64(nil), first.Data...)

	second := pl.GenerateNormals()
	require.NotNil(t, second)
	assert.Equal(t, snapshot, second.Data)
}

func TestTriangulateKeepsSourceInputsUnchanged(t *testing.T) {
	pl := quadPolylist(t)
	ts := pl.Triangulate()

	require.NotNil(t, ts.GenerateNormals())
	assert.NotNil(t, ts.NormalSource())
	// The synthesized channel belongs to the triangulated copy only.
	assert.Nil(t, pl.NormalSource())
	assert.Len(t, pl.InputList().Inputs(), 1)
}

func TestGenerateNormalsDegenerateGeometry(t *testing.T) {
	pos := mustFloatSource(t, "pos", []float64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}, "X", "Y", "Z")
	il := mustInputs(t, Input{Offset: 0, Semantic: SemanticVertex, Source: pos})
	ts, err := NewTriangleSet("", il, []int{0, 1, 2})
	require.NoError(t, err)

	src := ts.GenerateNormals()
	require.NotNil(t, src)
	for i := range 3 {
		n := src.Vec3(i)
		assert.False(t, math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z))
		assert.Equal(t, 0.0, n.Len())
	}
}

func TestGenerateNormalsSkipsAuthored(t *testing.T) {
	pos := gridSource(t, "pos", 3)
	norm := mustFloatSource(t, "norm", []float64{0, 1, 0, 0, 1, 0, 0, 1, 0}, "X", "Y", "Z")
	il := mustInputs(t,
		Input{Offset: 0, Semantic: SemanticVertex, Source: pos},
		Input{Offset: 1, Semantic: SemanticNormal, Source: norm},
	)
	ts, err := NewTriangleSet("", il, []int{0, 0, 1, 1, 2, 2})
	require.NoError(t, err)

	assert.Nil(t, ts.GenerateNormals())
	assert.Same(t, norm, ts.NormalSource())
}
