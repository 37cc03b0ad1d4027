package dae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/collada/pkg/math3d"
)

func skinFixture(t *testing.T) *Skin {
	t.Helper()
	g := triangleGeometry(t, "body")
	weights := mustFloatSource(t, "weights", []float64{1, 0.5}, "WEIGHT")
	skin, err := NewSkin(
		"body-skin",
		math3d.Identity(),
		[]string{"Root"},
		[]math3d.Mat4{math3d.Identity()},
		weights,
		[]int{1, 1, 1},
		[]int{
			0, 0, // vertex 0: joint Root, weight 1
			0, 1, // vertex 1: joint Root, weight 0.5
			0, 0, // vertex 2: joint Root, weight 1
		},
		g,
	)
	require.NoError(t, err)
	return skin
}

func TestSkinRestPoseKeepsBindShape(t *testing.T) {
	skin := skinFixture(t)
	bg := skin.Bind(math3d.Identity(), nil).Evaluate(nil)

	pos := bg.Positions()
	require.Len(t, pos, 3)
	// Vertex 1 carries weight 0.5 that nothing tops up; the literal
	// weighted sum halves it rather than renormalizing.
	assert.True(t, pos[0].ApproxEqual(math3d.V3(0, 0, 0), 1e-12))
	assert.True(t, pos[1].ApproxEqual(math3d.V3(0.5, 0, 0), 1e-12))
	assert.True(t, pos[2].ApproxEqual(math3d.V3(0, 1, 0), 1e-12))
}

func TestSkinPosedEvaluation(t *testing.T) {
	skin := skinFixture(t)
	pose := map[string]math3d.Mat4{
		"Root": math3d.Translate(math3d.V3(0, 0, 2)),
	}
	bg := skin.Bind(math3d.Identity(), nil).Evaluate(pose)

	pos := bg.Positions()
	assert.True(t, pos[0].ApproxEqual(math3d.V3(0, 0, 2), 1e-12))
	// Half weight scales the posed position, not just the offset.
	assert.True(t, pos[1].ApproxEqual(math3d.V3(0.5, 0, 1), 1e-12))
}

func TestSkinBindShapeMatrix(t *testing.T) {
	g := triangleGeometry(t, "body")
	weights := mustFloatSource(t, "weights", []float64{1}, "WEIGHT")
	skin, err := NewSkin(
		"body-skin",
		math3d.Translate(math3d.V3(5, 0, 0)),
		[]string{"Root"},
		[]math3d.Mat4{math3d.Identity()},
		weights,
		[]int{1, 1, 1},
		[]int{0, 0, 0, 0, 0, 0},
		g,
	)
	require.NoError(t, err)

	pos := skin.Bind(math3d.Identity(), nil).Evaluate(nil).Positions()
	assert.True(t, pos[0].ApproxEqual(math3d.V3(5, 0, 0), 1e-12))
	assert.True(t, pos[1].ApproxEqual(math3d.V3(6, 0, 0), 1e-12))
}

func TestSkinUninfluencedVertexKeepsBindShapePosition(t *testing.T) {
	g := triangleGeometry(t, "body")
	weights := mustFloatSource(t, "weights", []float64{1}, "WEIGHT")
	skin, err := NewSkin(
		"body-skin",
		math3d.Identity(),
		[]string{"Root"},
		[]math3d.Mat4{math3d.Identity()},
		weights,
		[]int{1, 0, 1},
		[]int{0, 0, 0, 0},
		g,
	)
	require.NoError(t, err)

	pose := map[string]math3d.Mat4{"Root": math3d.Translate(math3d.V3(0, 0, 9))}
	pos := skin.Bind(math3d.Identity(), nil).Evaluate(pose).Positions()
	// Vertex 1 has no influences and stays put.
	assert.True(t, pos[1].ApproxEqual(math3d.V3(1, 0, 0), 1e-12))
	assert.True(t, pos[0].ApproxEqual(math3d.V3(0, 0, 9), 1e-12))
}

func TestSkinJointCountMismatch(t *testing.T) {
	g := triangleGeometry(t, "body")
	weights := mustFloatSource(t, "weights", []float64{1}, "WEIGHT")
	_, err := NewSkin("s", math3d.Identity(), []string{"A", "B"}, []math3d.Mat4{math3d.Identity()}, weights, nil, nil, g)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformedSource, derr.Kind)
}

func morphFixture(t *testing.T, method MorphMethod) *Morph {
	t.Helper()
	base := triangleGeometry(t, "base")
	target := triangleGeometry(t, "target")
	for i := range target.Position.Data {
		target.Position.Data[i] += 1
	}
	m, err := NewMorph("face-morph", method, base, []*Geometry{target}, []float64{0.5})
	require.NoError(t, err)
	return m
}

func TestMorphNormalized(t *testing.T) {
	m := morphFixture(t, MorphNormalized)
	bg, err := m.Bind(math3d.Identity(), nil).Evaluate([]float64{0.5})
	require.NoError(t, err)

	pos := bg.Positions()
	// (1-0.5)*base + 0.5*(base+1) = base + 0.5
	assert.True(t, pos[0].ApproxEqual(math3d.V3(0.5, 0.5, 0.5), 1e-12))
	assert.True(t, pos[1].ApproxEqual(math3d.V3(1.5, 0.5, 0.5), 1e-12))
}

func TestMorphRelative(t *testing.T) {
	m := morphFixture(t, MorphRelative)
	bg, err := m.Bind(math3d.Identity(), nil).Evaluate([]float64{0.5})
	require.NoError(t, err)

	pos := bg.Positions()
	// base + 0.5*(base+1)
	assert.True(t, pos[0].ApproxEqual(math3d.V3(0.5, 0.5, 0.5), 1e-12))
	assert.True(t, pos[1].ApproxEqual(math3d.V3(2, 0.5, 0.5), 1e-12))
}

func TestMorphWeightCountMismatch(t *testing.T) {
	m := morphFixture(t, MorphNormalized)
	_, err := m.Bind(math3d.Identity(), nil).Evaluate([]float64{0.5, 0.5})
	require.Error(t, err)
}

func TestControllerEvaluationDoesNotMutateGeometry(t *testing.T) {
	skin := skinFixture(t)
	before := append([]float64(nil), skin.Geometry.Position.Data...)

	pose := map[string]math3d.Mat4{"Root": math3d.Translate(math3d.V3(7, 7, 7))}
	_ = skin.Bind(math3d.Identity(), nil).Evaluate(pose)

	assert.Equal(t, before, skin.Geometry.Position.Data)
}

func TestControllerTraversal(t *testing.T) {
	skin := skinFixture(t)
	s := &Scene{ID: "scene", Nodes: []*Node{{
		ID:         "n",
		Transforms: []Transform{TranslateTransform{Offset: math3d.V3(0, 10, 0)}},
		Children:   []SceneItem{&ControllerInstance{Controller: skin}},
	}}}

	var bound []BoundController
	for bc, err := range s.Controllers() {
		require.NoError(t, err)
		bound = append(bound, bc)
	}
	require.Len(t, bound, 1)
	bs, ok := bound[0].(*BoundSkin)
	require.True(t, ok)

	pos := bs.Evaluate(nil).Positions()
	// The node's world transform applies on top of the skinned result.
	assert.True(t, pos[2].ApproxEqual(math3d.V3(0, 11, 0), 1e-12))
}
