package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/collada/pkg/dae"
	"github.com/taigrr/collada/pkg/math3d"
)

// triangleDoc builds a one-triangle document: authored normals, one texcoord
// set, a red material, and a node translated by (1, 0, 0).
func triangleDoc(t *testing.T) *dae.Document {
	t.Helper()
	pos, err := dae.NewFloatSource("tri-pos", []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	}, "X", "Y", "Z")
	require.NoError(t, err)
	norm, err := dae.NewFloatSource("tri-norm", []float64{
		0, 0, 1,
		0, 0, 1,
		0, 0, 1,
	}, "X", "Y", "Z")
	require.NoError(t, err)
	uv, err := dae.NewFloatSource("tri-uv", []float64{
		0, 0,
		1, 0,
		0, 1,
	}, "S", "T")
	require.NoError(t, err)

	il, err := dae.NewInputList([]dae.Input{
		{Offset: 0, Semantic: dae.SemanticVertex, Source: pos},
		{Offset: 1, Semantic: dae.SemanticNormal, Source: norm},
		{Offset: 2, Semantic: dae.SemanticTexCoord, Source: uv},
	})
	require.NoError(t, err)
	ts, err := dae.NewTriangleSet("shade", il, []int{
		0, 0, 0,
		1, 1, 1,
		2, 2, 2,
	})
	require.NoError(t, err)

	g := dae.NewGeometry("tri", "tri", []*dae.FloatSource{pos, norm, uv})
	g.Position = pos
	g.Primitives = []dae.Primitive{ts}

	doc := dae.New()
	require.NoError(t, doc.AddGeometry(g))
	mat := &dae.Material{ID: "red", Effect: &dae.Effect{
		Shade:   dae.ShadeLambert,
		Diffuse: dae.ColorOrTexture{Color: [4]float64{0.8, 0.1, 0.1, 1}},
	}}
	require.NoError(t, doc.AddMaterial(mat))
	require.NoError(t, doc.AddScene(&dae.Scene{ID: "scene", Nodes: []*dae.Node{{
		ID:         "n",
		Transforms: []dae.Transform{dae.TranslateTransform{Offset: math3d.V3(1, 0, 0)}},
		Children: []dae.SceneItem{&dae.GeometryInstance{
			Geometry:  g,
			Materials: map[string]*dae.Material{"shade": mat},
		}},
	}}}))
	return doc
}

func TestToGLTFTriangle(t *testing.T) {
	out, err := ToGLTF(triangleDoc(t))
	require.NoError(t, err)

	require.Len(t, out.Meshes, 1)
	require.Len(t, out.Meshes[0].Primitives, 1)
	prim := out.Meshes[0].Primitives[0]
	require.Contains(t, prim.Attributes, gltf.POSITION)
	require.Contains(t, prim.Attributes, gltf.NORMAL)
	require.Contains(t, prim.Attributes, gltf.TEXCOORD_0)
	require.NotNil(t, prim.Indices)

	positions, err := modeler.ReadPosition(out, out.Accessors[prim.Attributes[gltf.POSITION]], nil)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	// The node's translation is baked into the vertex data.
	assert.InDelta(t, 1, positions[0][0], 1e-6)
	assert.InDelta(t, 2, positions[1][0], 1e-6)
	assert.InDelta(t, 1, positions[2][1], 1e-6)

	normals, err := modeler.ReadNormal(out, out.Accessors[prim.Attributes[gltf.NORMAL]], nil)
	require.NoError(t, err)
	for _, n := range normals {
		assert.InDelta(t, 1, n[2], 1e-6)
	}

	indices, err := modeler.ReadIndices(out, out.Accessors[*prim.Indices], nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, indices)

	require.NotNil(t, prim.Material)
	mat := out.Materials[*prim.Material]
	assert.Equal(t, "red", mat.Name)
	require.NotNil(t, mat.PBRMetallicRoughness)
	require.NotNil(t, mat.PBRMetallicRoughness.BaseColorFactor)
	assert.InDelta(t, 0.8, float64(mat.PBRMetallicRoughness.BaseColorFactor[0]), 1e-6)

	require.NotNil(t, out.Scene)
	require.Len(t, out.Scenes, 1)
	assert.Len(t, out.Scenes[0].Nodes, 1)
}

func TestToGLTFFlipsTextureV(t *testing.T) {
	out, err := ToGLTF(triangleDoc(t))
	require.NoError(t, err)

	prim := out.Meshes[0].Primitives[0]
	uvs, err := modeler.ReadTextureCoord(out, out.Accessors[prim.Attributes[gltf.TEXCOORD_0]], nil)
	require.NoError(t, err)
	require.Len(t, uvs, 3)
	assert.InDelta(t, 1, uvs[0][1], 1e-6)
	assert.InDelta(t, 0, uvs[2][1], 1e-6)
}

func TestToGLTFNoScene(t *testing.T) {
	_, err := ToGLTF(dae.New())
	require.Error(t, err)
}

func TestToGLTFSkinRestPose(t *testing.T) {
	pos, err := dae.NewFloatSource("body-pos", []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	}, "X", "Y", "Z")
	require.NoError(t, err)
	il, err := dae.NewInputList([]dae.Input{{Offset: 0, Semantic: dae.SemanticVertex, Source: pos}})
	require.NoError(t, err)
	ts, err := dae.NewTriangleSet("", il, []int{0, 1, 2})
	require.NoError(t, err)
	g := dae.NewGeometry("body", "body", []*dae.FloatSource{pos})
	g.Position = pos
	g.Primitives = []dae.Primitive{ts}

	weights, err := dae.NewFloatSource("weights", []float64{1, 0.5}, "WEIGHT")
	require.NoError(t, err)
	skin, err := dae.NewSkin(
		"body-skin",
		math3d.Identity(),
		[]string{"Root"},
		[]math3d.Mat4{math3d.Identity()},
		weights,
		[]int{1, 1, 1},
		[]int{0, 0, 0, 1, 0, 0},
		g,
	)
	require.NoError(t, err)

	doc := dae.New()
	require.NoError(t, doc.AddGeometry(g))
	require.NoError(t, doc.AddController(skin))
	require.NoError(t, doc.AddScene(&dae.Scene{ID: "scene", Nodes: []*dae.Node{{
		ID:       "n",
		Children: []dae.SceneItem{&dae.ControllerInstance{Controller: skin}},
	}}}))

	out, err := ToGLTF(doc)
	require.NoError(t, err)
	require.Len(t, out.Meshes, 1)
	prim := out.Meshes[0].Primitives[0]
	positions, err := modeler.ReadPosition(out, out.Accessors[prim.Attributes[gltf.POSITION]], nil)
	require.NoError(t, err)
	// Vertex 1 carries a half weight and exports at its skinned rest
	// position, not the authored one.
	assert.InDelta(t, 0.5, positions[1][0], 1e-6)
}

func TestSave(t *testing.T) {
	doc := triangleDoc(t)
	dir := t.TempDir()

	glb := filepath.Join(dir, "out.glb")
	require.NoError(t, Save(doc, glb))
	info, err := os.Stat(glb)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	asJSON := filepath.Join(dir, "out.gltf")
	require.NoError(t, Save(doc, asJSON))
	data, err := os.ReadFile(asJSON)
	require.NoError(t, err)
	// The JSON flavor embeds the buffer so the file stands alone.
	assert.Contains(t, string(data), "data:application/octet-stream;base64,")
}
