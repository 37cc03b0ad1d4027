// Package export converts loaded documents into glTF 2.0 assets.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/collada/pkg/dae"
)

// ToGLTF flattens the document's active scene into a glTF document. Every
// geometry and controller instance is triangulated and exported with its
// world transform baked into the vertex data; controllers contribute their
// rest-pose shape. Positions, normals, and the first texture coordinate set
// are carried over, along with per-primitive material colors.
func ToGLTF(d *dae.Document) (*gltf.Document, error) {
	if d.Scene == nil {
		return nil, fmt.Errorf("export: document has no active scene")
	}
	b := &builder{
		out: &gltf.Document{
			Asset: gltf.Asset{Version: "2.0", Generator: "collada go library"},
		},
		materials: make(map[*dae.Material]int),
	}
	for bg, err := range d.Scene.Geometries() {
		if err != nil {
			return nil, fmt.Errorf("export scene %s: %w", d.Scene.ID, err)
		}
		b.addGeometry(bg)
	}
	for bc, err := range d.Scene.Controllers() {
		if err != nil {
			return nil, fmt.Errorf("export scene %s: %w", d.Scene.ID, err)
		}
		b.addGeometry(bc.BoundGeometry())
	}
	b.out.Scenes = append(b.out.Scenes, &gltf.Scene{Name: d.Scene.ID, Nodes: b.nodes})
	b.out.Scene = gltf.Index(0)
	return b.out, nil
}

// Save converts and writes the active scene: binary .glb for that extension,
// JSON .gltf with the buffer embedded as a data URI otherwise.
func Save(d *dae.Document, name string) error {
	doc, err := ToGLTF(d)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(name), ".glb") {
		if err := gltf.SaveBinary(doc, name); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		return nil
	}
	for _, buf := range doc.Buffers {
		buf.EmbeddedResource()
	}
	if err := gltf.Save(doc, name); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

type builder struct {
	out       *gltf.Document
	nodes     []int
	materials map[*dae.Material]int
}

var identity = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// addGeometry appends one mesh and node for a bound geometry. Instances with
// no triangulable primitives are skipped.
func (b *builder) addGeometry(bg *dae.BoundGeometry) {
	mesh := &gltf.Mesh{Name: bg.Geometry.ID}
	for _, bp := range bg.Primitives() {
		ts := bp.Triangulated()
		if ts.FaceCount() == 0 {
			continue
		}
		mesh.Primitives = append(mesh.Primitives, b.buildPrimitive(bp, ts))
	}
	if len(mesh.Primitives) == 0 {
		return
	}
	meshIdx := len(b.out.Meshes)
	b.out.Meshes = append(b.out.Meshes, mesh)
	nodeIdx := len(b.out.Nodes)
	b.out.Nodes = append(b.out.Nodes, &gltf.Node{
		Name:   bg.Geometry.ID,
		Mesh:   gltf.Index(meshIdx),
		Matrix: identity,
	})
	b.nodes = append(b.nodes, nodeIdx)
}

// buildPrimitive de-indexes the triangle set into per-corner attribute
// arrays. The multiplexed index streams mean one corner can combine any
// position with any normal, so corners are written out flat and indexed
// sequentially.
func (b *builder) buildPrimitive(bp *dae.BoundPrimitive, ts *dae.TriangleSet) *gltf.Primitive {
	faces := ts.FaceCount()
	hasNormals := ts.HasNormals()
	hasUV := len(ts.TexCoordIndex()) > 0

	positions := make([][3]float32, 0, faces*3)
	var normals [][3]float32
	var uvs [][2]float32
	indices := make([]uint32, 0, faces*3)

	for i := range faces {
		tri := bp.Triangle(ts, i)
		for c := range 3 {
			p := tri.Positions[c]
			positions = append(positions, [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
			if hasNormals {
				n := tri.Normals[c]
				normals = append(normals, [3]float32{float32(n.X), float32(n.Y), float32(n.Z)})
			}
			if hasUV && len(tri.TexCoords) > 0 {
				// glTF puts the texture origin at the top-left; flip V.
				t := tri.TexCoords[0][c]
				uvs = append(uvs, [2]float32{float32(t.X), float32(1 - t.Y)})
			}
			indices = append(indices, uint32(len(indices)))
		}
	}

	attrs := map[string]int{
		gltf.POSITION: modeler.WritePosition(b.out, positions),
	}
	if hasNormals {
		attrs[gltf.NORMAL] = modeler.WriteNormal(b.out, normals)
	}
	if len(uvs) > 0 {
		attrs[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(b.out, uvs)
	}
	prim := &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(modeler.WriteIndices(b.out, indices)),
		Mode:       gltf.PrimitiveTriangles,
	}
	if bp.Material != nil {
		prim.Material = gltf.Index(b.materialIndex(bp.Material))
	}
	return prim
}

// materialIndex returns the glTF material for a document material, creating
// it on first use. The effect's diffuse color becomes the base color factor.
func (b *builder) materialIndex(m *dae.Material) int {
	if idx, ok := b.materials[m]; ok {
		return idx
	}
	gm := &gltf.Material{Name: m.ID}
	if e := m.Effect; e != nil {
		color := e.Diffuse.Color
		if color == ([4]float64{}) {
			color = [4]float64{1, 1, 1, 1}
		}
		gm.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{
				color[0], color[1], color[2], color[3],
			},
		}
		gm.DoubleSided = e.DoubleSided
	}
	idx := len(b.out.Materials)
	b.out.Materials = append(b.out.Materials, gm)
	b.materials[m] = idx
	return idx
}
