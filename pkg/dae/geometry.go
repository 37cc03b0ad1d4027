package dae

import "github.com/taigrr/collada/pkg/math3d"

// Geometry owns a set of sources and the primitives indexing into them.
type Geometry struct {
	ID   string
	Name string

	// VerticesID is the id of the geometry's vertices wrapper, the
	// indirection primitives point their VERTEX inputs at.
	VerticesID string
	// Position is the source the vertices wrapper maps POSITION to.
	Position *FloatSource

	Primitives []Primitive

	// DoubleSided is carried from the authoring tool's extra data.
	DoubleSided bool

	sources     map[string]*FloatSource
	sourceOrder []string
}

// NewGeometry builds a geometry over the given sources.
func NewGeometry(id, name string, sources []*FloatSource) *Geometry {
	g := &Geometry{
		ID:         id,
		Name:       name,
		VerticesID: id + "-vertices",
		sources:    make(map[string]*FloatSource),
	}
	for _, s := range sources {
		g.AddSource(s)
	}
	return g
}

// AddSource registers a source with the geometry. Re-adding an id replaces
// the entry without changing its order.
func (g *Geometry) AddSource(s *FloatSource) {
	if _, ok := g.sources[s.ID]; !ok {
		g.sourceOrder = append(g.sourceOrder, s.ID)
	}
	g.sources[s.ID] = s
}

// Source returns the source with the given id, or nil.
func (g *Geometry) Source(id string) *FloatSource {
	return g.sources[id]
}

// Sources returns the geometry's sources in declaration order.
func (g *Geometry) Sources() []*FloatSource {
	out := make([]*FloatSource, 0, len(g.sourceOrder))
	for _, id := range g.sourceOrder {
		out = append(out, g.sources[id])
	}
	return out
}

// GenerateNormals synthesizes normals on every surface primitive lacking
// them and registers the synthesized sources with the geometry.
func (g *Geometry) GenerateNormals() {
	for _, p := range g.Primitives {
		var src *FloatSource
		switch prim := p.(type) {
		case *TriangleSet:
			src = prim.GenerateNormals()
		case *Polygons:
			src = prim.GenerateNormals()
		case *Polylist:
			src = prim.GenerateNormals()
		}
		if src != nil {
			g.AddSource(src)
		}
	}
}

// Bind produces the transformed, material-resolved view of the geometry
// used during scene traversal. Symbols missing from the table resolve to a
// nil material; the traversal decides whether that is an error.
func (g *Geometry) Bind(matrix math3d.Mat4, materials map[string]*Material) *BoundGeometry {
	return &BoundGeometry{
		Geometry:     g,
		Matrix:       matrix,
		Materials:    materials,
		normalMatrix: matrix.NormalMatrix(),
	}
}

// BoundGeometry is an ephemeral view of a geometry instance: the geometry's
// data seen through a world transform and a resolved material table. It
// references the underlying sources, never copies them, and is regenerated
// on every traversal.
type BoundGeometry struct {
	Geometry  *Geometry
	Matrix    math3d.Mat4
	Materials map[string]*Material

	normalMatrix math3d.Mat4

	// substituted object-space positions, one per position tuple, set by
	// controller evaluation in place of the source data.
	substituted []math3d.Vec3
}

// Primitives returns one bound view per underlying primitive.
func (bg *BoundGeometry) Primitives() []*BoundPrimitive {
	out := make([]*BoundPrimitive, 0, len(bg.Geometry.Primitives))
	for _, p := range bg.Geometry.Primitives {
		out = append(out, &BoundPrimitive{
			Primitive: p,
			Material:  bg.Materials[p.MaterialSymbol()],
			geom:      bg,
		})
	}
	return out
}

// withSubstituted clones the view with replacement object-space positions.
// Used by controller evaluation; the underlying Geometry is not touched.
func (bg *BoundGeometry) withSubstituted(pos []math3d.Vec3) *BoundGeometry {
	clone := *bg
	clone.substituted = pos
	return &clone
}

// Positions returns the world-space position of every tuple of the
// geometry's position source, after any controller substitution.
func (bg *BoundGeometry) Positions() []math3d.Vec3 {
	src := bg.Geometry.Position
	if src == nil {
		return nil
	}
	out := make([]math3d.Vec3, src.TupleCount())
	for i := range out {
		out[i] = bg.positionAt(src, i)
	}
	return out
}

// positionAt returns the world-space position for position tuple i.
func (bg *BoundGeometry) positionAt(src *FloatSource, i int) math3d.Vec3 {
	if bg.substituted != nil && src == bg.Geometry.Position && i < len(bg.substituted) {
		return bg.Matrix.MulVec3(bg.substituted[i])
	}
	return bg.Matrix.MulVec3(src.Vec3(i))
}

// normalAt returns the world-space normal for normal tuple i. Normals go
// through the inverse-transpose of the linear part so non-uniform scaling
// keeps them perpendicular.
func (bg *BoundGeometry) normalAt(src *FloatSource, i int) math3d.Vec3 {
	return bg.normalMatrix.MulVec3Dir(src.Vec3(i)).Normalize()
}

// BoundPrimitive is one primitive of a BoundGeometry with its material
// symbol resolved. Material is nil when the instance's symbol table has no
// entry for the primitive's symbol.
type BoundPrimitive struct {
	Primitive Primitive
	Material  *Material

	geom *BoundGeometry
}

// FaceCount returns the face count of the underlying primitive.
func (bp *BoundPrimitive) FaceCount() int {
	return bp.Primitive.FaceCount()
}

// Triangulated returns the underlying primitive as a triangle set.
func (bp *BoundPrimitive) Triangulated() *TriangleSet {
	return bp.Primitive.Triangulate()
}

// Triangle gathers triangle i of the triangulated primitive with world
// transforms applied to positions and normals.
func (bp *BoundPrimitive) Triangle(t *TriangleSet, i int) Triangle {
	tri := t.Triangle(i)
	pos := t.VertexSource()
	for c := range 3 {
		if pos != nil {
			tri.Positions[c] = bp.geom.positionAt(pos, tri.Indices[c])
		}
	}
	if norm := t.NormalSource(); norm != nil && tri.HasNormals {
		for c := range 3 {
			tri.Normals[c] = bp.geom.normalAt(norm, t.NormalIndex()[i*3+c])
		}
	}
	return tri
}
