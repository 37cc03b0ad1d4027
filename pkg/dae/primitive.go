package dae

import "github.com/taigrr/collada/pkg/math3d"

// Primitive is a shape batch inside a geometry: a closed set of variants
// (TriangleSet, LineSet, Polylist, Polygons) sharing index decoding, face
// iteration, triangulation, and a material symbol. Triangle strips and fans
// are converted to TriangleSet at load time.
type Primitive interface {
	// MaterialSymbol returns the symbolic material name the primitive was
	// declared with. It resolves to an actual Material only at bind time,
	// through the instantiating node's symbol table.
	MaterialSymbol() string
	// InputList returns the semantic bindings of the primitive.
	InputList() *InputList
	// FaceCount returns the number of faces (triangles, lines, polygons).
	FaceCount() int
	// Triangulate returns the primitive as a TriangleSet. Non-surface
	// primitives yield an empty set.
	Triangulate() *TriangleSet

	primitive()
}

// indexStream extracts the per-vertex index stream for one offset from a
// stride-multiplexed index array: index[offset], index[offset+stride], and
// so on. An empty index array decodes to an empty stream.
func indexStream(index []int, offset, stride int) []int {
	if stride <= 0 || len(index) == 0 {
		return nil
	}
	out := make([]int, 0, len(index)/stride)
	for i := offset; i < len(index); i += stride {
		out = append(out, index[i])
	}
	return out
}

// semanticStreams decodes the raw index array into one stream per declared
// input. Inputs sharing an offset share a stream.
type semanticStreams struct {
	vertex   []int
	normal   []int
	texcoord [][]int
	color    []int
}

func decodeStreams(index []int, il *InputList) semanticStreams {
	stride := il.Stride()
	var s semanticStreams
	if in := il.Find(SemanticVertex, 0); in != nil {
		s.vertex = indexStream(index, in.Offset, stride)
	}
	if in := il.Find(SemanticNormal, 0); in != nil {
		s.normal = indexStream(index, in.Offset, stride)
	}
	for _, in := range il.All(SemanticTexCoord) {
		s.texcoord = append(s.texcoord, indexStream(index, in.Offset, stride))
	}
	if in := il.Find(SemanticColor, 0); in != nil {
		s.color = indexStream(index, in.Offset, stride)
	}
	return s
}

// synthesizeNormals computes smooth per-vertex normals for faces over a
// position source. Each face contributes its plane normal, taken from the
// first three vertices in winding order, to every vertex it touches; the
// accumulated vectors are then normalized. Vertex identity is position-index
// equality. Degenerate faces and isolated vertices produce zero vectors,
// never NaN.
//
// The result is flat X/Y/Z data with one tuple per position tuple, so the
// position index stream doubles as the normal index stream.
func synthesizeNormals(pos *FloatSource, faces [][]int) []float64 {
	acc := make([]math3d.Vec3, pos.TupleCount())
	for _, face := range faces {
		if len(face) < 3 {
			continue
		}
		v0 := pos.Vec3(face[0])
		v1 := pos.Vec3(face[1])
		v2 := pos.Vec3(face[2])
		n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
		for _, vi := range face {
			acc[vi] = acc[vi].Add(n)
		}
	}
	data := make([]float64, 0, len(acc)*3)
	for _, v := range acc {
		n := v.Normalize()
		data = append(data, n.X, n.Y, n.Z)
	}
	return data
}
