package dae

import "github.com/taigrr/collada/pkg/math3d"

// TriangleSet is a batch of triangles over shared sources. Its raw index
// array interleaves one index per input offset for each of the 3*count
// triangle corners.
type TriangleSet struct {
	symbol string
	inputs *InputList
	index  []int

	streams semanticStreams
	count   int

	synthesized *FloatSource
}

// NewTriangleSet builds a triangle set from a stride-multiplexed index
// array. The array length must divide evenly by the input stride and yield
// whole triangles, and an index-bearing set must declare a VERTEX input.
// An empty index array is a valid, empty primitive.
func NewTriangleSet(symbol string, inputs *InputList, index []int) (*TriangleSet, error) {
	t := &TriangleSet{symbol: symbol, inputs: inputs, index: index}
	stride := inputs.Stride()
	if len(index) > 0 {
		if stride == 0 {
			return nil, errMalformed("triangles", "index array present but no inputs declared")
		}
		if inputs.Find(SemanticVertex, 0) == nil {
			return nil, errMalformed("triangles", "index array present but no vertex input")
		}
		if len(index)%stride != 0 {
			return nil, errMalformed("triangles", "index length %d not divisible by stride %d", len(index), stride)
		}
		if (len(index)/stride)%3 != 0 {
			return nil, errMalformed("triangles", "index array does not contain whole triangles")
		}
	}
	t.streams = decodeStreams(index, inputs)
	t.count = len(t.streams.vertex) / 3
	return t, nil
}

// triangleSetFromStrips converts triangle strips to a plain triangle set.
// Each strip is one stride-multiplexed index array; a strip of k vertices
// yields k-2 triangles with alternating winding corrected.
func triangleSetFromStrips(symbol string, inputs *InputList, strips [][]int) (*TriangleSet, error) {
	stride := inputs.Stride()
	var index []int
	for _, strip := range strips {
		if stride == 0 || len(strip)%stride != 0 {
			return nil, errMalformed("tristrips", "strip length %d not divisible by stride %d", len(strip), stride)
		}
		n := len(strip) / stride
		corner := func(i int) []int { return strip[i*stride : (i+1)*stride] }
		for i := 0; i+2 < n; i++ {
			a, b, c := i, i+1, i+2
			if i%2 == 1 {
				a, b = b, a
			}
			index = append(index, corner(a)...)
			index = append(index, corner(b)...)
			index = append(index, corner(c)...)
		}
	}
	return NewTriangleSet(symbol, inputs, index)
}

// triangleSetFromFans converts triangle fans to a plain triangle set. A fan
// of k vertices yields k-2 triangles anchored at the first vertex.
func triangleSetFromFans(symbol string, inputs *InputList, fans [][]int) (*TriangleSet, error) {
	stride := inputs.Stride()
	var index []int
	for _, fan := range fans {
		if stride == 0 || len(fan)%stride != 0 {
			return nil, errMalformed("trifans", "fan length %d not divisible by stride %d", len(fan), stride)
		}
		n := len(fan) / stride
		corner := func(i int) []int { return fan[i*stride : (i+1)*stride] }
		for i := 1; i+1 < n; i++ {
			index = append(index, corner(0)...)
			index = append(index, corner(i)...)
			index = append(index, corner(i+1)...)
		}
	}
	return NewTriangleSet(symbol, inputs, index)
}

func (t *TriangleSet) MaterialSymbol() string { return t.symbol }
func (t *TriangleSet) InputList() *InputList  { return t.inputs }

// FaceCount returns the number of triangles.
func (t *TriangleSet) FaceCount() int { return t.count }

// Triangulate returns the set itself.
func (t *TriangleSet) Triangulate() *TriangleSet { return t }

// RawIndex returns the stride-multiplexed index array.
func (t *TriangleSet) RawIndex() []int { return t.index }

// VertexIndex returns the flat position index stream, 3 entries per
// triangle.
func (t *TriangleSet) VertexIndex() []int { return t.streams.vertex }

// NormalIndex returns the flat normal index stream, or nil when the set has
// no normals.
func (t *TriangleSet) NormalIndex() []int { return t.streams.normal }

// TexCoordIndex returns one flat index stream per texture coordinate set.
func (t *TriangleSet) TexCoordIndex() [][]int { return t.streams.texcoord }

// VertexSource returns the position source, or nil for an input-less set.
func (t *TriangleSet) VertexSource() *FloatSource {
	if in := t.inputs.Find(SemanticVertex, 0); in != nil {
		return in.Source
	}
	return nil
}

// NormalSource returns the normal source, authored or synthesized, or nil.
func (t *TriangleSet) NormalSource() *FloatSource {
	if in := t.inputs.Find(SemanticNormal, 0); in != nil {
		return in.Source
	}
	return nil
}

// TexCoordSources returns the texture coordinate sources ordered by set.
func (t *TriangleSet) TexCoordSources() []*FloatSource {
	var out []*FloatSource
	for _, in := range t.inputs.All(SemanticTexCoord) {
		out = append(out, in.Source)
	}
	return out
}

// HasNormals reports whether the set carries a normal channel.
func (t *TriangleSet) HasNormals() bool {
	return t.NormalSource() != nil
}

// GenerateNormals synthesizes smooth per-vertex normals when the set has no
// authored normal channel. The synthesized channel shares the position index
// stream, so the raw index array is unchanged. Calling it again recomputes
// from the same positions and topology and yields the same normals.
func (t *TriangleSet) GenerateNormals() *FloatSource {
	if t.NormalSource() != nil && t.synthesized == nil {
		return nil
	}
	pos := t.VertexSource()
	if pos == nil {
		return nil
	}
	faces := make([][]int, 0, t.count)
	for i := range t.count {
		faces = append(faces, t.streams.vertex[i*3:i*3+3])
	}
	data := synthesizeNormals(pos, faces)
	src, _ := NewFloatSource(pos.ID+"-normals", data, "X", "Y", "Z")
	if t.synthesized != nil {
		*t.synthesized = *src
		return t.synthesized
	}
	t.synthesized = src
	vin := t.inputs.Find(SemanticVertex, 0)
	t.inputs.inputs = append(t.inputs.inputs, Input{
		Offset:    vin.Offset,
		Semantic:  SemanticNormal,
		Source:    src,
		SourceRef: "#" + src.ID,
	})
	t.streams.normal = t.streams.vertex
	return src
}

// Triangle is one decoded triangle with its attribute tuples gathered from
// the backing sources.
type Triangle struct {
	Indices   [3]int
	Positions [3]math3d.Vec3
	Normals   [3]math3d.Vec3
	TexCoords [][3]math3d.Vec2

	HasNormals bool
}

// Triangle gathers triangle i.
func (t *TriangleSet) Triangle(i int) Triangle {
	var tri Triangle
	pos := t.VertexSource()
	for c := range 3 {
		tri.Indices[c] = t.streams.vertex[i*3+c]
		if pos != nil {
			tri.Positions[c] = pos.Vec3(tri.Indices[c])
		}
	}
	if norm := t.NormalSource(); norm != nil && len(t.streams.normal) > 0 {
		tri.HasNormals = true
		for c := range 3 {
			tri.Normals[c] = norm.Vec3(t.streams.normal[i*3+c])
		}
	}
	for set, src := range t.TexCoordSources() {
		stream := t.streams.texcoord[set]
		var uv [3]math3d.Vec2
		for c := range 3 {
			uv[c] = src.Vec2(stream[i*3+c])
		}
		tri.TexCoords = append(tri.TexCoords, uv)
	}
	return tri
}

func (t *TriangleSet) primitive() {}
