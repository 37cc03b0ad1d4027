package dae

import "github.com/taigrr/collada/pkg/math3d"

// Polylist is a batch of polygons sharing one flat stride-multiplexed index
// array, with a per-face vertex count array marking the face boundaries.
type Polylist struct {
	symbol  string
	inputs  *InputList
	vcounts []int
	index   []int

	streams semanticStreams
	// starts holds each face's first corner position in the decoded
	// streams, plus a final end sentinel.
	starts []int

	synthesized *FloatSource
}

// NewPolylist builds a polylist. The index array must hold exactly
// sum(vcounts) corners at the declared input stride, and a non-empty list
// must declare a VERTEX input.
func NewPolylist(symbol string, inputs *InputList, vcounts, index []int) (*Polylist, error) {
	p := &Polylist{symbol: symbol, inputs: inputs, vcounts: vcounts, index: index}
	stride := inputs.Stride()
	total := 0
	for _, vc := range vcounts {
		if vc < 0 {
			return nil, errMalformed("polylist", "negative vertex count %d", vc)
		}
		total += vc
	}
	if total > 0 && stride == 0 {
		return nil, errMalformed("polylist", "vertex counts present but no inputs declared")
	}
	if total > 0 && inputs.Find(SemanticVertex, 0) == nil {
		return nil, errMalformed("polylist", "vertex counts present but no vertex input")
	}
	if total*stride != len(index) {
		return nil, errMalformed("polylist", "index length %d, want %d corners at stride %d", len(index), total, stride)
	}
	p.streams = decodeStreams(index, inputs)
	p.starts = make([]int, 0, len(vcounts)+1)
	at := 0
	for _, vc := range vcounts {
		p.starts = append(p.starts, at)
		at += vc
	}
	p.starts = append(p.starts, at)
	return p, nil
}

func (p *Polylist) MaterialSymbol() string { return p.symbol }
func (p *Polylist) InputList() *InputList  { return p.inputs }

// FaceCount returns the number of polygons.
func (p *Polylist) FaceCount() int { return len(p.vcounts) }

// VCounts returns the per-face vertex counts.
func (p *Polylist) VCounts() []int { return p.vcounts }

// RawIndex returns the stride-multiplexed index array.
func (p *Polylist) RawIndex() []int { return p.index }

// VertexIndex returns the flat position index stream across all faces.
func (p *Polylist) VertexIndex() []int { return p.streams.vertex }

// VertexSource returns the position source, or nil for an input-less list.
func (p *Polylist) VertexSource() *FloatSource {
	if in := p.inputs.Find(SemanticVertex, 0); in != nil {
		return in.Source
	}
	return nil
}

// NormalSource returns the normal source, authored or synthesized, or nil.
func (p *Polylist) NormalSource() *FloatSource {
	if in := p.inputs.Find(SemanticNormal, 0); in != nil {
		return in.Source
	}
	return nil
}

// Polygon is one decoded face.
type Polygon struct {
	Indices   []int
	Positions []math3d.Vec3
}

// Face gathers polygon i.
func (p *Polylist) Face(i int) Polygon {
	lo, hi := p.starts[i], p.starts[i+1]
	poly := Polygon{Indices: p.streams.vertex[lo:hi]}
	if pos := p.VertexSource(); pos != nil {
		poly.Positions = make([]math3d.Vec3, 0, hi-lo)
		for _, vi := range poly.Indices {
			poly.Positions = append(poly.Positions, pos.Vec3(vi))
		}
	}
	return poly
}

// Triangulate fan-triangulates every face: a convex face v0..v(n-1) becomes
// the n-2 triangles (v0,v1,v2), (v0,v2,v3), and so on, each corner keeping
// the per-semantic indices of the source corner. Faces with fewer than three
// vertices emit nothing. An empty polylist yields an empty triangle set.
func (p *Polylist) Triangulate() *TriangleSet {
	stride := p.inputs.Stride()
	corner := func(c int) []int { return p.index[c*stride : (c+1)*stride] }
	var out []int
	for f, vc := range p.vcounts {
		base := p.starts[f]
		for k := 1; k+1 < vc; k++ {
			out = append(out, corner(base)...)
			out = append(out, corner(base+k)...)
			out = append(out, corner(base+k+1)...)
		}
	}
	t, _ := NewTriangleSet(p.symbol, p.inputs.clone(), out)
	return t
}

// GenerateNormals synthesizes smooth per-vertex normals when the polylist
// has no authored normal channel, using each face's plane normal. The
// synthesized channel shares the position index stream. Idempotent for
// unchanged topology and positions.
func (p *Polylist) GenerateNormals() *FloatSource {
	if p.NormalSource() != nil && p.synthesized == nil {
		return nil
	}
	pos := p.VertexSource()
	if pos == nil {
		return nil
	}
	faces := make([][]int, 0, len(p.vcounts))
	for f := range p.vcounts {
		faces = append(faces, p.streams.vertex[p.starts[f]:p.starts[f+1]])
	}
	data := synthesizeNormals(pos, faces)
	src, _ := NewFloatSource(pos.ID+"-normals", data, "X", "Y", "Z")
	if p.synthesized != nil {
		*p.synthesized = *src
		return p.synthesized
	}
	p.synthesized = src
	vin := p.inputs.Find(SemanticVertex, 0)
	p.inputs.inputs = append(p.inputs.inputs, Input{
		Offset:    vin.Offset,
		Semantic:  SemanticNormal,
		Source:    src,
		SourceRef: "#" + src.ID,
	})
	p.streams.normal = p.streams.vertex
	return src
}

func (p *Polylist) primitive() {}

// Polygons is a batch of individually declared polygons. It shares the
// Polylist representation; only the serialized form differs. Polygons
// declared with holes keep their outer boundary only, which the loader
// records as an unsupported feature.
type Polygons struct {
	Polylist
}

// NewPolygons builds a polygon batch from one stride-multiplexed index
// array per face.
func NewPolygons(symbol string, inputs *InputList, faces [][]int) (*Polygons, error) {
	stride := inputs.Stride()
	var (
		vcounts []int
		index   []int
	)
	for _, face := range faces {
		if stride == 0 || len(face)%stride != 0 {
			return nil, errMalformed("polygons", "face length %d not divisible by stride %d", len(face), stride)
		}
		vcounts = append(vcounts, len(face)/stride)
		index = append(index, face...)
	}
	p, err := NewPolylist(symbol, inputs, vcounts, index)
	if err != nil {
		return nil, err
	}
	return &Polygons{Polylist: *p}, nil
}
