package dae

import "github.com/taigrr/collada/pkg/math3d"

// LineSet is a batch of line segments, two indexed corners per line.
type LineSet struct {
	symbol string
	inputs *InputList
	index  []int

	streams semanticStreams
	count   int
}

// NewLineSet builds a line set from a stride-multiplexed index array. An
// index-bearing set must declare a VERTEX input.
func NewLineSet(symbol string, inputs *InputList, index []int) (*LineSet, error) {
	l := &LineSet{symbol: symbol, inputs: inputs, index: index}
	stride := inputs.Stride()
	if len(index) > 0 {
		if stride == 0 {
			return nil, errMalformed("lines", "index array present but no inputs declared")
		}
		if inputs.Find(SemanticVertex, 0) == nil {
			return nil, errMalformed("lines", "index array present but no vertex input")
		}
		if len(index)%stride != 0 {
			return nil, errMalformed("lines", "index length %d not divisible by stride %d", len(index), stride)
		}
		if (len(index)/stride)%2 != 0 {
			return nil, errMalformed("lines", "index array does not contain whole lines")
		}
	}
	l.streams = decodeStreams(index, inputs)
	l.count = len(l.streams.vertex) / 2
	return l, nil
}

func (l *LineSet) MaterialSymbol() string { return l.symbol }
func (l *LineSet) InputList() *InputList  { return l.inputs }

// FaceCount returns the number of line segments.
func (l *LineSet) FaceCount() int { return l.count }

// Triangulate yields an empty triangle set; lines have no surface.
func (l *LineSet) Triangulate() *TriangleSet {
	il, _ := NewInputList(nil)
	t, _ := NewTriangleSet(l.symbol, il, nil)
	return t
}

// RawIndex returns the stride-multiplexed index array.
func (l *LineSet) RawIndex() []int { return l.index }

// VertexIndex returns the flat position index stream, 2 entries per line.
func (l *LineSet) VertexIndex() []int { return l.streams.vertex }

// VertexSource returns the position source, or nil for an input-less set.
func (l *LineSet) VertexSource() *FloatSource {
	if in := l.inputs.Find(SemanticVertex, 0); in != nil {
		return in.Source
	}
	return nil
}

// Line is one decoded segment.
type Line struct {
	Indices   [2]int
	Positions [2]math3d.Vec3
}

// Line gathers segment i.
func (l *LineSet) Line(i int) Line {
	var ln Line
	pos := l.VertexSource()
	for c := range 2 {
		ln.Indices[c] = l.streams.vertex[i*2+c]
		if pos != nil {
			ln.Positions[c] = pos.Vec3(ln.Indices[c])
		}
	}
	return ln
}

func (l *LineSet) primitive() {}
