package dae

import "sort"

// Semantic names the attribute role an input binds a source to.
type Semantic string

const (
	SemanticVertex      Semantic = "VERTEX"
	SemanticPosition    Semantic = "POSITION"
	SemanticNormal      Semantic = "NORMAL"
	SemanticTexCoord    Semantic = "TEXCOORD"
	SemanticTexTangent  Semantic = "TEXTANGENT"
	SemanticTexBinormal Semantic = "TEXBINORMAL"
	SemanticColor       Semantic = "COLOR"
	SemanticTangent     Semantic = "TANGENT"
	SemanticBinormal    Semantic = "BINORMAL"
)

// Input binds a semantic to a source at an index-array offset. Texture
// coordinate channels carry a set number; everything else uses set 0.
type Input struct {
	Offset   int
	Semantic Semantic
	Source   *FloatSource
	Set      int

	// SourceRef is the reference string the input was declared with,
	// preserved so the writer can re-emit a vertices-style indirection.
	SourceRef string
}

// InputList is the ordered set of inputs declared by one primitive.
//
// VERTEX inputs are expected to already be resolved through the geometry's
// vertices wrapper to the POSITION source before the list is built.
type InputList struct {
	inputs []Input
}

// NewInputList builds an input list and checks the offset invariant: the
// declared offsets must form a dense zero-based set, since the stride of the
// primitive index array is the number of distinct offsets.
func NewInputList(inputs []Input) (*InputList, error) {
	seen := make(map[int]bool)
	for _, in := range inputs {
		if in.Offset < 0 {
			return nil, errMalformed("", "input %s has negative offset %d", in.Semantic, in.Offset)
		}
		seen[in.Offset] = true
	}
	for k := range len(seen) {
		if !seen[k] {
			return nil, errMalformed("", "input offsets are not dense: offset %d missing", k)
		}
	}
	return &InputList{inputs: inputs}, nil
}

// clone returns a list backed by its own input array, so appending a
// synthesized input to one list leaves the other unchanged.
func (il *InputList) clone() *InputList {
	return &InputList{inputs: append([]Input(nil), il.inputs...)}
}

// Inputs returns the declared inputs in declaration order.
func (il *InputList) Inputs() []Input {
	return il.inputs
}

// Stride returns the number of distinct offsets, which is the stride of the
// primitive index array. An empty list has stride 0.
func (il *InputList) Stride() int {
	max := -1
	seen := make(map[int]bool)
	for _, in := range il.inputs {
		if !seen[in.Offset] {
			seen[in.Offset] = true
		}
		if in.Offset > max {
			max = in.Offset
		}
	}
	return max + 1
}

// Find returns the input for a semantic and set, or nil.
func (il *InputList) Find(sem Semantic, set int) *Input {
	for i := range il.inputs {
		if il.inputs[i].Semantic == sem && il.inputs[i].Set == set {
			return &il.inputs[i]
		}
	}
	return nil
}

// All returns every input with the given semantic, ordered by set number.
// Used to enumerate texture coordinate channels.
func (il *InputList) All(sem Semantic) []Input {
	var out []Input
	for _, in := range il.inputs {
		if in.Semantic == sem {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Set < out[j].Set })
	return out
}
