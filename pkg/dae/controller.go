package dae

import (
	"fmt"

	"github.com/taigrr/collada/pkg/math3d"
)

// Controller deforms a base geometry: a Skin blends vertices by weighted
// joint transforms, a Morph blends whole-geometry targets.
type Controller interface {
	ControllerID() string
	// BaseGeometry returns the geometry the controller deforms.
	BaseGeometry() *Geometry

	bind(matrix math3d.Mat4, materials map[string]*Material) BoundController
	controller()
}

// BoundController is a controller instance seen through its node's world
// transform. BoundGeometry evaluates the controller in its rest
// configuration; the concrete BoundSkin and BoundMorph types expose posed
// evaluation.
type BoundController interface {
	BoundGeometry() *BoundGeometry
}

// Skin deforms a geometry by blending each vertex over its (joint, weight)
// influence pairs.
type Skin struct {
	ID string

	// BindShape positions the base geometry in the armature's space
	// before any joint applies.
	BindShape math3d.Mat4

	// JointNames and InverseBind run in parallel: joint i's inverse bind
	// matrix is InverseBind[i].
	JointNames  []string
	InverseBind []math3d.Mat4

	// Weights backs the weight indices in V.
	Weights *FloatSource
	// VCounts holds the influence count per vertex; V interleaves
	// (joint index, weight index) pairs, VCounts[i] of them for vertex i.
	// A joint index of -1 binds the influence to the bind shape.
	VCounts []int
	V       []int

	Geometry *Geometry
}

// NewSkin validates the joint and influence arrays.
func NewSkin(id string, bindShape math3d.Mat4, joints []string, invBind []math3d.Mat4, weights *FloatSource, vcounts, v []int, geom *Geometry) (*Skin, error) {
	if len(joints) != len(invBind) {
		return nil, errMalformedSource(id, "%d joints but %d inverse bind matrices", len(joints), len(invBind))
	}
	total := 0
	for _, vc := range vcounts {
		total += vc
	}
	if total*2 != len(v) {
		return nil, errMalformed(id, "influence array has %d entries, want %d", len(v), total*2)
	}
	return &Skin{
		ID:          id,
		BindShape:   bindShape,
		JointNames:  joints,
		InverseBind: invBind,
		Weights:     weights,
		VCounts:     vcounts,
		V:           v,
		Geometry:    geom,
	}, nil
}

func (s *Skin) ControllerID() string    { return s.ID }
func (s *Skin) BaseGeometry() *Geometry { return s.Geometry }

// Bind attaches a world transform and material table.
func (s *Skin) Bind(matrix math3d.Mat4, materials map[string]*Material) *BoundSkin {
	return &BoundSkin{Skin: s, matrix: matrix, materials: materials}
}

func (s *Skin) bind(matrix math3d.Mat4, materials map[string]*Material) BoundController {
	return s.Bind(matrix, materials)
}

func (s *Skin) controller() {}

// BoundSkin is a skin instance awaiting a joint pose.
type BoundSkin struct {
	Skin *Skin

	matrix    math3d.Mat4
	materials map[string]*Material
}

// BoundGeometry evaluates the skin in its rest pose.
func (bs *BoundSkin) BoundGeometry() *BoundGeometry {
	return bs.Evaluate(nil)
}

// Evaluate deforms the base geometry under the given pose, keyed by joint
// name. Joints absent from the pose keep their rest transform. Each vertex
// position is the bind-shape-transformed base position blended by the
// weighted sum of pose x inverse-bind products over the vertex's
// influences. Weights are applied literally: a vertex whose weights do not
// sum to 1 is reproduced as authored, never renormalized.
func (bs *BoundSkin) Evaluate(pose map[string]math3d.Mat4) *BoundGeometry {
	s := bs.Skin
	bound := s.Geometry.Bind(bs.matrix, bs.materials)
	base := s.Geometry.Position
	if base == nil {
		return bound
	}

	jointMat := make([]math3d.Mat4, len(s.JointNames))
	for j, name := range s.JointNames {
		m := math3d.Identity()
		if pm, ok := pose[name]; ok {
			m = pm
		}
		jointMat[j] = m.Mul(s.InverseBind[j])
	}

	out := make([]math3d.Vec3, base.TupleCount())
	at := 0
	for i := range out {
		p0 := s.BindShape.MulVec3(base.Vec3(i))
		var acc math3d.Vec3
		vc := 0
		if i < len(s.VCounts) {
			vc = s.VCounts[i]
		}
		for k := 0; k < vc; k++ {
			ji := s.V[at]
			wi := s.V[at+1]
			at += 2
			w := s.Weights.Tuple(wi)[0]
			if ji < 0 {
				acc = acc.Add(p0.Scale(w))
			} else if ji < len(jointMat) {
				acc = acc.Add(jointMat[ji].MulVec3(p0).Scale(w))
			}
		}
		if vc == 0 {
			out[i] = p0
		} else {
			out[i] = acc
		}
	}
	return bound.withSubstituted(out)
}

// MorphMethod selects how target weights combine with the base geometry.
type MorphMethod int

const (
	// MorphNormalized blends (1 - sum(w)) of the base with the weighted
	// targets.
	MorphNormalized MorphMethod = iota
	// MorphRelative adds the weighted targets onto the base.
	MorphRelative
)

func (m MorphMethod) String() string {
	if m == MorphRelative {
		return "RELATIVE"
	}
	return "NORMALIZED"
}

// Morph deforms a geometry by blending in whole-geometry targets.
type Morph struct {
	ID     string
	Method MorphMethod

	Base    *Geometry
	Targets []*Geometry
	Weights []float64
}

// NewMorph validates that targets and weights run in parallel.
func NewMorph(id string, method MorphMethod, base *Geometry, targets []*Geometry, weights []float64) (*Morph, error) {
	if len(targets) != len(weights) {
		return nil, errMalformed(id, "%d morph targets but %d weights", len(targets), len(weights))
	}
	return &Morph{ID: id, Method: method, Base: base, Targets: targets, Weights: weights}, nil
}

func (m *Morph) ControllerID() string    { return m.ID }
func (m *Morph) BaseGeometry() *Geometry { return m.Base }

// Bind attaches a world transform and material table.
func (m *Morph) Bind(matrix math3d.Mat4, materials map[string]*Material) *BoundMorph {
	return &BoundMorph{Morph: m, matrix: matrix, materials: materials}
}

func (m *Morph) bind(matrix math3d.Mat4, materials map[string]*Material) BoundController {
	return m.Bind(matrix, materials)
}

func (m *Morph) controller() {}

// BoundMorph is a morph instance awaiting target weights.
type BoundMorph struct {
	Morph *Morph

	matrix    math3d.Mat4
	materials map[string]*Material
}

// BoundGeometry evaluates the morph with its authored weights.
func (bm *BoundMorph) BoundGeometry() *BoundGeometry {
	bg, _ := bm.Evaluate(bm.Morph.Weights)
	return bg
}

// Evaluate blends the base geometry with the targets under the given
// weights, one per target.
func (bm *BoundMorph) Evaluate(weights []float64) (*BoundGeometry, error) {
	m := bm.Morph
	if len(weights) != len(m.Targets) {
		return nil, fmt.Errorf("morph %s: %d weights for %d targets", m.ID, len(weights), len(m.Targets))
	}
	bound := m.Base.Bind(bm.matrix, bm.materials)
	base := m.Base.Position
	if base == nil {
		return bound, nil
	}

	out := make([]math3d.Vec3, base.TupleCount())
	for i := range out {
		p := base.Vec3(i)
		if m.Method == MorphNormalized {
			rest := 1.0
			for _, w := range weights {
				rest -= w
			}
			p = p.Scale(rest)
		}
		for t, target := range m.Targets {
			tp := target.Position
			if tp == nil || i >= tp.TupleCount() {
				continue
			}
			p = p.Add(tp.Vec3(i).Scale(weights[t]))
		}
		out[i] = p
	}
	return bound.withSubstituted(out), nil
}
