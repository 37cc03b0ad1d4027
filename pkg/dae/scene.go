package dae

import (
	"iter"

	"github.com/taigrr/collada/pkg/math3d"
)

// SceneItem is a child of a Node: a nested node, a reference to a shared
// node, or an instance of geometry, controller, camera, or light.
type SceneItem interface {
	sceneItem()
}

// Node is one joint of the scene graph: an ordered transform operator list
// followed by ordered children.
type Node struct {
	ID   string
	SID  string
	Name string

	Transforms []Transform
	Children   []SceneItem
}

// LocalMatrix composes the node's transform operators in declaration order.
func (n *Node) LocalMatrix() math3d.Mat4 {
	return localMatrix(n.Transforms)
}

func (n *Node) sceneItem() {}

// NodeInstance references a node defined elsewhere in the document. The
// target may appear later in document order; a reference that never
// resolves leaves Node nil and the instance is skipped during traversal.
type NodeInstance struct {
	Node *Node
}

func (*NodeInstance) sceneItem() {}

// GeometryInstance places a geometry in the graph with its own
// material-symbol table. Tables are per instance: two instances of the same
// geometry may resolve the same symbol to different materials.
type GeometryInstance struct {
	Geometry  *Geometry
	Materials map[string]*Material
}

func (*GeometryInstance) sceneItem() {}

// ControllerInstance places a controller in the graph.
type ControllerInstance struct {
	Controller Controller
	Materials  map[string]*Material
}

func (*ControllerInstance) sceneItem() {}

// CameraInstance places a camera in the graph.
type CameraInstance struct {
	Camera *Camera
}

func (*CameraInstance) sceneItem() {}

// LightInstance places a light in the graph.
type LightInstance struct {
	Light *Light
}

func (*LightInstance) sceneItem() {}

// Scene is an ordered list of root nodes.
type Scene struct {
	ID    string
	Name  string
	Nodes []*Node

	doc *Document
}

// strictMaterials reports whether an unresolved material symbol should
// surface as an error rather than a nil material.
func (s *Scene) strictMaterials() bool {
	return s.doc != nil && !s.doc.ignored(KindBrokenRef)
}

// walk runs a depth-first traversal, calling visit with every instance item
// and the world matrix accumulated at that point. Node instances that close
// a cycle over the current path fail with KindCyclicRef. Returning false
// from visit stops the walk.
func (s *Scene) walk(visit func(item SceneItem, world math3d.Mat4) bool) error {
	onPath := make(map[*Node]bool)
	var rec func(n *Node, parent math3d.Mat4) (bool, error)
	rec = func(n *Node, parent math3d.Mat4) (bool, error) {
		if onPath[n] {
			return false, errCyclicRef("node[" + n.ID + "]")
		}
		onPath[n] = true
		defer delete(onPath, n)

		world := parent.Mul(n.LocalMatrix())
		for _, child := range n.Children {
			switch c := child.(type) {
			case *Node:
				cont, err := rec(c, world)
				if err != nil || !cont {
					return cont, err
				}
			case *NodeInstance:
				if c.Node == nil {
					continue
				}
				cont, err := rec(c.Node, world)
				if err != nil || !cont {
					return cont, err
				}
			default:
				if !visit(child, world) {
					return false, nil
				}
			}
		}
		return true, nil
	}
	for _, root := range s.Nodes {
		cont, err := rec(root, math3d.Identity())
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Geometries yields a bound view for every geometry instance found by a
// depth-first walk of the scene. Each call re-traverses; the sequence is
// finite and the yielded views are independent of each other.
func (s *Scene) Geometries() iter.Seq2[*BoundGeometry, error] {
	return func(yield func(*BoundGeometry, error) bool) {
		err := s.walk(func(item SceneItem, world math3d.Mat4) bool {
			gi, ok := item.(*GeometryInstance)
			if !ok || gi.Geometry == nil {
				return true
			}
			if s.strictMaterials() {
				for _, p := range gi.Geometry.Primitives {
					sym := p.MaterialSymbol()
					if sym != "" && gi.Materials[sym] == nil {
						return yield(nil, errBrokenRef("geometry["+gi.Geometry.ID+"]", "material symbol %q is not bound", sym))
					}
				}
			}
			return yield(gi.Geometry.Bind(world, gi.Materials), nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Controllers yields a bound view for every controller instance in the
// scene.
func (s *Scene) Controllers() iter.Seq2[BoundController, error] {
	return func(yield func(BoundController, error) bool) {
		err := s.walk(func(item SceneItem, world math3d.Mat4) bool {
			ci, ok := item.(*ControllerInstance)
			if !ok || ci.Controller == nil {
				return true
			}
			return yield(ci.Controller.bind(world, ci.Materials), nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Cameras yields a bound view for every camera instance in the scene.
func (s *Scene) Cameras() iter.Seq2[*BoundCamera, error] {
	return func(yield func(*BoundCamera, error) bool) {
		err := s.walk(func(item SceneItem, world math3d.Mat4) bool {
			ci, ok := item.(*CameraInstance)
			if !ok || ci.Camera == nil {
				return true
			}
			return yield(ci.Camera.Bind(world), nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Lights yields a bound view for every light instance in the scene.
func (s *Scene) Lights() iter.Seq2[*BoundLight, error] {
	return func(yield func(*BoundLight, error) bool) {
		err := s.walk(func(item SceneItem, world math3d.Mat4) bool {
			li, ok := item.(*LightInstance)
			if !ok || li.Light == nil {
				return true
			}
			return yield(li.Light.Bind(world), nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}
