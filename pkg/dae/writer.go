package dae

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/taigrr/collada/pkg/math3d"
)

// Write serializes the document. Numeric arrays are written with 7
// significant digits to bound file size; library sections with no entries
// are omitted, since some consumers reject empty library elements; geometry
// sources no longer referenced by any primitive are pruned; VERTEX inputs
// are emitted through the vertices indirection for interoperability.
func (d *Document) Write(w io.Writer) error {
	raw := d.buildXML()
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Save writes the document to a file.
func (d *Document) Save(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (d *Document) buildXML() *xmlCOLLADA {
	version := d.Version
	if version == "" {
		version = "1.4.1"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	raw := &xmlCOLLADA{
		XMLNS:   colladaNamespace,
		Version: version,
		Asset: &xmlAsset{
			Contributor: &xmlContributor{AuthoringTool: "collada go library"},
			Created:     now,
			Modified:    now,
			UpAxis:      d.UpAxis,
		},
	}

	if len(d.imageOrder) > 0 {
		lib := xmlLibImages{}
		for _, id := range d.imageOrder {
			im := d.Images[id]
			lib.Images = append(lib.Images, xmlImage{ID: im.ID, Name: im.Name, InitFrom: im.Path})
		}
		raw.Images = append(raw.Images, lib)
	}
	if len(d.effectOrder) > 0 {
		lib := xmlLibEffects{}
		for _, id := range d.effectOrder {
			lib.Effects = append(lib.Effects, buildEffectXML(d.Effects[id]))
		}
		raw.Effects = append(raw.Effects, lib)
	}
	if len(d.materialOrder) > 0 {
		lib := xmlLibMaterials{}
		for _, id := range d.materialOrder {
			m := d.Materials[id]
			x := xmlMaterial{ID: m.ID, Name: m.Name}
			if m.Effect != nil {
				x.InstanceEffect.URL = "#" + m.Effect.ID
			}
			lib.Materials = append(lib.Materials, x)
		}
		raw.Materials = append(raw.Materials, lib)
	}
	if len(d.cameraOrder) > 0 {
		lib := xmlLibCameras{}
		for _, id := range d.cameraOrder {
			lib.Cameras = append(lib.Cameras, buildCameraXML(d.Cameras[id]))
		}
		raw.Cameras = append(raw.Cameras, lib)
	}
	if len(d.lightOrder) > 0 {
		lib := xmlLibLights{}
		for _, id := range d.lightOrder {
			lib.Lights = append(lib.Lights, buildLightXML(d.Lights[id]))
		}
		raw.Lights = append(raw.Lights, lib)
	}
	if len(d.geometryOrder) > 0 {
		lib := xmlLibGeometries{}
		for _, id := range d.geometryOrder {
			lib.Geometries = append(lib.Geometries, buildGeometryXML(d.Geometries[id]))
		}
		raw.Geometries = append(raw.Geometries, lib)
	}
	if len(d.controllerOrder) > 0 {
		lib := xmlLibControllers{}
		for _, id := range d.controllerOrder {
			lib.Controllers = append(lib.Controllers, buildControllerXML(d.Controllers[id]))
		}
		raw.Controllers = append(raw.Controllers, lib)
	}
	if len(d.sceneOrder) > 0 {
		lib := xmlLibVisualScenes{}
		for _, id := range d.sceneOrder {
			lib.Scenes = append(lib.Scenes, buildSceneXML(d.Scenes[id]))
		}
		raw.VisualScenes = append(raw.VisualScenes, lib)
	}
	if d.Scene != nil {
		raw.Scene = &xmlSceneRef{VisualScene: &xmlInstance{URL: "#" + d.Scene.ID}}
	}
	return raw
}

// formatFloats renders numbers with 7 significant digits.
func formatFloats(vals []float64) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', 7, 64))
	}
	return b.String()
}

// formatMat renders a matrix in the row-major order the document format
// uses.
func formatMat(m math3d.Mat4) string {
	rm := m.RowMajor()
	return formatFloats(rm[:])
}

func formatInts(vals []int) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func buildFloatSourceXML(s *FloatSource) xmlSource {
	x := xmlSource{
		ID: s.ID,
		FloatArray: &xmlValueArray{
			ID:    s.ID + "-array",
			Count: len(s.Data),
			Text:  formatFloats(s.Data),
		},
	}
	acc := &xmlAccessor{
		Source: "#" + s.ID + "-array",
		Count:  s.TupleCount(),
		Stride: len(s.Names),
	}
	for _, name := range s.Names {
		acc.Params = append(acc.Params, xmlParam{Name: name, Type: "float"})
	}
	x.Technique = &xmlTechniqueCommon{Accessor: acc}
	return x
}

func buildGeometryXML(g *Geometry) xmlGeometry {
	x := xmlGeometry{ID: g.ID, Name: g.Name, Mesh: &xmlMesh{}}

	// Pre-save consistency pass: only sources still referenced by a
	// primitive input or by the vertices wrapper are written.
	used := make(map[string]bool)
	if g.Position != nil {
		used[g.Position.ID] = true
	}
	for _, p := range g.Primitives {
		for _, in := range p.InputList().Inputs() {
			if in.Source != nil {
				used[in.Source.ID] = true
			}
		}
	}
	for _, s := range g.Sources() {
		if used[s.ID] {
			x.Mesh.Sources = append(x.Mesh.Sources, buildFloatSourceXML(s))
		}
	}
	if g.Position != nil {
		x.Mesh.Vertices = &xmlVertices{
			ID: g.VerticesID,
			Inputs: []xmlInput{{
				Semantic: string(SemanticPosition),
				Source:   "#" + g.Position.ID,
			}},
		}
	}
	for _, p := range g.Primitives {
		inputs := buildInputsXML(g, p.InputList())
		switch prim := p.(type) {
		case *LineSet:
			x.Mesh.Lines = append(x.Mesh.Lines, xmlIndexedPrim{
				Count:    prim.FaceCount(),
				Material: prim.MaterialSymbol(),
				Inputs:   inputs,
				P:        []string{formatInts(prim.RawIndex())},
			})
		case *TriangleSet:
			x.Mesh.Triangles = append(x.Mesh.Triangles, xmlIndexedPrim{
				Count:    prim.FaceCount(),
				Material: prim.MaterialSymbol(),
				Inputs:   inputs,
				P:        []string{formatInts(prim.RawIndex())},
			})
		case *Polygons:
			xp := xmlPolygons{
				Count:    prim.FaceCount(),
				Material: prim.MaterialSymbol(),
				Inputs:   inputs,
			}
			stride := prim.InputList().Stride()
			raw := prim.RawIndex()
			at := 0
			for _, vc := range prim.VCounts() {
				xp.P = append(xp.P, formatInts(raw[at*stride:(at+vc)*stride]))
				at += vc
			}
			x.Mesh.Polygons = append(x.Mesh.Polygons, xp)
		case *Polylist:
			x.Mesh.Polylists = append(x.Mesh.Polylists, xmlPolylist{
				Count:    prim.FaceCount(),
				Material: prim.MaterialSymbol(),
				Inputs:   inputs,
				VCount:   formatInts(prim.VCounts()),
				P:        formatInts(prim.RawIndex()),
			})
		}
	}
	if g.DoubleSided {
		x.Extras = []xmlExtra{{Techniques: []xmlExtraTechnique{{Profile: "GOOGLEEARTH", DoubleSided: "1"}}}}
	}
	return x
}

// buildInputsXML writes a primitive's inputs, routing VERTEX through the
// geometry's vertices wrapper.
func buildInputsXML(g *Geometry, il *InputList) []xmlInput {
	var out []xmlInput
	for _, in := range il.Inputs() {
		x := xmlInput{Semantic: string(in.Semantic)}
		offset := in.Offset
		x.Offset = &offset
		switch {
		case in.Semantic == SemanticVertex && g.Position != nil:
			x.Source = "#" + g.VerticesID
		case in.Source != nil:
			x.Source = "#" + in.Source.ID
		default:
			x.Source = in.SourceRef
		}
		if in.Semantic == SemanticTexCoord {
			set := in.Set
			x.Set = &set
		}
		out = append(out, x)
	}
	return out
}

func buildCameraXML(c *Camera) xmlCamera {
	x := xmlCamera{ID: c.ID, Name: c.Name}
	proj := &xmlProjection{}
	leaf := func(v float64) *xmlSIDText {
		if v == 0 {
			return nil
		}
		return &xmlSIDText{Text: formatFloats([]float64{v})}
	}
	proj.XFov = leaf(c.XFov)
	proj.YFov = leaf(c.YFov)
	proj.XMag = leaf(c.XMag)
	proj.YMag = leaf(c.YMag)
	proj.AspectRatio = leaf(c.AspectRatio)
	proj.ZNear = leaf(c.ZNear)
	proj.ZFar = leaf(c.ZFar)
	if c.Kind == CameraOrthographic {
		x.Optics.Technique.Orthographic = proj
	} else {
		x.Optics.Technique.Perspective = proj
	}
	return x
}

func buildLightXML(l *Light) xmlLight {
	x := xmlLight{ID: l.ID, Name: l.Name}
	params := &xmlLightParams{
		Color: formatFloats([]float64{l.Color.X, l.Color.Y, l.Color.Z}),
	}
	leaf := func(v float64) *xmlSIDText {
		return &xmlSIDText{Text: formatFloats([]float64{v})}
	}
	switch l.Kind {
	case LightAmbient:
		x.Technique.Ambient = params
	case LightDirectional:
		x.Technique.Directional = params
	case LightPoint:
		params.ConstantAttenuation = leaf(l.ConstantAttenuation)
		params.LinearAttenuation = leaf(l.LinearAttenuation)
		params.QuadraticAttenuation = leaf(l.QuadraticAttenuation)
		x.Technique.Point = params
	case LightSpot:
		params.ConstantAttenuation = leaf(l.ConstantAttenuation)
		params.LinearAttenuation = leaf(l.LinearAttenuation)
		params.QuadraticAttenuation = leaf(l.QuadraticAttenuation)
		params.FalloffAngle = leaf(l.FalloffAngle)
		params.FalloffExponent = leaf(l.FalloffExponent)
		x.Technique.Spot = params
	}
	return x
}

func buildEffectXML(e *Effect) xmlEffect {
	x := xmlEffect{ID: e.ID, Name: e.Name, Profile: &xmlProfileCommon{}}
	shader := &xmlShader{}
	slot := func(ct ColorOrTexture) *xmlColorOrTexture {
		if ct.IsTexture() {
			// A texture slot needs the surface and sampler parameter
			// pair the texture attribute resolves through.
			im := ct.Texture
			surfaceSID := im.ID + "-surface"
			samplerSID := im.ID + "-sampler"
			if findNewParam(x.Profile.NewParams, surfaceSID) == nil {
				x.Profile.NewParams = append(x.Profile.NewParams,
					xmlNewParam{SID: surfaceSID, Surface: &xmlSurface{Type: "2D", InitFrom: im.ID}},
					xmlNewParam{SID: samplerSID, Sampler: &xmlSampler{Source: surfaceSID}},
				)
			}
			return &xmlColorOrTexture{Texture: &xmlTexture{Texture: samplerSID, TexCoord: ct.TexCoord}}
		}
		if ct.Color == ([4]float64{}) {
			return nil
		}
		return &xmlColorOrTexture{Color: &xmlSIDText{Text: formatFloats(ct.Color[:])}}
	}
	shader.Emission = slot(e.Emission)
	shader.Ambient = slot(e.Ambient)
	shader.Diffuse = slot(e.Diffuse)
	shader.Specular = slot(e.Specular)
	if e.Shininess != 0 {
		shader.Shininess = &xmlFloatParam{Float: &xmlSIDText{Text: formatFloats([]float64{e.Shininess})}}
	}
	if e.Transparency != 0 {
		shader.Transparency = &xmlFloatParam{Float: &xmlSIDText{Text: formatFloats([]float64{e.Transparency})}}
	}
	if e.IndexOfRefraction != 0 && e.IndexOfRefraction != 1 {
		shader.IOR = &xmlFloatParam{Float: &xmlSIDText{Text: formatFloats([]float64{e.IndexOfRefraction})}}
	}
	switch e.Shade {
	case ShadePhong:
		x.Profile.Technique.Phong = shader
	case ShadeBlinn:
		x.Profile.Technique.Blinn = shader
	case ShadeConstant:
		x.Profile.Technique.Constant = shader
	default:
		x.Profile.Technique.Lambert = shader
	}
	if e.DoubleSided {
		x.Profile.Technique.Extras = []xmlExtra{{Techniques: []xmlExtraTechnique{{Profile: "GOOGLEEARTH", DoubleSided: "1"}}}}
	}
	return x
}

func buildControllerXML(c Controller) xmlController {
	switch ctrl := c.(type) {
	case *Skin:
		return buildSkinXML(ctrl)
	case *Morph:
		return buildMorphXML(ctrl)
	}
	return xmlController{ID: c.ControllerID()}
}

func buildSkinXML(s *Skin) xmlController {
	x := xmlController{ID: s.ID}
	skin := &xmlSkin{
		BindShapeMatrix: formatMat(s.BindShape),
	}
	if s.Geometry != nil {
		skin.Source = "#" + s.Geometry.ID
	}

	jointsID := s.ID + "-joints"
	posesID := s.ID + "-bind_poses"
	weightsID := s.ID + "-weights"

	skin.Sources = append(skin.Sources, xmlSource{
		ID: jointsID,
		NameArray: &xmlValueArray{
			ID:    jointsID + "-array",
			Count: len(s.JointNames),
			Text:  strings.Join(s.JointNames, " "),
		},
		Technique: &xmlTechniqueCommon{Accessor: &xmlAccessor{
			Source: "#" + jointsID + "-array",
			Count:  len(s.JointNames),
			Stride: 1,
			Params: []xmlParam{{Name: "JOINT", Type: "name"}},
		}},
	})

	var poseData []float64
	for _, m := range s.InverseBind {
		rm := m.RowMajor()
		poseData = append(poseData, rm[:]...)
	}
	skin.Sources = append(skin.Sources, xmlSource{
		ID: posesID,
		FloatArray: &xmlValueArray{
			ID:    posesID + "-array",
			Count: len(poseData),
			Text:  formatFloats(poseData),
		},
		Technique: &xmlTechniqueCommon{Accessor: &xmlAccessor{
			Source: "#" + posesID + "-array",
			Count:  len(s.InverseBind),
			Stride: 16,
			Params: []xmlParam{{Name: "TRANSFORM", Type: "float4x4"}},
		}},
	})

	weights := s.Weights
	skin.Sources = append(skin.Sources, xmlSource{
		ID: weightsID,
		FloatArray: &xmlValueArray{
			ID:    weightsID + "-array",
			Count: len(weights.Data),
			Text:  formatFloats(weights.Data),
		},
		Technique: &xmlTechniqueCommon{Accessor: &xmlAccessor{
			Source: "#" + weightsID + "-array",
			Count:  weights.TupleCount(),
			Stride: len(weights.Names),
			Params: []xmlParam{{Name: "WEIGHT", Type: "float"}},
		}},
	})

	zero, one := 0, 1
	skin.Joints.Inputs = []xmlInput{
		{Semantic: "JOINT", Source: "#" + jointsID},
		{Semantic: "INV_BIND_MATRIX", Source: "#" + posesID},
	}
	skin.VertexWeights = xmlVertexWeights{
		Count: len(s.VCounts),
		Inputs: []xmlInput{
			{Semantic: "JOINT", Source: "#" + jointsID, Offset: &zero},
			{Semantic: "WEIGHT", Source: "#" + weightsID, Offset: &one},
		},
		VCount: formatInts(s.VCounts),
		V:      formatInts(s.V),
	}
	x.Skin = skin
	return x
}

func buildMorphXML(m *Morph) xmlController {
	x := xmlController{ID: m.ID}
	morph := &xmlMorph{Method: m.Method.String()}
	if m.Base != nil {
		morph.Source = "#" + m.Base.ID
	}

	targetsID := m.ID + "-targets"
	weightsID := m.ID + "-weights"
	ids := make([]string, 0, len(m.Targets))
	for _, t := range m.Targets {
		ids = append(ids, t.ID)
	}
	morph.Sources = append(morph.Sources, xmlSource{
		ID: targetsID,
		IDRefArray: &xmlValueArray{
			ID:    targetsID + "-array",
			Count: len(ids),
			Text:  strings.Join(ids, " "),
		},
		Technique: &xmlTechniqueCommon{Accessor: &xmlAccessor{
			Source: "#" + targetsID + "-array",
			Count:  len(ids),
			Stride: 1,
			Params: []xmlParam{{Name: "MORPH_TARGET", Type: "IDREF"}},
		}},
	}, xmlSource{
		ID: weightsID,
		FloatArray: &xmlValueArray{
			ID:    weightsID + "-array",
			Count: len(m.Weights),
			Text:  formatFloats(m.Weights),
		},
		Technique: &xmlTechniqueCommon{Accessor: &xmlAccessor{
			Source: "#" + weightsID + "-array",
			Count:  len(m.Weights),
			Stride: 1,
			Params: []xmlParam{{Name: "MORPH_WEIGHT", Type: "float"}},
		}},
	})
	morph.Targets.Inputs = []xmlInput{
		{Semantic: "MORPH_TARGET", Source: "#" + targetsID},
		{Semantic: "MORPH_WEIGHT", Source: "#" + weightsID},
	}
	x.Morph = morph
	return x
}

func buildSceneXML(s *Scene) xmlVisualScene {
	x := xmlVisualScene{ID: s.ID, Name: s.Name}
	for _, n := range s.Nodes {
		x.Nodes = append(x.Nodes, buildNodeXML(n))
	}
	return x
}

func buildNodeXML(n *Node) *xmlNode {
	x := &xmlNode{ID: n.ID, SID: n.SID, Name: n.Name}
	for _, t := range n.Transforms {
		var item xmlNodeItem
		switch tr := t.(type) {
		case TranslateTransform:
			item = xmlNodeItem{Kind: "translate", Text: formatFloats([]float64{tr.Offset.X, tr.Offset.Y, tr.Offset.Z})}
		case RotateTransform:
			item = xmlNodeItem{Kind: "rotate", Text: formatFloats([]float64{tr.Axis.X, tr.Axis.Y, tr.Axis.Z, tr.Degrees})}
		case ScaleTransform:
			item = xmlNodeItem{Kind: "scale", Text: formatFloats([]float64{tr.Factors.X, tr.Factors.Y, tr.Factors.Z})}
		case MatrixTransform:
			item = xmlNodeItem{Kind: "matrix", Text: formatMat(tr.M)}
		case LookAtTransform:
			item = xmlNodeItem{Kind: "lookat", Text: formatFloats([]float64{
				tr.Eye.X, tr.Eye.Y, tr.Eye.Z,
				tr.Interest.X, tr.Interest.Y, tr.Interest.Z,
				tr.Up.X, tr.Up.Y, tr.Up.Z,
			})}
		default:
			continue
		}
		x.Items = append(x.Items, item)
	}
	for _, child := range n.Children {
		switch c := child.(type) {
		case *Node:
			x.Items = append(x.Items, xmlNodeItem{Kind: "node", Node: buildNodeXML(c)})
		case *NodeInstance:
			if c.Node == nil || c.Node.ID == "" {
				continue
			}
			x.Items = append(x.Items, xmlNodeItem{Kind: "instance_node", Instance: &xmlInstance{URL: "#" + c.Node.ID}})
		case *GeometryInstance:
			if c.Geometry == nil {
				continue
			}
			x.Items = append(x.Items, xmlNodeItem{
				Kind:     "instance_geometry",
				Instance: &xmlInstance{URL: "#" + c.Geometry.ID, BindMaterial: buildBindMaterialXML(c.Materials)},
			})
		case *ControllerInstance:
			if c.Controller == nil {
				continue
			}
			x.Items = append(x.Items, xmlNodeItem{
				Kind:     "instance_controller",
				Instance: &xmlInstance{URL: "#" + c.Controller.ControllerID(), BindMaterial: buildBindMaterialXML(c.Materials)},
			})
		case *CameraInstance:
			if c.Camera == nil {
				continue
			}
			x.Items = append(x.Items, xmlNodeItem{Kind: "instance_camera", Instance: &xmlInstance{URL: "#" + c.Camera.ID}})
		case *LightInstance:
			if c.Light == nil {
				continue
			}
			x.Items = append(x.Items, xmlNodeItem{Kind: "instance_light", Instance: &xmlInstance{URL: "#" + c.Light.ID}})
		}
	}
	return x
}

func buildBindMaterialXML(table map[string]*Material) *xmlBindMaterial {
	if len(table) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(table))
	for sym := range table {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	bm := &xmlBindMaterial{}
	for _, sym := range symbols {
		if table[sym] == nil {
			continue
		}
		bm.Technique.Materials = append(bm.Technique.Materials, xmlInstanceMaterial{
			Symbol: sym,
			Target: "#" + table[sym].ID,
		})
	}
	return bm
}
