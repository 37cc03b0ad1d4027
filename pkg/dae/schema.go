package dae

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Raw document structs mirroring the COLLADA element tree. The loader turns
// these into the object model; the writer builds them back from it. Only
// the chardata of numeric arrays stays textual here so that parse failures
// can be reported per element.

const colladaNamespace = "http://www.collada.org/2005/11/COLLADASchema"

type xmlCOLLADA struct {
	XMLName xml.Name `xml:"COLLADA"`
	XMLNS   string   `xml:"xmlns,attr,omitempty"`
	Version string   `xml:"version,attr"`

	Asset *xmlAsset `xml:"asset,omitempty"`

	// Sibling libraries of the same kind are legal and merge into one
	// logical collection.
	Images       []xmlLibImages       `xml:"library_images"`
	Effects      []xmlLibEffects      `xml:"library_effects"`
	Materials    []xmlLibMaterials    `xml:"library_materials"`
	Cameras      []xmlLibCameras      `xml:"library_cameras"`
	Lights       []xmlLibLights       `xml:"library_lights"`
	Geometries   []xmlLibGeometries   `xml:"library_geometries"`
	Controllers  []xmlLibControllers  `xml:"library_controllers"`
	VisualScenes []xmlLibVisualScenes `xml:"library_visual_scenes"`

	Scene *xmlSceneRef `xml:"scene"`
}

type xmlAsset struct {
	Contributor *xmlContributor `xml:"contributor,omitempty"`
	Created     string          `xml:"created,omitempty"`
	Modified    string          `xml:"modified,omitempty"`
	UpAxis      string          `xml:"up_axis,omitempty"`
}

type xmlContributor struct {
	Author        string `xml:"author,omitempty"`
	AuthoringTool string `xml:"authoring_tool,omitempty"`
}

type xmlSceneRef struct {
	VisualScene *xmlInstance `xml:"instance_visual_scene"`
}

type xmlLibImages struct {
	Images []xmlImage `xml:"image"`
}

type xmlImage struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr,omitempty"`
	InitFrom string `xml:"init_from"`
}

type xmlLibEffects struct {
	Effects []xmlEffect `xml:"effect"`
}

type xmlEffect struct {
	ID      string            `xml:"id,attr"`
	Name    string            `xml:"name,attr,omitempty"`
	Profile *xmlProfileCommon `xml:"profile_COMMON"`
}

type xmlProfileCommon struct {
	NewParams []xmlNewParam      `xml:"newparam"`
	Technique xmlEffectTechnique `xml:"technique"`
	Extras    []xmlExtra         `xml:"extra"`
}

type xmlNewParam struct {
	SID     string      `xml:"sid,attr"`
	Surface *xmlSurface `xml:"surface"`
	Sampler *xmlSampler `xml:"sampler2D"`
}

type xmlSurface struct {
	Type     string `xml:"type,attr,omitempty"`
	InitFrom string `xml:"init_from"`
}

type xmlSampler struct {
	Source string `xml:"source"`
}

type xmlEffectTechnique struct {
	SID      string     `xml:"sid,attr,omitempty"`
	Lambert  *xmlShader `xml:"lambert"`
	Phong    *xmlShader `xml:"phong"`
	Blinn    *xmlShader `xml:"blinn"`
	Constant *xmlShader `xml:"constant"`
	Extras   []xmlExtra `xml:"extra"`
}

type xmlShader struct {
	Emission     *xmlColorOrTexture `xml:"emission"`
	Ambient      *xmlColorOrTexture `xml:"ambient"`
	Diffuse      *xmlColorOrTexture `xml:"diffuse"`
	Specular     *xmlColorOrTexture `xml:"specular"`
	Shininess    *xmlFloatParam     `xml:"shininess"`
	Transparency *xmlFloatParam     `xml:"transparency"`
	IOR          *xmlFloatParam     `xml:"index_of_refraction"`
}

type xmlColorOrTexture struct {
	Color   *xmlSIDText `xml:"color"`
	Texture *xmlTexture `xml:"texture"`
}

type xmlTexture struct {
	Texture  string `xml:"texture,attr"`
	TexCoord string `xml:"texcoord,attr,omitempty"`
}

type xmlFloatParam struct {
	Float *xmlSIDText `xml:"float"`
}

// xmlSIDText is a leaf element with an optional sid attribute and textual
// payload, the shape of <float>, <color>, and the transform operators.
type xmlSIDText struct {
	SID  string `xml:"sid,attr,omitempty"`
	Text string `xml:",chardata"`
}

type xmlLibMaterials struct {
	Materials []xmlMaterial `xml:"material"`
}

type xmlMaterial struct {
	ID             string      `xml:"id,attr"`
	Name           string      `xml:"name,attr,omitempty"`
	InstanceEffect xmlInstance `xml:"instance_effect"`
}

type xmlLibCameras struct {
	Cameras []xmlCamera `xml:"camera"`
}

type xmlCamera struct {
	ID     string    `xml:"id,attr"`
	Name   string    `xml:"name,attr,omitempty"`
	Optics xmlOptics `xml:"optics"`
}

type xmlOptics struct {
	Technique xmlOpticsTechnique `xml:"technique_common"`
}

type xmlOpticsTechnique struct {
	Perspective  *xmlProjection `xml:"perspective"`
	Orthographic *xmlProjection `xml:"orthographic"`
}

type xmlProjection struct {
	XFov        *xmlSIDText `xml:"xfov"`
	YFov        *xmlSIDText `xml:"yfov"`
	XMag        *xmlSIDText `xml:"xmag"`
	YMag        *xmlSIDText `xml:"ymag"`
	AspectRatio *xmlSIDText `xml:"aspect_ratio"`
	ZNear       *xmlSIDText `xml:"znear"`
	ZFar        *xmlSIDText `xml:"zfar"`
}

type xmlLibLights struct {
	Lights []xmlLight `xml:"light"`
}

type xmlLight struct {
	ID        string            `xml:"id,attr"`
	Name      string            `xml:"name,attr,omitempty"`
	Technique xmlLightTechnique `xml:"technique_common"`
}

type xmlLightTechnique struct {
	Ambient     *xmlLightParams `xml:"ambient"`
	Directional *xmlLightParams `xml:"directional"`
	Point       *xmlLightParams `xml:"point"`
	Spot        *xmlLightParams `xml:"spot"`
}

type xmlLightParams struct {
	Color                string      `xml:"color"`
	ConstantAttenuation  *xmlSIDText `xml:"constant_attenuation"`
	LinearAttenuation    *xmlSIDText `xml:"linear_attenuation"`
	QuadraticAttenuation *xmlSIDText `xml:"quadratic_attenuation"`
	FalloffAngle         *xmlSIDText `xml:"falloff_angle"`
	FalloffExponent      *xmlSIDText `xml:"falloff_exponent"`
}

type xmlLibGeometries struct {
	Geometries []xmlGeometry `xml:"geometry"`
}

type xmlGeometry struct {
	ID     string     `xml:"id,attr"`
	Name   string     `xml:"name,attr,omitempty"`
	Mesh   *xmlMesh   `xml:"mesh"`
	Extras []xmlExtra `xml:"extra"`
}

type xmlMesh struct {
	Sources   []xmlSource      `xml:"source"`
	Vertices  *xmlVertices     `xml:"vertices"`
	Lines     []xmlIndexedPrim `xml:"lines"`
	Triangles []xmlIndexedPrim `xml:"triangles"`
	TriStrips []xmlIndexedPrim `xml:"tristrips"`
	TriFans   []xmlIndexedPrim `xml:"trifans"`
	Polylists []xmlPolylist    `xml:"polylist"`
	Polygons  []xmlPolygons    `xml:"polygons"`
}

type xmlSource struct {
	ID         string              `xml:"id,attr"`
	FloatArray *xmlValueArray      `xml:"float_array"`
	NameArray  *xmlValueArray      `xml:"Name_array"`
	IDRefArray *xmlValueArray      `xml:"IDREF_array"`
	Technique  *xmlTechniqueCommon `xml:"technique_common"`
}

type xmlValueArray struct {
	ID    string `xml:"id,attr,omitempty"`
	Count int    `xml:"count,attr"`
	Text  string `xml:",chardata"`
}

type xmlTechniqueCommon struct {
	Accessor *xmlAccessor `xml:"accessor"`
}

type xmlAccessor struct {
	Source string     `xml:"source,attr"`
	Count  int        `xml:"count,attr"`
	Stride int        `xml:"stride,attr,omitempty"`
	Params []xmlParam `xml:"param"`
}

type xmlParam struct {
	Name string `xml:"name,attr,omitempty"`
	Type string `xml:"type,attr"`
}

type xmlVertices struct {
	ID     string     `xml:"id,attr"`
	Inputs []xmlInput `xml:"input"`
}

type xmlInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   *int   `xml:"offset,attr"`
	Set      *int   `xml:"set,attr"`
}

// xmlIndexedPrim covers <lines>, <triangles>, <tristrips>, and <trifans>:
// inputs plus one or more <p> index bursts.
type xmlIndexedPrim struct {
	Count    int        `xml:"count,attr"`
	Material string     `xml:"material,attr,omitempty"`
	Inputs   []xmlInput `xml:"input"`
	P        []string   `xml:"p"`
}

type xmlPolylist struct {
	Count    int        `xml:"count,attr"`
	Material string     `xml:"material,attr,omitempty"`
	Inputs   []xmlInput `xml:"input"`
	VCount   string     `xml:"vcount"`
	P        string     `xml:"p"`
}

type xmlPolygons struct {
	Count    int           `xml:"count,attr"`
	Material string        `xml:"material,attr,omitempty"`
	Inputs   []xmlInput    `xml:"input"`
	P        []string      `xml:"p"`
	PH       []xmlPolyHole `xml:"ph"`
}

// xmlPolyHole is a polygon with holes: the outer boundary and its hole
// loops.
type xmlPolyHole struct {
	P string   `xml:"p"`
	H []string `xml:"h"`
}

type xmlLibControllers struct {
	Controllers []xmlController `xml:"controller"`
}

type xmlController struct {
	ID    string    `xml:"id,attr"`
	Name  string    `xml:"name,attr,omitempty"`
	Skin  *xmlSkin  `xml:"skin"`
	Morph *xmlMorph `xml:"morph"`
}

type xmlSkin struct {
	Source          string           `xml:"source,attr"`
	BindShapeMatrix string           `xml:"bind_shape_matrix"`
	Sources         []xmlSource      `xml:"source"`
	Joints          xmlJoints        `xml:"joints"`
	VertexWeights   xmlVertexWeights `xml:"vertex_weights"`
}

type xmlJoints struct {
	Inputs []xmlInput `xml:"input"`
}

type xmlVertexWeights struct {
	Count  int        `xml:"count,attr"`
	Inputs []xmlInput `xml:"input"`
	VCount string     `xml:"vcount"`
	V      string     `xml:"v"`
}

type xmlMorph struct {
	Source  string          `xml:"source,attr"`
	Method  string          `xml:"method,attr,omitempty"`
	Sources []xmlSource     `xml:"source"`
	Targets xmlMorphTargets `xml:"targets"`
}

type xmlMorphTargets struct {
	Inputs []xmlInput `xml:"input"`
}

type xmlLibVisualScenes struct {
	Scenes []xmlVisualScene `xml:"visual_scene"`
}

type xmlVisualScene struct {
	ID    string     `xml:"id,attr"`
	Name  string     `xml:"name,attr,omitempty"`
	Nodes []*xmlNode `xml:"node"`
}

// xmlInstance covers the instance_* elements: a url plus, for geometry and
// controller instances, a material binding table.
type xmlInstance struct {
	URL          string           `xml:"url,attr"`
	BindMaterial *xmlBindMaterial `xml:"bind_material"`
}

type xmlBindMaterial struct {
	Technique xmlBindMaterialTechnique `xml:"technique_common"`
}

type xmlBindMaterialTechnique struct {
	Materials []xmlInstanceMaterial `xml:"instance_material"`
}

type xmlInstanceMaterial struct {
	Symbol string `xml:"symbol,attr"`
	Target string `xml:"target,attr"`
}

type xmlExtra struct {
	Techniques []xmlExtraTechnique `xml:"technique"`
}

type xmlExtraTechnique struct {
	Profile     string `xml:"profile,attr,omitempty"`
	DoubleSided string `xml:"double_sided,omitempty"`
}

// xmlNode needs hand-rolled XML handling: transform operators, child nodes,
// and instances are order-sensitive siblings of mixed element names, which
// struct tags cannot express.
type xmlNode struct {
	ID   string
	SID  string
	Name string
	Type string

	Items []xmlNodeItem
}

// xmlNodeItem is one ordered child of a node element. Kind is the element
// name; the payload fields used depend on it.
type xmlNodeItem struct {
	Kind string

	// transform operators
	SID  string
	Text string

	// nested <node>
	Node *xmlNode

	// instance_* elements
	Instance *xmlInstance
}

var nodeTransformKinds = map[string]bool{
	"translate": true,
	"rotate":    true,
	"scale":     true,
	"matrix":    true,
	"lookat":    true,
}

var nodeInstanceKinds = map[string]bool{
	"instance_node":       true,
	"instance_geometry":   true,
	"instance_controller": true,
	"instance_camera":     true,
	"instance_light":      true,
}

func (n *xmlNode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			n.ID = attr.Value
		case "sid":
			n.SID = attr.Value
		case "name":
			n.Name = attr.Value
		case "type":
			n.Type = attr.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			name := el.Name.Local
			switch {
			case nodeTransformKinds[name]:
				var t xmlSIDText
				if err := d.DecodeElement(&t, &el); err != nil {
					return err
				}
				n.Items = append(n.Items, xmlNodeItem{Kind: name, SID: t.SID, Text: t.Text})
			case name == "node":
				child := &xmlNode{}
				if err := d.DecodeElement(child, &el); err != nil {
					return err
				}
				n.Items = append(n.Items, xmlNodeItem{Kind: name, Node: child})
			case nodeInstanceKinds[name]:
				inst := &xmlInstance{}
				if err := d.DecodeElement(inst, &el); err != nil {
					return err
				}
				n.Items = append(n.Items, xmlNodeItem{Kind: name, Instance: inst})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if el == start.End() {
				return nil
			}
		}
	}
}

func (n *xmlNode) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "node"
	start.Attr = start.Attr[:0]
	addAttr := func(name, value string) {
		if value != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
		}
	}
	addAttr("id", n.ID)
	addAttr("name", n.Name)
	addAttr("sid", n.SID)
	addAttr("type", n.Type)
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, item := range n.Items {
		el := xml.StartElement{Name: xml.Name{Local: item.Kind}}
		switch {
		case nodeTransformKinds[item.Kind]:
			if err := e.EncodeElement(xmlSIDText{SID: item.SID, Text: item.Text}, el); err != nil {
				return err
			}
		case item.Kind == "node":
			if err := e.EncodeElement(item.Node, el); err != nil {
				return err
			}
		case nodeInstanceKinds[item.Kind]:
			if err := e.EncodeElement(item.Instance, el); err != nil {
				return err
			}
		}
	}
	return e.EncodeToken(start.End())
}

// parseFloats reads whitespace-separated numbers.
func parseFloats(text string) ([]float64, error) {
	fields := strings.Fields(text)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseInts reads whitespace-separated integers.
func parseInts(text string) ([]int, error) {
	fields := strings.Fields(text)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad int %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseFloat reads one number out of an optional leaf element, falling back
// to def when the element is absent or empty.
func parseFloat(t *xmlSIDText, def float64) float64 {
	if t == nil {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(t.Text), 64)
	if err != nil {
		return def
	}
	return v
}
