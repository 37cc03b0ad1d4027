package dae

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/taigrr/collada/pkg/math3d"
)

// Document is a loaded COLLADA document: every library collection, the
// identifier registry, and the ordered record of everything that went wrong
// while loading.
type Document struct {
	Version string
	UpAxis  string

	Images      map[string]*Image
	Effects     map[string]*Effect
	Materials   map[string]*Material
	Cameras     map[string]*Camera
	Lights      map[string]*Light
	Geometries  map[string]*Geometry
	Controllers map[string]Controller
	Scenes      map[string]*Scene

	// Scene is the document's active scene, or nil.
	Scene *Scene

	Registry *Registry

	// Errors lists every load-time problem in the order encountered,
	// fatal or ignored.
	Errors []*Error

	imageOrder      []string
	effectOrder     []string
	materialOrder   []string
	cameraOrder     []string
	lightOrder      []string
	geometryOrder   []string
	controllerOrder []string
	sceneOrder      []string

	ignore       map[Kind]bool
	path         string
	archive      *zip.Reader
	archiveEntry string
	auxLoader    func(name string) ([]byte, error)
}

// Option configures loading.
type Option func(*Document)

// WithIgnore downgrades the listed error kinds from fatal to recorded
// warnings. Only ignorable kinds (KindBrokenRef, KindUnsupported) are
// affected; fatal kinds stay fatal.
func WithIgnore(kinds ...Kind) Option {
	return func(d *Document) {
		for _, k := range kinds {
			if k.Ignorable() {
				d.ignore[k] = true
			}
		}
	}
}

// WithArchiveEntry names the archive member to load instead of searching
// for the first .dae entry.
func WithArchiveEntry(name string) Option {
	return func(d *Document) { d.archiveEntry = name }
}

// WithAuxLoader supplies a fallback for auxiliary resources (textures) that
// are found neither in the archive nor on disk next to the document.
func WithAuxLoader(fn func(name string) ([]byte, error)) Option {
	return func(d *Document) { d.auxLoader = fn }
}

// New returns an empty document for programmatic construction.
func New() *Document {
	return &Document{
		Version:     "1.4.1",
		Images:      make(map[string]*Image),
		Effects:     make(map[string]*Effect),
		Materials:   make(map[string]*Material),
		Cameras:     make(map[string]*Camera),
		Lights:      make(map[string]*Light),
		Geometries:  make(map[string]*Geometry),
		Controllers: make(map[string]Controller),
		Scenes:      make(map[string]*Scene),
		Registry:    NewRegistry(),
		ignore:      make(map[Kind]bool),
	}
}

// Open loads a document from a file. Zip archives are detected by magic
// and searched for a .dae entry.
func Open(name string, opts ...Option) (*Document, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	d, err := Load(f, opts...)
	if d != nil {
		d.path = name
	}
	return d, err
}

// Load loads a document from a reader, which may hold either plain XML or a
// zip archive wrapping it.
func Load(r io.Reader, opts ...Option) (*Document, error) {
	d := New()
	for _, opt := range opts {
		opt(d)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		data, err = d.unwrapArchive(data)
		if err != nil {
			return d, err
		}
	}
	var raw xmlCOLLADA
	if err := xml.Unmarshal(data, &raw); err != nil {
		return d, d.report(errMalformed("", "parse: %v", err))
	}
	if err := d.build(&raw); err != nil {
		return d, err
	}
	return d, nil
}

// unwrapArchive opens the zip wrapper and returns the bytes of the document
// entry: the configured one, or the first entry ending in .dae.
func (d *Document) unwrapArchive(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, d.report(errMalformed("", "archive: %v", err))
	}
	d.archive = zr
	var entry *zip.File
	for _, f := range zr.File {
		if d.archiveEntry != "" {
			if f.Name == d.archiveEntry {
				entry = f
				break
			}
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".dae") {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, d.report(errMalformed("", "archive has no document entry"))
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, d.report(errMalformed("", "archive entry %s: %v", entry.Name, err))
	}
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, d.report(errMalformed("", "archive entry %s: %v", entry.Name, err))
	}
	return out, nil
}

// ignored reports whether the kind is downgraded to a warning.
func (d *Document) ignored(k Kind) bool {
	return d.ignore[k]
}

// report records the error and decides whether it aborts the load: nil for
// downgraded kinds, the error itself otherwise.
func (d *Document) report(e *Error) error {
	d.Errors = append(d.Errors, e)
	if e.Kind.Ignorable() && d.ignore[e.Kind] {
		return nil
	}
	return e
}

// LoadResource fetches an auxiliary file by name: from the wrapping
// archive, then from disk next to the document, then through the
// caller-supplied loader.
func (d *Document) LoadResource(name string) ([]byte, error) {
	if d.archive != nil {
		for _, f := range d.archive.File {
			if f.Name == name || path.Base(f.Name) == path.Base(name) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return io.ReadAll(rc)
			}
		}
	}
	local := name
	if d.path != "" && !filepath.IsAbs(local) {
		local = filepath.Join(filepath.Dir(d.path), local)
	}
	if b, err := os.ReadFile(local); err == nil {
		return b, nil
	}
	if d.auxLoader != nil {
		return d.auxLoader(name)
	}
	return nil, fmt.Errorf("resource %s not found", name)
}

// build constructs the object model from the raw tree. Libraries load in
// dependency order; references that can appear forward (node instances) go
// through the registry's deferred queue and are drained at the end.
func (d *Document) build(raw *xmlCOLLADA) error {
	d.Version = raw.Version
	if raw.Asset != nil {
		d.UpAxis = raw.Asset.UpAxis
	}
	for _, lib := range raw.Images {
		for _, x := range lib.Images {
			if err := d.loadImage(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.Effects {
		for _, x := range lib.Effects {
			if err := d.loadEffect(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.Materials {
		for _, x := range lib.Materials {
			if err := d.loadMaterial(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.Cameras {
		for _, x := range lib.Cameras {
			if err := d.loadCamera(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.Lights {
		for _, x := range lib.Lights {
			if err := d.loadLight(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.Geometries {
		for _, x := range lib.Geometries {
			if err := d.loadGeometry(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.Controllers {
		for _, x := range lib.Controllers {
			if err := d.loadController(x); err != nil {
				return err
			}
		}
	}
	for _, lib := range raw.VisualScenes {
		for _, x := range lib.Scenes {
			if err := d.loadVisualScene(x); err != nil {
				return err
			}
		}
	}
	for _, id := range d.Registry.Flush() {
		if err := d.report(errBrokenRef("", "reference to %q never resolved", id)); err != nil {
			return err
		}
	}
	if raw.Scene != nil && raw.Scene.VisualScene != nil {
		ref := stripRef(raw.Scene.VisualScene.URL)
		s, ok := d.Scenes[ref]
		if !ok {
			if err := d.report(errBrokenRef("scene", "no visual scene with id %q", ref)); err != nil {
				return err
			}
		}
		d.Scene = s
	}
	return nil
}

// AddImage registers an image built in code.
func (d *Document) AddImage(im *Image) error {
	if err := d.Registry.Register(im.ID, im); err != nil {
		return err
	}
	im.loader = d.LoadResource
	d.Images[im.ID] = im
	d.imageOrder = append(d.imageOrder, im.ID)
	return nil
}

// AddEffect registers an effect built in code.
func (d *Document) AddEffect(e *Effect) error {
	if err := d.Registry.Register(e.ID, e); err != nil {
		return err
	}
	d.Effects[e.ID] = e
	d.effectOrder = append(d.effectOrder, e.ID)
	return nil
}

// AddMaterial registers a material built in code.
func (d *Document) AddMaterial(m *Material) error {
	if err := d.Registry.Register(m.ID, m); err != nil {
		return err
	}
	d.Materials[m.ID] = m
	d.materialOrder = append(d.materialOrder, m.ID)
	return nil
}

// AddCamera registers a camera built in code.
func (d *Document) AddCamera(c *Camera) error {
	if err := d.Registry.Register(c.ID, c); err != nil {
		return err
	}
	d.Cameras[c.ID] = c
	d.cameraOrder = append(d.cameraOrder, c.ID)
	return nil
}

// AddLight registers a light built in code.
func (d *Document) AddLight(l *Light) error {
	if err := d.Registry.Register(l.ID, l); err != nil {
		return err
	}
	d.Lights[l.ID] = l
	d.lightOrder = append(d.lightOrder, l.ID)
	return nil
}

// AddGeometry registers a geometry and its sources.
func (d *Document) AddGeometry(g *Geometry) error {
	if err := d.Registry.Register(g.ID, g); err != nil {
		return err
	}
	for _, s := range g.Sources() {
		if err := d.Registry.Register(s.ID, s); err != nil {
			return err
		}
	}
	if g.Position != nil {
		if err := d.Registry.Register(g.VerticesID, g.Position); err != nil {
			return err
		}
	}
	d.Geometries[g.ID] = g
	d.geometryOrder = append(d.geometryOrder, g.ID)
	return nil
}

// AddController registers a controller built in code.
func (d *Document) AddController(c Controller) error {
	if err := d.Registry.Register(c.ControllerID(), c); err != nil {
		return err
	}
	d.Controllers[c.ControllerID()] = c
	d.controllerOrder = append(d.controllerOrder, c.ControllerID())
	return nil
}

// AddScene registers a visual scene built in code. The first added scene
// becomes the active one.
func (d *Document) AddScene(s *Scene) error {
	if err := d.Registry.Register(s.ID, s); err != nil {
		return err
	}
	s.doc = d
	d.Scenes[s.ID] = s
	d.sceneOrder = append(d.sceneOrder, s.ID)
	if d.Scene == nil {
		d.Scene = s
	}
	return nil
}

func (d *Document) loadImage(x xmlImage) error {
	im := &Image{ID: x.ID, Name: x.Name, Path: x.InitFrom}
	if err := d.AddImage(im); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

func (d *Document) loadEffect(x xmlEffect) error {
	e := &Effect{ID: x.ID, Name: x.Name, Shade: ShadeLambert, IndexOfRefraction: 1}
	if x.Profile != nil {
		var shader *xmlShader
		switch tech := x.Profile.Technique; {
		case tech.Lambert != nil:
			shader = tech.Lambert
		case tech.Phong != nil:
			e.Shade = ShadePhong
			shader = tech.Phong
		case tech.Blinn != nil:
			e.Shade = ShadeBlinn
			shader = tech.Blinn
		case tech.Constant != nil:
			e.Shade = ShadeConstant
			shader = tech.Constant
		}
		if shader != nil {
			var err error
			if e.Emission, err = d.loadSlot(x, shader.Emission); err != nil {
				return err
			}
			if e.Ambient, err = d.loadSlot(x, shader.Ambient); err != nil {
				return err
			}
			if e.Diffuse, err = d.loadSlot(x, shader.Diffuse); err != nil {
				return err
			}
			if e.Specular, err = d.loadSlot(x, shader.Specular); err != nil {
				return err
			}
			if shader.Shininess != nil {
				e.Shininess = parseFloat(shader.Shininess.Float, 0)
			}
			if shader.Transparency != nil {
				e.Transparency = parseFloat(shader.Transparency.Float, 0)
			}
			if shader.IOR != nil {
				e.IndexOfRefraction = parseFloat(shader.IOR.Float, 1)
			}
		}
		for _, extra := range append(x.Profile.Technique.Extras, x.Profile.Extras...) {
			for _, t := range extra.Techniques {
				if strings.TrimSpace(t.DoubleSided) == "1" {
					e.DoubleSided = true
				}
			}
		}
	}
	if err := d.AddEffect(e); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

// loadSlot reads one color-or-texture effect slot, chasing the sampler and
// surface parameters a texture reference goes through.
func (d *Document) loadSlot(x xmlEffect, ct *xmlColorOrTexture) (ColorOrTexture, error) {
	var out ColorOrTexture
	if ct == nil {
		return out, nil
	}
	if ct.Color != nil {
		vals, err := parseFloats(ct.Color.Text)
		if err != nil {
			return out, d.report(errMalformed("effect["+x.ID+"]", "color: %v", err))
		}
		copy(out.Color[:], vals)
	}
	if ct.Texture != nil {
		out.TexCoord = ct.Texture.TexCoord
		imageID := ct.Texture.Texture
		// The texture attribute normally names a sampler2D newparam
		// whose source names a surface newparam holding the image id,
		// but plenty of exporters point straight at the image.
		if sampler := findNewParam(x.Profile.NewParams, imageID); sampler != nil && sampler.Sampler != nil {
			if surface := findNewParam(x.Profile.NewParams, sampler.Sampler.Source); surface != nil && surface.Surface != nil {
				imageID = surface.Surface.InitFrom
			}
		}
		ent, err := d.Registry.Resolve(imageID)
		if err != nil {
			rerr := err.(*Error)
			rerr.Where = "effect[" + x.ID + "]"
			return out, d.report(rerr)
		}
		im, ok := ent.(*Image)
		if !ok {
			return out, d.report(errBrokenRef("effect["+x.ID+"]", "%q is not an image", imageID))
		}
		out.Texture = im
	}
	return out, nil
}

func findNewParam(params []xmlNewParam, sid string) *xmlNewParam {
	for i := range params {
		if params[i].SID == sid {
			return &params[i]
		}
	}
	return nil
}

func (d *Document) loadMaterial(x xmlMaterial) error {
	m := &Material{ID: x.ID, Name: x.Name}
	ent, err := d.Registry.Resolve(x.InstanceEffect.URL)
	if err != nil {
		rerr := err.(*Error)
		rerr.Where = "material[" + x.ID + "]"
		if err := d.report(rerr); err != nil {
			return err
		}
	} else if e, ok := ent.(*Effect); ok {
		m.Effect = e
	}
	if err := d.AddMaterial(m); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

func (d *Document) loadCamera(x xmlCamera) error {
	c := &Camera{ID: x.ID, Name: x.Name}
	proj := x.Optics.Technique.Perspective
	if x.Optics.Technique.Orthographic != nil {
		c.Kind = CameraOrthographic
		proj = x.Optics.Technique.Orthographic
	}
	if proj != nil {
		c.XFov = parseFloat(proj.XFov, 0)
		c.YFov = parseFloat(proj.YFov, 0)
		c.XMag = parseFloat(proj.XMag, 0)
		c.YMag = parseFloat(proj.YMag, 0)
		c.AspectRatio = parseFloat(proj.AspectRatio, 0)
		c.ZNear = parseFloat(proj.ZNear, 0)
		c.ZFar = parseFloat(proj.ZFar, 0)
	}
	if err := d.AddCamera(c); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

func (d *Document) loadLight(x xmlLight) error {
	l := &Light{ID: x.ID, Name: x.Name, Color: math3d.V3(1, 1, 1), ConstantAttenuation: 1}
	var params *xmlLightParams
	switch tech := x.Technique; {
	case tech.Directional != nil:
		l.Kind = LightDirectional
		params = tech.Directional
	case tech.Point != nil:
		l.Kind = LightPoint
		params = tech.Point
	case tech.Spot != nil:
		l.Kind = LightSpot
		params = tech.Spot
	case tech.Ambient != nil:
		params = tech.Ambient
	}
	if params != nil {
		if vals, err := parseFloats(params.Color); err == nil && len(vals) >= 3 {
			l.Color = math3d.V3(vals[0], vals[1], vals[2])
		}
		l.ConstantAttenuation = parseFloat(params.ConstantAttenuation, 1)
		l.LinearAttenuation = parseFloat(params.LinearAttenuation, 0)
		l.QuadraticAttenuation = parseFloat(params.QuadraticAttenuation, 0)
		l.FalloffAngle = parseFloat(params.FalloffAngle, 180)
		l.FalloffExponent = parseFloat(params.FalloffExponent, 0)
	}
	if err := d.AddLight(l); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

// loadSource parses one <source> into the matching source variant and
// registers it.
func (d *Document) loadSource(owner string, x xmlSource) (Source, error) {
	components := accessorComponents(x.Technique)
	var (
		src Source
		err error
	)
	switch {
	case x.FloatArray != nil:
		var data []float64
		data, err = parseFloats(x.FloatArray.Text)
		if err == nil {
			src, err = NewFloatSource(x.ID, data, components...)
		}
	case x.NameArray != nil:
		src, err = NewNameSource(x.ID, strings.Fields(x.NameArray.Text), components...)
	case x.IDRefArray != nil:
		src, err = NewIDRefSource(x.ID, strings.Fields(x.IDRefArray.Text), components...)
	default:
		err = errMalformedSource(x.ID, "source has no data array")
	}
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Where = owner + "/source[" + x.ID + "]"
			return nil, d.report(e)
		}
		return nil, d.report(errMalformedSource(owner+"/source["+x.ID+"]", "%v", err))
	}
	if err := d.Registry.Register(x.ID, src); err != nil {
		return nil, d.report(err.(*Error))
	}
	return src, nil
}

// accessorComponents returns the component names of an accessor. Accessors
// without named params fall back to one generated name per stride slot.
func accessorComponents(tc *xmlTechniqueCommon) []string {
	if tc == nil || tc.Accessor == nil {
		return []string{"X"}
	}
	acc := tc.Accessor
	var names []string
	for _, p := range acc.Params {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	if len(names) > 0 {
		return names
	}
	stride := acc.Stride
	if stride <= 0 {
		stride = 1
	}
	names = make([]string, stride)
	for i := range names {
		names[i] = fmt.Sprintf("P%d", i)
	}
	return names
}

func (d *Document) loadGeometry(x xmlGeometry) error {
	where := "geometry[" + x.ID + "]"
	g := NewGeometry(x.ID, x.Name, nil)
	if x.Mesh == nil {
		if err := d.report(errUnsupported(where, "geometry without a mesh")); err != nil {
			return err
		}
		return nil
	}
	for _, xs := range x.Mesh.Sources {
		src, err := d.loadSource(where, xs)
		if err != nil {
			return err
		}
		if fs, ok := src.(*FloatSource); ok && fs != nil {
			g.AddSource(fs)
		}
	}
	if v := x.Mesh.Vertices; v != nil {
		g.VerticesID = v.ID
		for _, in := range v.Inputs {
			if Semantic(in.Semantic) != SemanticPosition {
				continue
			}
			ent, err := d.Registry.Resolve(in.Source)
			if err != nil {
				rerr := err.(*Error)
				rerr.Where = where + "/vertices"
				if err := d.report(rerr); err != nil {
					return err
				}
				continue
			}
			if fs, ok := ent.(*FloatSource); ok {
				g.Position = fs
			}
		}
		if g.Position != nil {
			if err := d.Registry.Register(v.ID, g.Position); err != nil {
				return d.report(err.(*Error))
			}
		}
	}
	for _, extra := range x.Extras {
		for _, t := range extra.Techniques {
			if strings.TrimSpace(t.DoubleSided) == "1" {
				g.DoubleSided = true
			}
		}
	}

	addPrim := func(p Primitive, err error) error {
		if err != nil {
			if e, ok := err.(*Error); ok {
				if e.Where == "" || !strings.HasPrefix(e.Where, where) {
					e.Where = where
				}
				// A primitive that fails with a downgraded error is
				// dropped; its siblings still load.
				return d.report(e)
			}
			return err
		}
		if p != nil {
			g.Primitives = append(g.Primitives, p)
		}
		return nil
	}

	for _, xp := range x.Mesh.Lines {
		il, index, err := d.loadPrimInputs(where+"/lines", xp.Inputs, joinP(xp.P))
		if err != nil {
			if err := addPrim(nil, err); err != nil {
				return err
			}
			continue
		}
		if err := addPrim(NewLineSet(xp.Material, il, index)); err != nil {
			return err
		}
	}
	for _, xp := range x.Mesh.Triangles {
		il, index, err := d.loadPrimInputs(where+"/triangles", xp.Inputs, joinP(xp.P))
		if err != nil {
			if err := addPrim(nil, err); err != nil {
				return err
			}
			continue
		}
		if err := addPrim(NewTriangleSet(xp.Material, il, index)); err != nil {
			return err
		}
	}
	for _, xp := range x.Mesh.TriStrips {
		il, bursts, err := d.loadPrimInputsBursts(where+"/tristrips", xp.Inputs, xp.P)
		if err != nil {
			if err := addPrim(nil, err); err != nil {
				return err
			}
			continue
		}
		if err := addPrim(triangleSetFromStrips(xp.Material, il, bursts)); err != nil {
			return err
		}
	}
	for _, xp := range x.Mesh.TriFans {
		il, bursts, err := d.loadPrimInputsBursts(where+"/trifans", xp.Inputs, xp.P)
		if err != nil {
			if err := addPrim(nil, err); err != nil {
				return err
			}
			continue
		}
		if err := addPrim(triangleSetFromFans(xp.Material, il, bursts)); err != nil {
			return err
		}
	}
	for _, xp := range x.Mesh.Polylists {
		il, index, err := d.loadPrimInputs(where+"/polylist", xp.Inputs, xp.P)
		if err != nil {
			if err := addPrim(nil, err); err != nil {
				return err
			}
			continue
		}
		vcounts, perr := parseInts(xp.VCount)
		if perr != nil {
			if err := addPrim(nil, d.report(errMalformed(where+"/polylist", "vcount: %v", perr))); err != nil {
				return err
			}
			continue
		}
		if err := addPrim(NewPolylist(xp.Material, il, vcounts, index)); err != nil {
			return err
		}
	}
	for _, xp := range x.Mesh.Polygons {
		pwhere := where + "/polygons"
		faces := xp.P
		if len(xp.PH) > 0 {
			if err := d.report(errUnsupported(pwhere, "polygon holes are not supported, keeping outer boundaries")); err != nil {
				return err
			}
			for _, ph := range xp.PH {
				faces = append(faces, ph.P)
			}
		}
		il, bursts, err := d.loadPrimInputsBursts(pwhere, xp.Inputs, faces)
		if err != nil {
			if err := addPrim(nil, err); err != nil {
				return err
			}
			continue
		}
		if err := addPrim(NewPolygons(xp.Material, il, bursts)); err != nil {
			return err
		}
	}

	if err := d.Registry.Register(g.ID, g); err != nil {
		return d.report(err.(*Error))
	}
	d.Geometries[g.ID] = g
	d.geometryOrder = append(d.geometryOrder, g.ID)
	return nil
}

// joinP concatenates the index bursts of a primitive that allows several
// <p> elements.
func joinP(ps []string) string {
	return strings.Join(ps, " ")
}

// loadPrimInputs resolves a primitive's inputs and parses its single index
// stream.
func (d *Document) loadPrimInputs(where string, inputs []xmlInput, p string) (*InputList, []int, error) {
	il, err := d.resolveInputs(where, inputs)
	if err != nil {
		return nil, nil, err
	}
	index, perr := parseInts(p)
	if perr != nil {
		return nil, nil, errMalformed(where, "index: %v", perr)
	}
	return il, index, nil
}

// loadPrimInputsBursts resolves inputs and parses one index stream per <p>
// burst, as tristrips, trifans, and polygons declare.
func (d *Document) loadPrimInputsBursts(where string, inputs []xmlInput, ps []string) (*InputList, [][]int, error) {
	il, err := d.resolveInputs(where, inputs)
	if err != nil {
		return nil, nil, err
	}
	var bursts [][]int
	for _, p := range ps {
		index, perr := parseInts(p)
		if perr != nil {
			return nil, nil, errMalformed(where, "index: %v", perr)
		}
		bursts = append(bursts, index)
	}
	return il, bursts, nil
}

// resolveInputs turns raw input declarations into a resolved InputList.
// VERTEX inputs point at the vertices wrapper, which the registry maps to
// the underlying position source.
func (d *Document) resolveInputs(where string, inputs []xmlInput) (*InputList, error) {
	resolved := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		ent, err := d.Registry.Resolve(in.Source)
		if err != nil {
			rerr := err.(*Error)
			rerr.Where = where
			return nil, rerr
		}
		fs, ok := ent.(*FloatSource)
		if !ok {
			return nil, errBrokenRef(where, "input %s: %q is not a float source", in.Semantic, in.Source)
		}
		offset := 0
		if in.Offset != nil {
			offset = *in.Offset
		}
		set := 0
		if in.Set != nil {
			set = *in.Set
		}
		resolved = append(resolved, Input{
			Offset:    offset,
			Semantic:  Semantic(in.Semantic),
			Source:    fs,
			Set:       set,
			SourceRef: in.Source,
		})
	}
	il, err := NewInputList(resolved)
	if err != nil {
		e := err.(*Error)
		e.Where = where
		return nil, e
	}
	return il, nil
}

func (d *Document) loadController(x xmlController) error {
	where := "controller[" + x.ID + "]"
	switch {
	case x.Skin != nil:
		return d.loadSkin(where, x)
	case x.Morph != nil:
		return d.loadMorph(where, x)
	}
	return d.report(errUnsupported(where, "controller is neither skin nor morph"))
}

func (d *Document) loadSkin(where string, x xmlController) error {
	xs := x.Skin
	ent, err := d.Registry.Resolve(xs.Source)
	if err != nil {
		rerr := err.(*Error)
		rerr.Where = where
		return d.report(rerr)
	}
	geom, ok := ent.(*Geometry)
	if !ok {
		return d.report(errBrokenRef(where, "skin source %q is not a geometry", xs.Source))
	}

	bindShape := math3d.Identity()
	if strings.TrimSpace(xs.BindShapeMatrix) != "" {
		vals, perr := parseFloats(xs.BindShapeMatrix)
		if perr != nil || len(vals) != 16 {
			return d.report(errMalformed(where, "bind_shape_matrix needs 16 values"))
		}
		var raw [16]float64
		copy(raw[:], vals)
		bindShape = math3d.FromRowMajor(raw)
	}

	local := make(map[string]Source)
	for _, src := range xs.Sources {
		s, err := d.loadSource(where, src)
		if err != nil {
			return err
		}
		local[src.ID] = s
	}
	find := func(inputs []xmlInput, sem string) Source {
		for _, in := range inputs {
			if in.Semantic == sem {
				return local[stripRef(in.Source)]
			}
		}
		return nil
	}

	var joints []string
	switch js := find(xs.Joints.Inputs, "JOINT").(type) {
	case *NameSource:
		joints = js.Data
	case *IDRefSource:
		joints = js.Data
	default:
		return d.report(errMalformed(where, "skin has no joint name source"))
	}
	ibm, ok := find(xs.Joints.Inputs, "INV_BIND_MATRIX").(*FloatSource)
	if !ok {
		return d.report(errMalformed(where, "skin has no inverse bind matrix source"))
	}
	if len(ibm.Data) < len(joints)*16 {
		return d.report(errMalformedSource(where, "inverse bind matrix source is not 4x4 per joint"))
	}
	invBind := make([]math3d.Mat4, len(joints))
	for i := range joints {
		var raw [16]float64
		copy(raw[:], ibm.Data[i*16:(i+1)*16])
		invBind[i] = math3d.FromRowMajor(raw)
	}

	weights, ok := find(xs.VertexWeights.Inputs, "WEIGHT").(*FloatSource)
	if !ok {
		return d.report(errMalformed(where, "skin has no weight source"))
	}
	vcounts, perr := parseInts(xs.VertexWeights.VCount)
	if perr != nil {
		return d.report(errMalformed(where, "vcount: %v", perr))
	}
	v, perr := parseInts(xs.VertexWeights.V)
	if perr != nil {
		return d.report(errMalformed(where, "v: %v", perr))
	}
	// Reorder the interleaved influence array into (joint, weight) pairs
	// per the declared offsets.
	jointOff, weightOff, stride := 0, 1, 2
	for _, in := range xs.VertexWeights.Inputs {
		if in.Offset == nil {
			continue
		}
		switch in.Semantic {
		case "JOINT":
			jointOff = *in.Offset
		case "WEIGHT":
			weightOff = *in.Offset
		}
		if *in.Offset+1 > stride {
			stride = *in.Offset + 1
		}
	}
	total := 0
	for _, vc := range vcounts {
		total += vc
	}
	if total*stride != len(v) {
		return d.report(errMalformed(where, "influence array has %d entries, want %d", len(v), total*stride))
	}
	pairs := make([]int, 0, total*2)
	for i := range total {
		pairs = append(pairs, v[i*stride+jointOff], v[i*stride+weightOff])
	}

	skin, err := NewSkin(x.ID, bindShape, joints, invBind, weights, vcounts, pairs, geom)
	if err != nil {
		return d.report(err.(*Error))
	}
	if err := d.AddController(skin); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

func (d *Document) loadMorph(where string, x xmlController) error {
	xm := x.Morph
	ent, err := d.Registry.Resolve(xm.Source)
	if err != nil {
		rerr := err.(*Error)
		rerr.Where = where
		return d.report(rerr)
	}
	base, ok := ent.(*Geometry)
	if !ok {
		return d.report(errBrokenRef(where, "morph source %q is not a geometry", xm.Source))
	}

	local := make(map[string]Source)
	for _, src := range xm.Sources {
		s, err := d.loadSource(where, src)
		if err != nil {
			return err
		}
		local[src.ID] = s
	}
	find := func(sem string) Source {
		for _, in := range xm.Targets.Inputs {
			if in.Semantic == sem {
				return local[stripRef(in.Source)]
			}
		}
		return nil
	}
	targetIDs, ok := find("MORPH_TARGET").(*IDRefSource)
	if !ok {
		return d.report(errMalformed(where, "morph has no target source"))
	}
	weightSrc, ok := find("MORPH_WEIGHT").(*FloatSource)
	if !ok {
		return d.report(errMalformed(where, "morph has no weight source"))
	}

	var (
		targets []*Geometry
		weights []float64
	)
	for i, id := range targetIDs.Data {
		ent, err := d.Registry.Resolve(id)
		if err != nil {
			rerr := err.(*Error)
			rerr.Where = where
			if err := d.report(rerr); err != nil {
				return err
			}
			continue
		}
		tg, ok := ent.(*Geometry)
		if !ok {
			if err := d.report(errBrokenRef(where, "morph target %q is not a geometry", id)); err != nil {
				return err
			}
			continue
		}
		w := 0.0
		if i < weightSrc.TupleCount() {
			w = weightSrc.Tuple(i)[0]
		}
		targets = append(targets, tg)
		weights = append(weights, w)
	}

	method := MorphNormalized
	if strings.EqualFold(xm.Method, "RELATIVE") {
		method = MorphRelative
	}
	morph, err := NewMorph(x.ID, method, base, targets, weights)
	if err != nil {
		return d.report(err.(*Error))
	}
	if err := d.AddController(morph); err != nil {
		return d.report(err.(*Error))
	}
	return nil
}

func (d *Document) loadVisualScene(x xmlVisualScene) error {
	s := &Scene{ID: x.ID, Name: x.Name, doc: d}
	for _, xn := range x.Nodes {
		n, err := d.loadNode("scene["+x.ID+"]", xn)
		if err != nil {
			return err
		}
		if n != nil {
			s.Nodes = append(s.Nodes, n)
		}
	}
	if err := d.Registry.Register(s.ID, s); err != nil {
		return d.report(err.(*Error))
	}
	d.Scenes[s.ID] = s
	d.sceneOrder = append(d.sceneOrder, s.ID)
	return nil
}

// loadNode builds one scene node. Instance references go through the
// registry's deferred queue so that a node may instance an element declared
// later in the document.
func (d *Document) loadNode(where string, x *xmlNode) (*Node, error) {
	n := &Node{ID: x.ID, SID: x.SID, Name: x.Name}
	nwhere := where + "/node[" + x.ID + "]"
	for _, item := range x.Items {
		switch item.Kind {
		case "translate", "rotate", "scale", "matrix", "lookat":
			t, err := parseTransform(nwhere, item.Kind, item.Text)
			if err != nil {
				if rerr := d.report(err.(*Error)); rerr != nil {
					return nil, rerr
				}
				continue
			}
			n.Transforms = append(n.Transforms, t)
		case "node":
			child, err := d.loadNode(nwhere, item.Node)
			if err != nil {
				return nil, err
			}
			if child != nil {
				n.Children = append(n.Children, child)
			}
		case "instance_node":
			inst := &NodeInstance{}
			d.Registry.Defer(item.Instance.URL, func(e any) {
				if target, ok := e.(*Node); ok {
					inst.Node = target
				}
			})
			n.Children = append(n.Children, inst)
		case "instance_geometry":
			inst := &GeometryInstance{Materials: map[string]*Material{}}
			if err := d.bindInstanceMaterials(nwhere, inst.Materials, item.Instance); err != nil {
				return nil, err
			}
			d.Registry.Defer(item.Instance.URL, func(e any) {
				if g, ok := e.(*Geometry); ok {
					inst.Geometry = g
				}
			})
			n.Children = append(n.Children, inst)
		case "instance_controller":
			inst := &ControllerInstance{Materials: map[string]*Material{}}
			if err := d.bindInstanceMaterials(nwhere, inst.Materials, item.Instance); err != nil {
				return nil, err
			}
			d.Registry.Defer(item.Instance.URL, func(e any) {
				if c, ok := e.(Controller); ok {
					inst.Controller = c
				}
			})
			n.Children = append(n.Children, inst)
		case "instance_camera":
			inst := &CameraInstance{}
			d.Registry.Defer(item.Instance.URL, func(e any) {
				if c, ok := e.(*Camera); ok {
					inst.Camera = c
				}
			})
			n.Children = append(n.Children, inst)
		case "instance_light":
			inst := &LightInstance{}
			d.Registry.Defer(item.Instance.URL, func(e any) {
				if l, ok := e.(*Light); ok {
					inst.Light = l
				}
			})
			n.Children = append(n.Children, inst)
		}
	}
	if n.ID != "" {
		if err := d.Registry.Register(n.ID, n); err != nil {
			return nil, d.report(err.(*Error))
		}
	}
	return n, nil
}

// bindInstanceMaterials fills an instance's material-symbol table.
func (d *Document) bindInstanceMaterials(where string, table map[string]*Material, inst *xmlInstance) error {
	if inst.BindMaterial == nil {
		return nil
	}
	for _, im := range inst.BindMaterial.Technique.Materials {
		ent, err := d.Registry.Resolve(im.Target)
		if err != nil {
			rerr := err.(*Error)
			rerr.Where = where
			if err := d.report(rerr); err != nil {
				return err
			}
			continue
		}
		m, ok := ent.(*Material)
		if !ok {
			if err := d.report(errBrokenRef(where, "bound target %q is not a material", im.Target)); err != nil {
				return err
			}
			continue
		}
		table[im.Symbol] = m
	}
	return nil
}

// parseTransform reads one transform operator payload.
func parseTransform(where, kind, text string) (Transform, error) {
	vals, err := parseFloats(text)
	if err != nil {
		return nil, errMalformed(where, "%s: %v", kind, err)
	}
	bad := func(want int) error {
		return errMalformed(where, "%s needs %d values, got %d", kind, want, len(vals))
	}
	switch kind {
	case "translate":
		if len(vals) != 3 {
			return nil, bad(3)
		}
		return TranslateTransform{Offset: math3d.V3(vals[0], vals[1], vals[2])}, nil
	case "rotate":
		if len(vals) != 4 {
			return nil, bad(4)
		}
		return RotateTransform{Axis: math3d.V3(vals[0], vals[1], vals[2]), Degrees: vals[3]}, nil
	case "scale":
		if len(vals) != 3 {
			return nil, bad(3)
		}
		return ScaleTransform{Factors: math3d.V3(vals[0], vals[1], vals[2])}, nil
	case "matrix":
		if len(vals) != 16 {
			return nil, bad(16)
		}
		var raw [16]float64
		copy(raw[:], vals)
		return MatrixTransform{M: math3d.FromRowMajor(raw)}, nil
	case "lookat":
		if len(vals) != 9 {
			return nil, bad(9)
		}
		return LookAtTransform{
			Eye:      math3d.V3(vals[0], vals[1], vals[2]),
			Interest: math3d.V3(vals[3], vals[4], vals[5]),
			Up:       math3d.V3(vals[6], vals[7], vals[8]),
		}, nil
	}
	return nil, errMalformed(where, "unknown transform %s", kind)
}
