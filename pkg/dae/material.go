package dae

import (
	"bytes"
	"fmt"
	"image"

	// Register decoders for the texture formats found in the wild.
	_ "image/jpeg"
	_ "image/png"
)

// Image is a texture reference from the image library. Pixel data is read
// and decoded lazily: first from the document's archive (when the document
// came from one), then from disk relative to the document, then through the
// caller-supplied auxiliary loader.
type Image struct {
	ID   string
	Name string
	// Path is the init_from value, normally a relative file path.
	Path string

	loader func(path string) ([]byte, error)

	data    []byte
	decoded image.Image
}

// Data returns the raw bytes of the image file.
func (im *Image) Data() ([]byte, error) {
	if im.data != nil {
		return im.data, nil
	}
	if im.loader == nil {
		return nil, fmt.Errorf("image %s: no resource loader available", im.ID)
	}
	b, err := im.loader(im.Path)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", im.ID, err)
	}
	im.data = b
	return b, nil
}

// Decode returns the decoded pixel buffer.
func (im *Image) Decode() (image.Image, error) {
	if im.decoded != nil {
		return im.decoded, nil
	}
	b, err := im.Data()
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("image %s: decode: %w", im.ID, err)
	}
	im.decoded = img
	return img, nil
}

// ShadeType is the shading model of an effect's common profile.
type ShadeType int

const (
	ShadeLambert ShadeType = iota
	ShadePhong
	ShadeBlinn
	ShadeConstant
)

func (s ShadeType) String() string {
	switch s {
	case ShadePhong:
		return "phong"
	case ShadeBlinn:
		return "blinn"
	case ShadeConstant:
		return "constant"
	}
	return "lambert"
}

// ColorOrTexture is one effect slot: either a flat RGBA color or a sampled
// texture with the name of the texture coordinate channel to sample with.
type ColorOrTexture struct {
	Color    [4]float64
	Texture  *Image
	TexCoord string
}

// IsTexture reports whether the slot samples a texture.
func (ct ColorOrTexture) IsTexture() bool { return ct.Texture != nil }

// Effect holds the common-profile shading parameters a material points at.
type Effect struct {
	ID    string
	Name  string
	Shade ShadeType

	Emission ColorOrTexture
	Ambient  ColorOrTexture
	Diffuse  ColorOrTexture
	Specular ColorOrTexture

	Shininess         float64
	Transparency      float64
	IndexOfRefraction float64

	DoubleSided bool
}

// Material binds a name to an effect. Primitives reference materials only
// through instance symbol tables, never directly.
type Material struct {
	ID     string
	Name   string
	Effect *Effect
}
