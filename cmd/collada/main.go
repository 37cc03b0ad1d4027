// collada - COLLADA document inspector and converter
// Load .dae documents (plain or zip-wrapped), print their contents,
// re-save them, or export the active scene as glTF.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taigrr/collada/pkg/dae"
	"github.com/taigrr/collada/pkg/export"
)

var (
	entry    = flag.String("entry", "", "Archive member to load instead of the first .dae entry")
	lenient  = flag.Bool("lenient", false, "Downgrade broken references and unsupported features to warnings")
	outPath  = flag.String("o", "", "Re-save the document to this path")
	gltfPath = flag.String("gltf", "", "Export the active scene as glTF (.gltf or .glb)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "collada - COLLADA document inspector and converter\n\n")
		fmt.Fprintf(os.Stderr, "Usage: collada [options] <model.dae|model.zip>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	var opts []dae.Option
	if *entry != "" {
		opts = append(opts, dae.WithArchiveEntry(*entry))
	}
	if *lenient {
		opts = append(opts, dae.WithIgnore(dae.KindBrokenRef, dae.KindUnsupported))
	}

	doc, err := dae.Open(path, opts...)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	fmt.Printf("Loaded: %s (COLLADA %s", filepath.Base(path), doc.Version)
	if doc.UpAxis != "" {
		fmt.Printf(", %s", doc.UpAxis)
	}
	fmt.Println(")")

	printCount := func(name string, n int) {
		if n > 0 {
			fmt.Printf("  %-12s %d\n", name, n)
		}
	}
	printCount("images", len(doc.Images))
	printCount("effects", len(doc.Effects))
	printCount("materials", len(doc.Materials))
	printCount("cameras", len(doc.Cameras))
	printCount("lights", len(doc.Lights))
	printCount("geometries", len(doc.Geometries))
	printCount("controllers", len(doc.Controllers))
	printCount("scenes", len(doc.Scenes))

	if doc.Scene != nil {
		instances, triangles := 0, 0
		for bg, err := range doc.Scene.Geometries() {
			if err != nil {
				return fmt.Errorf("traverse scene: %w", err)
			}
			instances++
			for _, bp := range bg.Primitives() {
				triangles += bp.Triangulated().FaceCount()
			}
		}
		for bc, err := range doc.Scene.Controllers() {
			if err != nil {
				return fmt.Errorf("traverse scene: %w", err)
			}
			instances++
			for _, bp := range bc.BoundGeometry().Primitives() {
				triangles += bp.Triangulated().FaceCount()
			}
		}
		fmt.Printf("Scene %q: %d instances, %d triangles\n", doc.Scene.ID, instances, triangles)
	}

	for _, e := range doc.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", e)
	}

	if *outPath != "" {
		if err := doc.Save(*outPath); err != nil {
			return err
		}
		fmt.Printf("Saved: %s\n", *outPath)
	}
	if *gltfPath != "" {
		if err := export.Save(doc, *gltfPath); err != nil {
			return err
		}
		fmt.Printf("Exported: %s\n", *gltfPath)
	}
	return nil
}
