// Package manifest loads declarative model build descriptions.
//
// Each model directory carries a model.hcl describing what to build from
// its OpenSCAD sources:
//
//	stl "widget.stl" {
//	  source = "widget.scad"
//	  vals   = { wall = 2.4, lid = true }
//	  deps   = ["lib/common.scad"]
//	}
//
//	image "widget.png" {
//	  source = "widget.scad"
//	  frames = [{ angle = 0 }, { angle = 180 }]
//	  camera = "0,0,0,55,0,25,140"
//	}
//
//	document "widget.pdf" {
//	  source = "README.md"
//	  images = ["widget.png"]
//	}
//
//	asset "gcode" {
//	  dir = "gcode"
//	}
//
// The vals/frames attributes take arbitrary HCL objects; values are decoded
// to native Go types and become -D defines on the OpenSCAD command line.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/printforge/printforge/pkg/errors"
)

// Filename is the manifest filename looked up in each model directory.
const Filename = "model.hcl"

// Manifest is a fully decoded model build description.
type Manifest struct {
	Dir  string // Model directory path (as given to Load)
	Name string // Model directory base name

	STLs      []STL
	Images    []Image
	Documents []Document
	Assets    []Asset
}

// STL declares one compiled geometry output.
type STL struct {
	Out    string         // Output filename, e.g. "widget.stl"
	Source string         // OpenSCAD entry file
	Vals   map[string]any // Customizer defines
	Deps   []string       // Additional source dependencies
}

// Image declares one rendered image output (static or animated).
type Image struct {
	Out    string           // Output filename, e.g. "widget.png" or "turntable.gif"
	Source string           // OpenSCAD entry file
	Frames []map[string]any // One customizer set per frame (never empty after Load)
	Camera string           // Optional camera override
	View   string           // Optional view options
	Delay  int              // Per-frame delay for animated outputs (0 = config default)
}

// Animated reports whether the output is an animated format.
func (i Image) Animated() bool {
	return strings.EqualFold(filepath.Ext(i.Out), ".gif")
}

// Document declares one typeset PDF output.
type Document struct {
	Out    string   // Output filename, e.g. "widget.pdf"
	Source string   // Markdown input
	Images []string // Image outputs the document embeds
}

// Asset declares a directory bundled into the archive as-is, with an
// optional destination category override.
type Asset struct {
	Name     string // Block label
	Dir      string // Directory relative to the model dir
	Category string // Archive destination prefix (defaults to Dir)
}

// hclManifest mirrors the manifest file structure for gohcl decoding.
// vals/frames decode as cty.Value because their object shapes are
// model-specific.
type hclManifest struct {
	STLs      []hclSTL      `hcl:"stl,block"`
	Images    []hclImage    `hcl:"image,block"`
	Documents []hclDocument `hcl:"document,block"`
	Assets    []hclAsset    `hcl:"asset,block"`
}

type hclSTL struct {
	Out    string    `hcl:"out,label"`
	Source string    `hcl:"source"`
	Vals   cty.Value `hcl:"vals,optional"`
	Deps   []string  `hcl:"deps,optional"`
}

type hclImage struct {
	Out    string    `hcl:"out,label"`
	Source string    `hcl:"source"`
	Vals   cty.Value `hcl:"vals,optional"`
	Frames cty.Value `hcl:"frames,optional"`
	Camera string    `hcl:"camera,optional"`
	View   string    `hcl:"view,optional"`
	Delay  int       `hcl:"delay,optional"`
}

type hclDocument struct {
	Out    string   `hcl:"out,label"`
	Source string   `hcl:"source"`
	Images []string `hcl:"images,optional"`
}

type hclAsset struct {
	Name     string `hcl:"name,label"`
	Dir      string `hcl:"dir"`
	Category string `hcl:"category,optional"`
}

// Load reads and validates the manifest in the given model directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeManifestNotFound, "no %s in %s", Filename, dir)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "reading %s", path)
	}
	return Parse(data, path, dir)
}

// Parse decodes manifest bytes. filename is used for diagnostics only.
func Parse(data []byte, filename, dir string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, diags, "parsing %s", filename)
	}

	var raw hclManifest
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, diags, "decoding %s", filename)
	}

	m := &Manifest{
		Dir:  dir,
		Name: filepath.Base(dir),
	}

	for _, s := range raw.STLs {
		vals, err := decodeVals(s.Vals)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "stl %q vals", s.Out)
		}
		m.STLs = append(m.STLs, STL{
			Out:    s.Out,
			Source: s.Source,
			Vals:   vals,
			Deps:   s.Deps,
		})
	}

	for _, img := range raw.Images {
		frames, err := decodeFrames(img.Vals, img.Frames)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "image %q", img.Out)
		}
		m.Images = append(m.Images, Image{
			Out:    img.Out,
			Source: img.Source,
			Frames: frames,
			Camera: img.Camera,
			View:   img.View,
			Delay:  img.Delay,
		})
	}

	for _, d := range raw.Documents {
		m.Documents = append(m.Documents, Document{
			Out:    d.Out,
			Source: d.Source,
			Images: d.Images,
		})
	}

	for _, a := range raw.Assets {
		category := a.Category
		if category == "" {
			category = a.Dir
		}
		m.Assets = append(m.Assets, Asset{
			Name:     a.Name,
			Dir:      a.Dir,
			Category: category,
		})
	}

	return m, m.validate()
}

// decodeFrames resolves the vals/frames attributes into a per-frame list
// of customizer sets. Declaring neither yields a single frame with no
// defines; declaring both is an error.
func decodeFrames(vals, frames cty.Value) ([]map[string]any, error) {
	hasVals := vals != cty.NilVal && !vals.IsNull()
	hasFrames := frames != cty.NilVal && !frames.IsNull()

	if hasVals && hasFrames {
		return nil, fmt.Errorf("vals and frames are mutually exclusive")
	}

	switch {
	case hasFrames:
		native, err := ctyToNative(frames)
		if err != nil {
			return nil, err
		}
		list, ok := native.([]any)
		if !ok {
			return nil, fmt.Errorf("frames must be a list of objects")
		}
		if len(list) == 0 {
			return []map[string]any{{}}, nil
		}
		out := make([]map[string]any, 0, len(list))
		for i, el := range list {
			frame, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("frame %d is not an object", i)
			}
			out = append(out, frame)
		}
		return out, nil

	case hasVals:
		frame, err := decodeVals(vals)
		if err != nil {
			return nil, err
		}
		return []map[string]any{frame}, nil

	default:
		return []map[string]any{{}}, nil
	}
}

// decodeVals converts a vals object into a native map.
func decodeVals(v cty.Value) (map[string]any, error) {
	if v == cty.NilVal || v.IsNull() {
		return nil, nil
	}
	native, err := ctyToNative(v)
	if err != nil {
		return nil, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("vals must be an object")
	}
	return m, nil
}

// validate enforces cross-block invariants.
func (m *Manifest) validate() error {
	seen := make(map[string]bool)
	for _, s := range m.STLs {
		if !strings.EqualFold(filepath.Ext(s.Out), ".stl") {
			return errors.New(errors.ErrCodeInvalidManifest, "stl output %q must end in .stl", s.Out)
		}
		if seen[s.Out] {
			return errors.New(errors.ErrCodeInvalidManifest, "duplicate output %q", s.Out)
		}
		seen[s.Out] = true
	}

	imageOuts := make([]string, 0, len(m.Images))
	for _, img := range m.Images {
		ext := strings.ToLower(filepath.Ext(img.Out))
		if ext != ".png" && ext != ".gif" {
			return errors.New(errors.ErrCodeInvalidManifest, "image output %q must end in .png or .gif", img.Out)
		}
		if seen[img.Out] {
			return errors.New(errors.ErrCodeInvalidManifest, "duplicate output %q", img.Out)
		}
		seen[img.Out] = true
		imageOuts = append(imageOuts, img.Out)
	}

	for _, d := range m.Documents {
		if !strings.EqualFold(filepath.Ext(d.Out), ".pdf") {
			return errors.New(errors.ErrCodeInvalidManifest, "document output %q must end in .pdf", d.Out)
		}
		if seen[d.Out] {
			return errors.New(errors.ErrCodeInvalidManifest, "duplicate output %q", d.Out)
		}
		seen[d.Out] = true
		for _, img := range d.Images {
			if !slices.Contains(imageOuts, img) {
				return errors.New(errors.ErrCodeInvalidManifest,
					"document %q references unknown image %q", d.Out, img)
			}
		}
	}

	for _, a := range m.Assets {
		if a.Dir == "" || strings.HasPrefix(a.Dir, "/") || strings.Contains(a.Dir, "..") {
			return errors.New(errors.ErrCodeInvalidManifest, "asset %q has invalid dir %q", a.Name, a.Dir)
		}
	}

	return nil
}

// Discover returns the model directory names under root, sorted.
// A model directory is a direct child of root containing a manifest.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var models []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), Filename)); err == nil {
			models = append(models, e.Name())
		}
	}
	slices.Sort(models)
	return models, nil
}
