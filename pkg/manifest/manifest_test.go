package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/printforge/printforge/pkg/errors"
)

func parseManifest(t *testing.T, src string) *Manifest {
	t.Helper()
	m, err := Parse([]byte(src), "model.hcl", "widget")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestParseSTL(t *testing.T) {
	m := parseManifest(t, `
stl "widget.stl" {
  source = "widget.scad"
  vals   = { wall = 2.4, lid = true, finish = "matte" }
  deps   = ["lib/common.scad"]
}
`)

	if len(m.STLs) != 1 {
		t.Fatalf("STLs = %d, want 1", len(m.STLs))
	}
	s := m.STLs[0]
	if s.Out != "widget.stl" || s.Source != "widget.scad" {
		t.Errorf("stl = %+v", s)
	}
	if s.Vals["wall"] != 2.4 {
		t.Errorf("wall = %v (%T)", s.Vals["wall"], s.Vals["wall"])
	}
	if s.Vals["lid"] != true {
		t.Errorf("lid = %v", s.Vals["lid"])
	}
	if s.Vals["finish"] != "matte" {
		t.Errorf("finish = %v", s.Vals["finish"])
	}
	if len(s.Deps) != 1 || s.Deps[0] != "lib/common.scad" {
		t.Errorf("deps = %v", s.Deps)
	}
	if m.Name != "widget" {
		t.Errorf("Name = %q", m.Name)
	}
}

func TestParseImageSingleFrame(t *testing.T) {
	m := parseManifest(t, `
image "widget.png" {
  source = "widget.scad"
  vals   = { open = true }
  camera = "0,0,0,55,0,25,140"
  view   = "axes"
}
`)

	img := m.Images[0]
	if len(img.Frames) != 1 {
		t.Fatalf("Frames = %d, want 1", len(img.Frames))
	}
	if img.Frames[0]["open"] != true {
		t.Errorf("frame vals = %v", img.Frames[0])
	}
	if img.Camera == "" || img.View != "axes" {
		t.Errorf("img = %+v", img)
	}
	if img.Animated() {
		t.Error("png should not be animated")
	}
}

func TestParseImageFrames(t *testing.T) {
	m := parseManifest(t, `
image "turntable.gif" {
  source = "widget.scad"
  frames = [{ angle = 0 }, { angle = 120 }, { angle = 240 }]
  delay  = 50
}
`)

	img := m.Images[0]
	if len(img.Frames) != 3 {
		t.Fatalf("Frames = %d, want 3", len(img.Frames))
	}
	if img.Frames[1]["angle"] != float64(120) {
		t.Errorf("frame 1 = %v", img.Frames[1])
	}
	if !img.Animated() {
		t.Error("gif should be animated")
	}
	if img.Delay != 50 {
		t.Errorf("delay = %d", img.Delay)
	}
}

func TestParseImageNoVals(t *testing.T) {
	// Neither vals nor frames: one frame with no defines
	m := parseManifest(t, `
image "widget.png" {
  source = "widget.scad"
}
`)
	img := m.Images[0]
	if len(img.Frames) != 1 || len(img.Frames[0]) != 0 {
		t.Errorf("Frames = %v, want one empty frame", img.Frames)
	}
}

func TestParseDocumentAndAssets(t *testing.T) {
	m := parseManifest(t, `
image "widget.png" {
  source = "widget.scad"
}

document "widget.pdf" {
  source = "README.md"
  images = ["widget.png"]
}

asset "gcode" {
  dir = "gcode"
}

asset "profiles" {
  dir      = "slicer"
  category = "profiles"
}
`)

	if len(m.Documents) != 1 || m.Documents[0].Source != "README.md" {
		t.Fatalf("Documents = %+v", m.Documents)
	}
	if len(m.Assets) != 2 {
		t.Fatalf("Assets = %+v", m.Assets)
	}
	// Category defaults to the directory
	if m.Assets[0].Category != "gcode" {
		t.Errorf("default category = %q", m.Assets[0].Category)
	}
	if m.Assets[1].Category != "profiles" || m.Assets[1].Dir != "slicer" {
		t.Errorf("override category = %+v", m.Assets[1])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", `stl "x.stl" {`},
		{"missing source", `stl "x.stl" {}`},
		{"bad stl extension", `stl "x.obj" { source = "x.scad" }`},
		{"bad image extension", `image "x.bmp" { source = "x.scad" }`},
		{"bad document extension", `document "x.doc" { source = "x.md" }`},
		{"duplicate outputs", `
stl "x.stl" { source = "x.scad" }
stl "x.stl" { source = "y.scad" }`},
		{"vals and frames together", `
image "x.png" {
  source = "x.scad"
  vals   = { a = 1 }
  frames = [{ a = 2 }]
}`},
		{"document references unknown image", `
document "x.pdf" {
  source = "README.md"
  images = ["nope.png"]
}`},
		{"asset escaping the model dir", `asset "bad" { dir = "../secrets" }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "model.hcl", "widget")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errors.ErrCodeInvalidManifest) {
				t.Errorf("code = %q, want INVALID_MANIFEST: %v", errors.GetCode(err), err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "widget")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	src := `stl "widget.stl" { source = "widget.scad" }`
	if err := os.WriteFile(filepath.Join(dir, Filename), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "widget" || len(m.STLs) != 1 {
		t.Errorf("m = %+v", m)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("code = %q, want MANIFEST_NOT_FOUND", errors.GetCode(err))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"widget", "gearbox", "_static", ".git", "empty"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	for _, dir := range []string{"widget", "gearbox"} {
		if err := os.WriteFile(filepath.Join(root, dir, Filename), []byte(""), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// A stray file at the root should not confuse discovery
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	models, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(models) != 2 || models[0] != "gearbox" || models[1] != "widget" {
		t.Errorf("models = %v", models)
	}
}
