package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestName(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"widget", "printables-widget.zip"},
		{"gear box", "printables-gear-box.zip"},
		{"v2.1_final", "printables-v2.1_final.zip"},
		{"oddly/nested", "printables-oddly-nested.zip"},
	}
	for _, tt := range tests {
		if got := Name(tt.dir); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestDestPath(t *testing.T) {
	p := NewPackager(map[string]string{"slicer": "profiles"})

	tests := []struct {
		rel  string
		want string
		ok   bool
	}{
		{"slicer/prusa.ini", "profiles/prusa.ini", true},
		{"images/publish/widget.png", "images/widget.png", true},
		{"images/readme/widget.png", "", false},
		{"images/widget_readme.png", "", false},
		{"widget.stl", "stl/widget.stl", true},
		{"parts/lid.stl", "stl/lid.stl", true},
		{"widget.pdf", "doc/widget.pdf", true},
		{"widget.scad", "widget.scad", true},
		{"gcode/widget.gcode", "gcode/widget.gcode", true},
	}
	for _, tt := range tests {
		got, ok := p.DestPath(tt.rel)
		if got != tt.want || ok != tt.ok {
			t.Errorf("DestPath(%q) = (%q, %v), want (%q, %v)", tt.rel, got, ok, tt.want, tt.ok)
		}
	}
}

// Override categories win over the extension rules.
func TestDestPathOverridePrecedence(t *testing.T) {
	p := NewPackager(map[string]string{"extras": "bonus"})
	got, ok := p.DestPath("extras/spare.stl")
	if !ok || got != "bonus/spare.stl" {
		t.Errorf("DestPath = (%q, %v), want (bonus/spare.stl, true)", got, ok)
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) []File {
	t.Helper()
	var out []File
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		out = append(out, File{Path: path, Rel: rel})
	}
	return out
}

// Archived file contents must survive byte for byte under their
// remapped destinations.
func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, map[string]string{
		"widget.stl":                "solid widget",
		"widget.pdf":                "%PDF-1.7 widget",
		"images/publish/beauty.png": "png bytes",
		"images/readme/thumb.png":   "excluded",
		"widget.scad":               "cube(10);",
	})

	var buf bytes.Buffer
	if err := NewPackager(nil).Write(&buf, files, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := readZip(t, buf.Bytes())
	want := map[string]string{
		"stl/widget.stl":    "solid widget",
		"doc/widget.pdf":    "%PDF-1.7 widget",
		"images/beauty.png": "png bytes",
		"widget.scad":       "cube(10);",
	}
	if len(got) != len(want) {
		t.Fatalf("entries = %v", keys(got))
	}
	for dest, content := range want {
		if got[dest] != content {
			t.Errorf("%s = %q, want %q", dest, got[dest], content)
		}
	}
}

func TestWriteNestedLibraries(t *testing.T) {
	dir := t.TempDir()
	files := writeFiles(t, dir, map[string]string{
		"widget.scad":      "use <mylib/gears.scad>",
		"mylib/gears.scad": "module gear() {}",
	})

	libs := []File{{Path: filepath.Join(dir, "mylib", "gears.scad"), Rel: "mylib/gears.scad"}}

	var buf bytes.Buffer
	if err := NewPackager(nil).Write(&buf, files, libs); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := readZip(t, buf.Bytes())
	if _, loose := got["mylib/gears.scad"]; loose {
		t.Error("library file appeared as a loose entry")
	}
	nested, ok := got[LibrariesZip]
	if !ok {
		t.Fatalf("no %s entry: %v", LibrariesZip, keys(got))
	}

	inner := readZip(t, []byte(nested))
	if inner["mylib/gears.scad"] != "module gear() {}" {
		t.Errorf("nested entries = %v", keys(inner))
	}
}

func TestLibraryFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	dir := t.TempDir()
	libSrc := filepath.Join(dir, "libsrc")
	model := filepath.Join(dir, "widget")
	for _, d := range []string{libSrc, model, filepath.Join(model, "plain")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"gears.scad", "threads.scad", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(libSrc, f), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Plain subdirectories are not libraries, only symlinked ones.
	if err := os.WriteFile(filepath.Join(model, "plain", "local.scad"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(libSrc, filepath.Join(model, "mylib")); err != nil {
		t.Fatal(err)
	}

	libs, err := LibraryFiles(model)
	if err != nil {
		t.Fatalf("LibraryFiles: %v", err)
	}
	var rels []string
	for _, lf := range libs {
		rels = append(rels, lf.Rel)
	}
	want := []string{"mylib/gears.scad", "mylib/threads.scad"}
	if len(rels) != len(want) || rels[0] != want[0] || rels[1] != want[1] {
		t.Errorf("libs = %v, want %v", rels, want)
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading %s: %v", f.Name, err)
		}
		out[f.Name] = string(content)
	}
	return out
}

func keys(m map[string]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
