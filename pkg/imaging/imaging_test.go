package imaging

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/printforge/printforge/pkg/cache"
	"github.com/printforge/printforge/pkg/scad"
	"github.com/printforge/printforge/pkg/shell"
)

func TestGifArgs(t *testing.T) {
	args := gifArgs([]string{"f0.png", "f1.png"}, "400x300", 50, "out.gif")
	want := "-resize 400x300 -loop 0 -delay 50 f0.png f1.png out.gif"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("gifArgs = %q, want %q", got, want)
	}
}

func TestMontageArgs(t *testing.T) {
	tests := []struct {
		frames int
		rows   string
	}{
		{2, "x1"},
		{3, "x2"},
		{4, "x2"},
		{5, "x3"},
	}
	for _, tt := range tests {
		frames := make([]string, tt.frames)
		args := montageArgs(frames, "grid.png")
		if args[0] != "-tile" || args[1] != tt.rows {
			t.Errorf("%d frames: tile = %s %s, want -tile %s", tt.frames, args[0], args[1], tt.rows)
		}
		if args[2] != "-geometry" || args[3] != "+0+0" {
			t.Errorf("%d frames: geometry args = %v", tt.frames, args[2:4])
		}
	}
}

func TestResizeArgs(t *testing.T) {
	args := resizeArgs("in.png", "400x300", "out.png")
	if got := strings.Join(args, " "); got != "-resize 400x300 in.png out.png" {
		t.Errorf("resizeArgs = %q", got)
	}
}

func TestAnimated(t *testing.T) {
	if !(Request{Out: "turntable.gif"}).Animated() {
		t.Error("gif should be animated")
	}
	if (Request{Out: "widget.png"}).Animated() {
		t.Error("png should not be animated")
	}
}

// writeTool writes a shell script that scans its argv for "-o out" (or
// falls back to the last argument) and writes a marker file there, while
// counting its invocations in countFile.
func writeTool(t *testing.T, dir, name, countFile string) string {
	t.Helper()
	script := `#!/bin/sh
echo x >> "` + countFile + `"
out=""
while [ $# -gt 1 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
if [ -z "$out" ]; then out="$1"; fi
echo rendered > "$out"
`
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderUsesFrameCache(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}

	dir := t.TempDir()
	countScad := filepath.Join(dir, "scad.count")
	countConv := filepath.Join(dir, "conv.count")
	scadBin := writeTool(t, dir, "openscad", countScad)
	convBin := writeTool(t, dir, "convert", countConv)

	src := filepath.Join(dir, "widget.scad")
	if err := os.WriteFile(src, []byte("cube(10);"), 0644); err != nil {
		t.Fatal(err)
	}

	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer fc.Close()

	runner := shell.NewRunner(nil)
	runner.Quiet = true
	r := NewRenderer(scad.NewCompiler(scadBin, runner), runner, fc, cache.NewDefaultKeyer(), nil)
	r.ConvertBin = convBin

	req := Request{
		Source:      src,
		Out:         filepath.Join(dir, "out", "widget.png"),
		Frames:      []map[string]any{{"open": true}},
		WorkSize:    "1200,900",
		FinalSize:   "400x300",
		Colorscheme: "DeepOcean",
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := r.Render(ctx, req); err != nil {
			t.Fatalf("Render #%d: %v", i+1, err)
		}
	}

	if _, err := os.Stat(req.Out); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	// The second render must come entirely from the cache.
	if got := countLines(t, countScad); got != 1 {
		t.Errorf("openscad ran %d times, want 1", got)
	}
	// Assembly is never cached.
	if got := countLines(t, countConv); got != 2 {
		t.Errorf("convert ran %d times, want 2", got)
	}
}

func TestRenderRefreshBypassesCache(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}

	dir := t.TempDir()
	countScad := filepath.Join(dir, "scad.count")
	scadBin := writeTool(t, dir, "openscad", countScad)
	convBin := writeTool(t, dir, "convert", filepath.Join(dir, "conv.count"))

	src := filepath.Join(dir, "widget.scad")
	if err := os.WriteFile(src, []byte("cube(10);"), 0644); err != nil {
		t.Fatal(err)
	}

	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer fc.Close()

	runner := shell.NewRunner(nil)
	runner.Quiet = true
	r := NewRenderer(scad.NewCompiler(scadBin, runner), runner, fc, cache.NewDefaultKeyer(), nil)
	r.ConvertBin = convBin
	r.Refresh = true

	req := Request{
		Source:    src,
		Out:       filepath.Join(dir, "widget.png"),
		WorkSize:  "1200,900",
		FinalSize: "400x300",
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := r.Render(ctx, req); err != nil {
			t.Fatalf("Render #%d: %v", i+1, err)
		}
	}
	if got := countLines(t, countScad); got != 2 {
		t.Errorf("openscad ran %d times, want 2 with Refresh", got)
	}
}

func TestRenderMontagesMultipleFrames(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}

	dir := t.TempDir()
	countScad := filepath.Join(dir, "scad.count")
	countConv := filepath.Join(dir, "conv.count")
	countMont := filepath.Join(dir, "mont.count")
	scadBin := writeTool(t, dir, "openscad", countScad)
	convBin := writeTool(t, dir, "convert", countConv)
	montBin := writeTool(t, dir, "montage", countMont)

	src := filepath.Join(dir, "widget.scad")
	if err := os.WriteFile(src, []byte("cube(10);"), 0644); err != nil {
		t.Fatal(err)
	}

	runner := shell.NewRunner(nil)
	runner.Quiet = true
	r := NewRenderer(scad.NewCompiler(scadBin, runner), runner, cache.NewNullCache(), cache.NewDefaultKeyer(), nil)
	r.ConvertBin = convBin
	r.MontageBin = montBin

	req := Request{
		Source:      src,
		Out:         filepath.Join(dir, "out", "widget.png"),
		Frames:      []map[string]any{{}, {}},
		WorkSize:    "1200,900",
		FinalSize:   "400x300",
		Colorscheme: "DeepOcean",
	}

	if err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := os.Stat(req.Out); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	// Two raytraced frames collapse into one grid, which feeds exactly
	// one final resize.
	if got := countLines(t, countScad); got != 2 {
		t.Errorf("openscad ran %d times, want 2", got)
	}
	if got := countLines(t, countMont); got != 1 {
		t.Errorf("montage ran %d times, want 1", got)
	}
	if got := countLines(t, countConv); got != 1 {
		t.Errorf("convert ran %d times, want 1", got)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Count(string(data), "\n")
}
