package scad

import (
	"context"

	"github.com/printforge/printforge/pkg/shell"
)

// Ext is the OpenSCAD source file extension.
const Ext = ".scad"

// Compiler invokes the OpenSCAD binary.
type Compiler struct {
	// Bin is the OpenSCAD binary (path or bare name resolved via PATH).
	Bin string

	runner *shell.Runner
}

// NewCompiler creates a compiler that spawns processes through runner.
func NewCompiler(bin string, runner *shell.Runner) *Compiler {
	return &Compiler{Bin: bin, runner: runner}
}

// CompileOpts configures an STL compilation.
type CompileOpts struct {
	Vals map[string]any // Customizer values passed as -D flags
}

// CompileSTL compiles src into the STL file out. A make-style dependency
// file is written to DepsFile(out) listing every .scad file the compile
// actually read; the planner feeds it back into staleness checks.
func (c *Compiler) CompileSTL(ctx context.Context, src, out string, opts CompileOpts) error {
	args := []string{"-o", out, "-d", DepsFile(out), src}
	args = append(args, DefineArgs(opts.Vals, QuoteSubprocess)...)
	_, err := c.runner.Run(ctx, c.Bin, args...)
	return err
}

// DepsFile returns the dependency-file path for an output.
func DepsFile(out string) string {
	return out + ".deps"
}

// RenderOpts configures a single frame render.
type RenderOpts struct {
	Vals        map[string]any // Customizer values for this frame
	Size        string         // Image size as "W,H" (--imgsize form)
	Colorscheme string         // OpenSCAD color scheme
	Camera      string         // Optional --camera override
	View        string         // Optional --view options
}

// RenderPNG renders src to the PNG file out at the given working size.
func (c *Compiler) RenderPNG(ctx context.Context, src, out string, opts RenderOpts) error {
	_, err := c.runner.Run(ctx, c.Bin, RenderArgs(src, out, opts)...)
	return err
}

// RenderArgs returns the argv RenderPNG executes, without running it.
// The renderer hashes parts of this to build cache keys.
func RenderArgs(src, out string, opts RenderOpts) []string {
	args := []string{
		src,
		"--colorscheme=" + opts.Colorscheme,
		"--imgsize=" + opts.Size,
		"-o", out,
	}
	args = append(args, DefineArgs(opts.Vals, QuoteSubprocess)...)
	if opts.Camera != "" {
		args = append(args, "--camera="+opts.Camera)
	}
	if opts.View != "" {
		args = append(args, "--view="+opts.View)
	}
	return args
}
