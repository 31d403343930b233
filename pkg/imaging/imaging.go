// Package imaging renders model images from OpenSCAD sources.
//
// Every image starts as one or more raytraced frames at the fixed working
// resolution, then gets assembled into its final form with ImageMagick:
// animated outputs become gifs, multi-frame static outputs become a grid
// montage, single frames are simply resized. Raytracing dominates the cost
// of a build, so rendered frames are cached by content hash; assembly is
// cheap and always runs.
package imaging

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/printforge/printforge/pkg/cache"
	"github.com/printforge/printforge/pkg/scad"
	"github.com/printforge/printforge/pkg/shell"
)

// FramePattern names rendered frames so ImageMagick globs them in order.
const FramePattern = "image_%05d.png"

// Renderer produces final image outputs from model sources.
type Renderer struct {
	compiler *scad.Compiler
	runner   *shell.Runner
	cache    cache.Cache
	keyer    cache.Keyer
	logger   *log.Logger

	// ConvertBin and MontageBin are the ImageMagick binaries.
	ConvertBin string
	MontageBin string

	// Refresh skips cache reads so every frame is re-rendered. Fresh
	// frames are still written back to the cache.
	Refresh bool
}

// NewRenderer wires a renderer. The cache may be a NullCache to disable
// frame caching entirely.
func NewRenderer(compiler *scad.Compiler, runner *shell.Runner, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{
		compiler:   compiler,
		runner:     runner,
		cache:      c,
		keyer:      keyer,
		logger:     logger,
		ConvertBin: "convert",
		MontageBin: "montage",
	}
}

// Request describes one image output to produce.
type Request struct {
	Source string           // OpenSCAD entry file
	Out    string           // Final output path (.png or .gif)
	Frames []map[string]any // Customizer values, one set per frame
	Camera string           // Optional camera override
	View   string           // Optional view options

	WorkSize    string // Raytrace resolution, "W,H"
	FinalSize   string // Output resolution, "WxH"
	Colorscheme string
	Delay       int // Per-frame delay for animated outputs, 1/100 s
}

// Animated reports whether the request produces an animated output.
func (r Request) Animated() bool {
	return strings.EqualFold(filepath.Ext(r.Out), ".gif")
}

// Render produces the final image for req. Frames are rendered (or pulled
// from the cache) into a temp dir, then assembled into req.Out.
func (r *Renderer) Render(ctx context.Context, req Request) error {
	if len(req.Frames) == 0 {
		req.Frames = []map[string]any{{}}
	}

	tmp, err := os.MkdirTemp("", "printforge-frames-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	frames, err := r.renderFrames(ctx, req, tmp)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(req.Out), 0755); err != nil {
		return err
	}

	switch {
	case req.Animated():
		_, err = r.runner.Run(ctx, r.ConvertBin, gifArgs(frames, req.FinalSize, req.Delay, req.Out)...)
	case len(frames) > 1:
		err = r.assembleMontage(ctx, frames, req, tmp)
	default:
		_, err = r.runner.Run(ctx, r.ConvertBin, resizeArgs(frames[0], req.FinalSize, req.Out)...)
	}
	return err
}

// renderFrames produces the working-size frame files and returns their
// paths in frame order.
func (r *Renderer) renderFrames(ctx context.Context, req Request, tmp string) ([]string, error) {
	src, err := os.ReadFile(req.Source)
	if err != nil {
		return nil, err
	}
	srcHash := cache.Hash(src)

	frames := make([]string, 0, len(req.Frames))
	for i, vals := range req.Frames {
		frame := filepath.Join(tmp, fmt.Sprintf(FramePattern, i))
		frames = append(frames, frame)

		opts := scad.RenderOpts{
			Vals:        vals,
			Size:        req.WorkSize,
			Colorscheme: req.Colorscheme,
			Camera:      req.Camera,
			View:        req.View,
		}
		key := r.keyer.FrameKey(srcHash, cache.FrameKeyOpts{
			Defines: strings.Join(scad.DefineArgs(vals, scad.QuoteSubprocess), " "),
			Camera:  req.Camera,
			View:    req.View,
			Size:    req.WorkSize,
		})

		if !r.Refresh {
			if data, hit, err := r.cache.Get(ctx, key); err == nil && hit {
				r.logger.Debug("Frame cache hit", "out", req.Out, "frame", i)
				if err := os.WriteFile(frame, data, 0644); err != nil {
					return nil, err
				}
				continue
			}
		}

		if err := r.compiler.RenderPNG(ctx, req.Source, frame, opts); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(frame)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, data, cache.TTLFrame); err != nil {
			// A broken cache should not fail the build.
			r.logger.Warn("Ignoring frame cache write error", "err", err)
		}
	}
	return frames, nil
}

// assembleMontage tiles multiple static frames into a grid, then resizes
// the grid to the final resolution.
func (r *Renderer) assembleMontage(ctx context.Context, frames []string, req Request, tmp string) error {
	grid := filepath.Join(tmp, "montage.png")
	if _, err := r.runner.Run(ctx, r.MontageBin, montageArgs(frames, grid)...); err != nil {
		return err
	}
	_, err := r.runner.Run(ctx, r.ConvertBin, resizeArgs(grid, req.FinalSize, req.Out)...)
	return err
}

// gifArgs builds the convert argv assembling frames into an animated gif.
func gifArgs(frames []string, size string, delay int, out string) []string {
	args := []string{"-resize", size, "-loop", "0", "-delay", strconv.Itoa(delay)}
	args = append(args, frames...)
	return append(args, out)
}

// montageArgs builds the montage argv tiling frames into a two-column grid.
func montageArgs(frames []string, out string) []string {
	rows := int(math.Ceil(float64(len(frames)) / 2))
	args := []string{"-tile", "x" + strconv.Itoa(rows), "-geometry", "+0+0"}
	args = append(args, frames...)
	return append(args, out)
}

// resizeArgs builds the convert argv resizing a single image.
func resizeArgs(in, size, out string) []string {
	return []string{"-resize", size, in, out}
}
