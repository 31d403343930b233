package build

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/printforge/printforge/pkg/archive"
	"github.com/printforge/printforge/pkg/config"
	"github.com/printforge/printforge/pkg/doc"
	"github.com/printforge/printforge/pkg/errors"
	"github.com/printforge/printforge/pkg/imaging"
	"github.com/printforge/printforge/pkg/manifest"
	"github.com/printforge/printforge/pkg/scad"
	"github.com/printforge/printforge/pkg/vcs"
)

// imageTargets are the per-output variants every image action produces,
// resized according to the render target map.
var imageTargets = []string{"images/readme", "images/publish"}

// Targets selects which output kinds a build produces.
type Targets struct {
	STL       bool
	Images    bool
	Documents bool
	Archive   bool
}

// ParseTargets resolves a build target name. Archives imply everything
// they package. An empty name means all.
func ParseTargets(name string) (Targets, error) {
	switch name {
	case "", "all", "printables", "zip":
		// Archives package every other output, so they imply the lot.
		return Targets{STL: true, Images: true, Documents: true, Archive: true}, nil
	case "stl":
		return Targets{STL: true}, nil
	case "images":
		return Targets{Images: true}, nil
	case "docs":
		// Documents embed publish images.
		return Targets{Images: true, Documents: true}, nil
	default:
		return Targets{}, errors.New(errors.ErrCodeInvalidTarget,
			"unknown target %q (want stl, images, docs, printables, zip or all)", name)
	}
}

// Toolset bundles the external-tool wrappers the planner binds actions to.
type Toolset struct {
	Compiler   *scad.Compiler
	Renderer   *imaging.Renderer
	Typesetter *doc.Typesetter
}

// Planner turns manifests into an executable plan.
type Planner struct {
	root   string
	cfg    config.Config
	tools  Toolset
	logger *log.Logger

	// Filter optionally restricts planning to models changed since a
	// revision. Nil means no filtering.
	Filter *vcs.Filter

	// Force schedules actions even when their outputs are fresh.
	Force bool
}

// NewPlanner creates a planner rooted at the workspace directory.
func NewPlanner(root string, cfg config.Config, tools Toolset, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.Default()
	}
	return &Planner{root: root, cfg: cfg, tools: tools, logger: logger}
}

// BuildDir returns the absolute build output directory.
func (p *Planner) BuildDir() string {
	return filepath.Join(p.root, p.cfg.Build.Dir)
}

// Plan discovers model directories and emits the action graph for the
// requested targets. only restricts planning to the named models; naming
// a model that does not exist is an error.
func (p *Planner) Plan(ctx context.Context, targets Targets, only []string) (*Plan, error) {
	models, err := manifest.Discover(p.root)
	if err != nil {
		return nil, err
	}

	if len(only) > 0 {
		for _, name := range only {
			if !slices.Contains(models, name) {
				return nil, errors.New(errors.ErrCodeModelNotFound, "no model directory %q", name)
			}
		}
		models = slices.Clone(only)
		slices.Sort(models)
	}

	plan := NewPlan()
	for _, model := range models {
		if p.Filter != nil && !p.Filter.Include(ctx, model) {
			continue
		}
		m, err := manifest.Load(filepath.Join(p.root, model))
		if err != nil {
			return nil, err
		}
		if err := p.planModel(plan, m, targets); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// planModel emits the actions for one model and wires their edges.
func (p *Planner) planModel(plan *Plan, m *manifest.Manifest, targets Targets) error {
	modelDir := filepath.Join(p.root, m.Name)
	outDir := filepath.Join(p.BuildDir(), m.Name)

	var produced []string // IDs feeding the archive

	if targets.STL {
		for _, s := range m.STLs {
			id, err := p.planSTL(plan, m.Name, modelDir, outDir, s)
			if err != nil {
				return err
			}
			produced = append(produced, id)
		}
	}

	imageIDs := make(map[string]string) // manifest output name -> action ID
	if targets.Images {
		for _, img := range m.Images {
			id, err := p.planImage(plan, m.Name, modelDir, outDir, img)
			if err != nil {
				return err
			}
			imageIDs[img.Out] = id
			produced = append(produced, id)
		}
	}

	if targets.Documents {
		for _, d := range m.Documents {
			id, err := p.planDocument(plan, m.Name, modelDir, outDir, d, imageIDs)
			if err != nil {
				return err
			}
			produced = append(produced, id)
		}
	}

	if targets.Archive {
		if err := p.planArchive(plan, m, modelDir, outDir, produced); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) planSTL(plan *Plan, model, modelDir, outDir string, s manifest.STL) (string, error) {
	src := filepath.Join(modelDir, s.Source)
	out := filepath.Join(outDir, s.Out)

	inputs := []string{src}
	for _, dep := range s.Deps {
		inputs = append(inputs, filepath.Join(modelDir, dep))
	}
	// Dependencies recorded by the previous compile.
	inputs = append(inputs, ParseDepsFile(scad.DepsFile(out))...)

	a := &Action{
		ID:      path.Join(model, s.Out),
		Kind:    KindSTL,
		Model:   model,
		Outputs: []string{out},
		Inputs:  inputs,
		Run: func(ctx context.Context) error {
			if !p.Force && !Stale([]string{out}, inputs) {
				p.logger.Debug("Up to date", "out", out)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return err
			}
			return p.tools.Compiler.CompileSTL(ctx, src, out, scad.CompileOpts{Vals: s.Vals})
		},
	}
	return a.ID, plan.Add(a)
}

func (p *Planner) planImage(plan *Plan, model, modelDir, outDir string, img manifest.Image) (string, error) {
	src := filepath.Join(modelDir, img.Source)

	delay := img.Delay
	if delay == 0 {
		delay = p.cfg.Render.Delay
	}

	var outputs []string
	for _, target := range imageTargets {
		outputs = append(outputs, filepath.Join(outDir, filepath.FromSlash(target), img.Out))
	}
	inputs := []string{src}

	a := &Action{
		ID:      path.Join(model, "images", img.Out),
		Kind:    KindImage,
		Model:   model,
		Outputs: outputs,
		Inputs:  inputs,
		Run: func(ctx context.Context) error {
			if !p.Force && !Stale(outputs, inputs) {
				p.logger.Debug("Up to date", "out", img.Out)
				return nil
			}
			for i, target := range imageTargets {
				req := imaging.Request{
					Source:      src,
					Out:         outputs[i],
					Frames:      img.Frames,
					Camera:      img.Camera,
					View:        img.View,
					WorkSize:    p.cfg.RenderSizeComma(),
					FinalSize:   p.cfg.TargetSize(target + "/" + img.Out),
					Colorscheme: p.cfg.Render.Colorscheme,
					Delay:       delay,
				}
				if err := p.tools.Renderer.Render(ctx, req); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return a.ID, plan.Add(a)
}

func (p *Planner) planDocument(plan *Plan, model, modelDir, outDir string, d manifest.Document, imageIDs map[string]string) (string, error) {
	src := filepath.Join(modelDir, d.Source)
	out := filepath.Join(outDir, d.Out)
	staticDir := filepath.Join(p.root, p.cfg.Build.StaticDir)
	imagesDir := filepath.Join(outDir, "images", "publish")

	inputs := []string{src}
	for _, img := range d.Images {
		inputs = append(inputs, filepath.Join(imagesDir, img))
	}

	a := &Action{
		ID:      path.Join(model, d.Out),
		Kind:    KindDocument,
		Model:   model,
		Outputs: []string{out},
		Inputs:  inputs,
		Run: func(ctx context.Context) error {
			if !p.Force && !Stale([]string{out}, inputs) {
				p.logger.Debug("Up to date", "out", out)
				return nil
			}
			return p.tools.Typesetter.Build(ctx, src, out, staticDir, imagesDir)
		},
	}
	if err := plan.Add(a); err != nil {
		return "", err
	}

	// Typesetting embeds the publish renders, so they must exist first.
	for _, img := range d.Images {
		if id, ok := imageIDs[img]; ok {
			if err := plan.Connect(id, a.ID); err != nil {
				return "", err
			}
		}
	}
	return a.ID, nil
}

func (p *Planner) planArchive(plan *Plan, m *manifest.Manifest, modelDir, outDir string, produced []string) error {
	out := filepath.Join(p.BuildDir(), archive.Name(m.Name))

	overrides := make(map[string]string, len(m.Assets))
	for _, asset := range m.Assets {
		overrides[filepath.ToSlash(asset.Dir)] = asset.Category
	}

	a := &Action{
		ID:      archive.Name(m.Name),
		Kind:    KindArchive,
		Model:   m.Name,
		Outputs: []string{out},
		Run: func(ctx context.Context) error {
			files, err := collectArchiveFiles(modelDir, outDir, m.Assets)
			if err != nil {
				return err
			}
			libs, err := archive.LibraryFiles(modelDir)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := archive.NewPackager(overrides).Write(f, files, libs); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	if err := plan.Add(a); err != nil {
		return err
	}
	// Archives always re-pack; everything the model produced goes in.
	for _, id := range produced {
		if err := plan.Connect(id, a.ID); err != nil {
			return err
		}
	}
	return nil
}

// collectArchiveFiles gathers everything one archive packages: the
// model's build outputs, its top-level sources and manifest, and any
// declared asset directories.
func collectArchiveFiles(modelDir, outDir string, assets []manifest.Asset) ([]archive.File, error) {
	var files []archive.File

	// Build outputs, minus compiler bookkeeping.
	err := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(p, ".deps") {
			return err
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			return err
		}
		files = append(files, archive.File{Path: p, Rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// Top-level sources and the manifest itself.
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), scad.Ext) || e.Name() == manifest.Filename {
			files = append(files, archive.File{
				Path: filepath.Join(modelDir, e.Name()),
				Rel:  e.Name(),
			})
		}
	}

	// Declared asset directories, recursively.
	for _, asset := range assets {
		dir := filepath.Join(modelDir, asset.Dir)
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(modelDir, p)
			if err != nil {
				return err
			}
			files = append(files, archive.File{Path: p, Rel: filepath.ToSlash(rel)})
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return files, nil
}
