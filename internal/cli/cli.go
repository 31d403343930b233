// Package cli implements the printforge command-line interface.
//
// This package provides commands for building model outputs (STLs, rendered
// images, PDF documents, printables archives), inspecting the action graph,
// watching sources for changes, and serving the build directory for preview.
// The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - build: Plan and execute build targets for model directories
//   - list: Enumerate model directories and their declared outputs
//   - graph: Render the build action graph as DOT, SVG, or PNG
//   - watch: Rebuild automatically when sources change
//   - serve: Serve the build directory over HTTP for preview
//   - clean: Remove the build directory
//   - cache: Manage the render cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/printforge/printforge/pkg/build"
	"github.com/printforge/printforge/pkg/buildinfo"
	"github.com/printforge/printforge/pkg/cache"
	"github.com/printforge/printforge/pkg/config"
	"github.com/printforge/printforge/pkg/doc"
	"github.com/printforge/printforge/pkg/imaging"
	"github.com/printforge/printforge/pkg/scad"
	"github.com/printforge/printforge/pkg/shell"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "printforge"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Printforge builds parametric 3D model repositories",
		Long:         `Printforge turns declarative model descriptions into printable STL files, rendered images, PDF documents and distributable archives by orchestrating OpenSCAD, ImageMagick and pandoc.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cleanCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Workspace Setup
// =============================================================================

// workspaceRoot returns the absolute workspace directory commands operate on.
func workspaceRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Abs(wd)
}

// loadConfig reads printforge.toml from the workspace root.
func loadConfig(root string) (config.Config, error) {
	return config.Load(filepath.Join(root, config.DefaultFilename))
}

// =============================================================================
// Toolset Factory
// =============================================================================

// newToolset wires the external-tool wrappers from the effective config.
func (c *CLI) newToolset(ctx context.Context, root string, cfg config.Config, noCache, refresh bool) (build.Toolset, cache.Cache, error) {
	runner := shell.NewRunner(c.Logger)
	compiler := scad.NewCompiler(cfg.Tools.OpenSCAD, runner)

	frameCache, keyer, err := c.newCache(ctx, root, cfg, noCache)
	if err != nil {
		return build.Toolset{}, nil, err
	}

	renderer := imaging.NewRenderer(compiler, runner, frameCache, keyer, c.Logger)
	renderer.ConvertBin = cfg.Tools.Convert
	renderer.MontageBin = cfg.Tools.Montage
	renderer.Refresh = refresh

	return build.Toolset{
		Compiler:   compiler,
		Renderer:   renderer,
		Typesetter: doc.NewTypesetter(cfg.Tools.Pandoc, runner),
	}, frameCache, nil
}

// newCache selects the render cache backend from the config.
func (c *CLI) newCache(ctx context.Context, root string, cfg config.Config, noCache bool) (cache.Cache, cache.Keyer, error) {
	keyer := cache.NewDefaultKeyer()

	if noCache || cfg.Cache.Backend == "none" {
		return cache.NewNullCache(), keyer, nil
	}

	scope := cfg.Cache.Scope
	if scope == "" {
		scope = filepath.Base(root)
	}

	if cfg.Cache.Backend == "redis" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		// Shared backend: namespace keys per workspace.
		return rc, cache.NewScopedKeyer(keyer, scope), nil
	}

	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), keyer, nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, nil, err
	}
	return fc, keyer, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/printforge/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Flag Helpers
// =============================================================================

// parseModels parses a comma-separated model list into a slice.
func parseModels(s string) []string {
	if s == "" {
		return nil
	}
	var models []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			models = append(models, part)
		}
	}
	return models
}
