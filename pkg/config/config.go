// Package config loads workspace configuration from printforge.toml.
//
// Every field is optional: a missing file or an empty table yields the
// default configuration, so a model repository needs no config file at all
// until it wants to override a tool path or point at a shared cache.
//
// # Example
//
//	[tools]
//	openscad = "/usr/local/bin/openscad"
//
//	[render]
//	size = "1200x900"
//	delay = 75
//
//	[render.targets]
//	"images/readme" = "400x300"
//	"images/publish" = "1200x900"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "cache.internal:6379"
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/printforge/printforge/pkg/errors"
)

// DefaultFilename is the config file looked up at the workspace root.
const DefaultFilename = "printforge.toml"

// RenderSize is the fixed working resolution for frame rendering.
const RenderSize = "1200x900"

// Config is the root configuration for a workspace.
type Config struct {
	Tools  Tools       `toml:"tools"`
	Render Render      `toml:"render"`
	Build  Build       `toml:"build"`
	Cache  CacheConfig `toml:"cache"`
}

// Tools holds paths to the external binaries printforge orchestrates.
// Bare names are resolved via PATH at invocation time.
type Tools struct {
	OpenSCAD string `toml:"openscad"`
	Convert  string `toml:"convert"`
	Montage  string `toml:"montage"`
	Pandoc   string `toml:"pandoc"`
	Git      string `toml:"git"`
}

// Render holds image rendering settings.
type Render struct {
	// Size is the working resolution frames are rendered at, "WxH".
	Size string `toml:"size"`

	// Targets maps an image output path prefix to its final resolution.
	Targets map[string]string `toml:"targets"`

	// Delay is the per-frame delay for animated outputs, in 1/100ths of a
	// second (ImageMagick convention).
	Delay int `toml:"delay"`

	// Colorscheme is the OpenSCAD color scheme used for renders.
	Colorscheme string `toml:"colorscheme"`
}

// Build holds planner and executor settings.
type Build struct {
	// Dir is the build output directory, relative to the workspace root.
	Dir string `toml:"dir"`

	// StaticDir is the shared asset directory referenced by documents.
	StaticDir string `toml:"static_dir"`

	// Jobs is the worker count for the parallel executor. Zero means
	// one worker per CPU.
	Jobs int `toml:"jobs"`
}

// CacheConfig selects and configures the render cache backend.
type CacheConfig struct {
	// Backend is one of "file", "redis" or "none". Default "file".
	Backend string `toml:"backend"`

	// Scope namespaces keys on shared backends. Default: workspace dir name.
	Scope string `toml:"scope"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Tools: Tools{
			OpenSCAD: "openscad",
			Convert:  "convert",
			Montage:  "montage",
			Pandoc:   "pandoc",
			Git:      "git",
		},
		Render: Render{
			Size: RenderSize,
			Targets: map[string]string{
				"images/readme":  "400x300",
				"images/publish": RenderSize,
			},
			Delay:       75,
			Colorscheme: "DeepOcean",
		},
		Build: Build{
			Dir:       "build",
			StaticDir: "_static",
			Jobs:      runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Backend: "file",
		},
	}
}

// Load reads the config file at path, merging it over the defaults.
// A missing file is not an error; it simply yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading %s", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing %s", path)
	}
	return cfg, cfg.validate()
}

// validate rejects values that would only fail later in confusing ways.
func (c *Config) validate() error {
	if err := validateSize(c.Render.Size); err != nil {
		return err
	}
	for prefix, size := range c.Render.Targets {
		if err := validateSize(size); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "render target %q", prefix)
		}
	}
	switch c.Cache.Backend {
	case "", "file", "redis", "none":
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown cache backend %q (must be file, redis or none)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache backend is redis but redis_addr is empty")
	}
	if c.Build.Jobs < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "jobs must not be negative")
	}
	return nil
}

// validateSize checks a "WxH" resolution string.
func validateSize(size string) error {
	w, h, ok := strings.Cut(size, "x")
	if !ok || w == "" || h == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid size %q (want WxH)", size)
	}
	for _, part := range []string{w, h} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return errors.New(errors.ErrCodeInvalidConfig, "invalid size %q (want WxH)", size)
			}
		}
	}
	return nil
}

// RenderSizeComma returns the working render size with a comma separator,
// the form OpenSCAD's --imgsize flag expects.
func (c *Config) RenderSizeComma() string {
	return strings.ReplaceAll(c.Render.Size, "x", ",")
}

// TargetSize returns the final resolution for an image output path, matched
// by path prefix. Falls back to the working render size.
func (c *Config) TargetSize(rel string) string {
	for prefix, size := range c.Render.Targets {
		if strings.HasPrefix(rel, prefix) {
			return size
		}
	}
	return c.Render.Size
}

// String summarizes the effective tool configuration for debug logging.
func (t Tools) String() string {
	return fmt.Sprintf("openscad=%s convert=%s montage=%s pandoc=%s git=%s",
		t.OpenSCAD, t.Convert, t.Montage, t.Pandoc, t.Git)
}
