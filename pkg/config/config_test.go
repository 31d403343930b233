package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/printforge/printforge/pkg/errors"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "printforge.toml"))
	if err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}

	def := Default()
	if cfg.Tools.OpenSCAD != def.Tools.OpenSCAD {
		t.Errorf("missing file should yield defaults, got openscad=%q", cfg.Tools.OpenSCAD)
	}
	if cfg.Render.Size != "1200x900" {
		t.Errorf("default render size = %q, want 1200x900", cfg.Render.Size)
	}
	if cfg.Render.Targets["images/readme"] != "400x300" {
		t.Errorf("default readme target = %q, want 400x300", cfg.Render.Targets["images/readme"])
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("default cache backend = %q, want file", cfg.Cache.Backend)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[tools]
openscad = "/opt/openscad/bin/openscad"

[render]
delay = 50

[build]
dir = "out"
jobs = 2

[cache]
backend = "redis"
redis_addr = "localhost:6379"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tools.OpenSCAD != "/opt/openscad/bin/openscad" {
		t.Errorf("openscad = %q", cfg.Tools.OpenSCAD)
	}
	// Unset fields keep their defaults
	if cfg.Tools.Pandoc != "pandoc" {
		t.Errorf("pandoc should keep default, got %q", cfg.Tools.Pandoc)
	}
	if cfg.Render.Delay != 50 {
		t.Errorf("delay = %d, want 50", cfg.Render.Delay)
	}
	if cfg.Build.Dir != "out" || cfg.Build.Jobs != 2 {
		t.Errorf("build = %+v", cfg.Build)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad size", "[render]\nsize = \"very big\"\n"},
		{"bad target size", "[render.targets]\n\"images/publish\" = \"1200\"\n"},
		{"bad backend", "[cache]\nbackend = \"memcached\"\n"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n"},
		{"negative jobs", "[build]\njobs = -1\n"},
		{"syntax error", "[tools\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.toml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("error code = %q, want INVALID_CONFIG: %v", errors.GetCode(err), err)
			}
		})
	}
}

func TestRenderSizeComma(t *testing.T) {
	cfg := Default()
	if got := cfg.RenderSizeComma(); got != "1200,900" {
		t.Errorf("RenderSizeComma = %q, want 1200,900", got)
	}
}

func TestTargetSize(t *testing.T) {
	cfg := Default()

	if got := cfg.TargetSize("images/readme/widget.png"); got != "400x300" {
		t.Errorf("readme target size = %q, want 400x300", got)
	}
	if got := cfg.TargetSize("images/publish/widget.png"); got != "1200x900" {
		t.Errorf("publish target size = %q, want 1200x900", got)
	}
	// Unmatched paths fall back to the working size
	if got := cfg.TargetSize("misc/widget.png"); got != cfg.Render.Size {
		t.Errorf("fallback target size = %q, want %q", got, cfg.Render.Size)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFilename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
