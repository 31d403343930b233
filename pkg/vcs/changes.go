// Package vcs restricts build scope to model directories touched since a
// reference revision.
//
// The filter queries git for the list of files changed between the reference
// and HEAD, keeps paths that are design files or build descriptions, and
// reduces them to the set of top-level directories containing them. The
// policy on any git failure is fail open: the build includes everything
// rather than silently skipping work, and the error is logged as a warning.
package vcs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/printforge/printforge/pkg/shell"
)

// ManifestName is the build description filename that qualifies a
// directory as changed.
const ManifestName = "model.hcl"

// DesignExt is the design-file extension that qualifies a directory
// as changed.
const DesignExt = ".scad"

// Filter decides which model directories participate in a build.
type Filter struct {
	// Since is the reference revision. Empty means include everything.
	Since string

	logger *log.Logger
	runner *shell.Runner
	gitBin string

	// loaded caches the changed-directory query; git is asked once per
	// build, not once per model directory.
	loaded  bool
	changed map[string]bool
}

// NewFilter creates a filter comparing against the given revision.
// An empty revision yields a filter that includes every directory.
func NewFilter(since, gitBin string, runner *shell.Runner, logger *log.Logger) *Filter {
	if logger == nil {
		logger = log.Default()
	}
	runner.Quiet = true
	return &Filter{
		Since:  since,
		logger: logger,
		runner: runner,
		gitBin: gitBin,
	}
}

// Include reports whether the named model directory should be built.
func (f *Filter) Include(ctx context.Context, modelDir string) bool {
	if f.Since == "" {
		return true
	}

	if !f.loaded {
		f.load(ctx)
	}
	if f.changed == nil {
		// Query failed; fail open.
		return true
	}
	if f.changed[modelDir] {
		f.logger.Infof("Including model directory %s changed since %s", modelDir, f.Since)
		return true
	}
	return false
}

// load runs the git query once and records the changed-directory set.
// On error the set stays nil, which Include treats as "include everything".
func (f *Filter) load(ctx context.Context) {
	f.loaded = true

	out, err := f.runner.Run(ctx, f.gitBin, "diff", f.Since+"...HEAD", "--name-only", "--")
	if err != nil {
		f.logger.Warnf("Ignoring git diff error: %v", err)
		return
	}
	f.changed = ChangedDirs(string(out))
}

// ChangedDirs reduces git diff --name-only output to the set of top-level
// directories containing changed design files or build descriptions.
func ChangedDirs(diffOutput string) map[string]bool {
	dirs := make(map[string]bool)
	for _, line := range strings.Split(diffOutput, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !qualifies(line) {
			continue
		}
		// First path segment; files at the repository root have none.
		if i := strings.IndexByte(line, '/'); i > 0 {
			dirs[line[:i]] = true
		}
	}
	return dirs
}

// qualifies reports whether a changed path should trigger a rebuild of
// its directory.
func qualifies(path string) bool {
	if strings.HasSuffix(path, DesignExt) {
		return true
	}
	return filepath.Base(path) == ManifestName
}
