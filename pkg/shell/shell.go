// Package shell runs the external tools printforge orchestrates.
//
// Every unit of real work (geometry compilation, rasterization, typesetting,
// version-control queries) happens in a subprocess; this package is the one
// place those subprocesses are spawned. Commands are echoed to the logger the
// way a shell would ("+ openscad -o ..."), output is captured, and a non-zero
// exit becomes a coded SUBPROCESS_FAILED error carrying the tool's own
// diagnostics. There are no retries and no timeouts: a failing tool fails
// its build branch immediately.
package shell

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/printforge/printforge/pkg/errors"
)

// Runner invokes external commands.
type Runner struct {
	logger *log.Logger

	// Quiet suppresses the "+ cmd" echo. Used for internal queries
	// (e.g. git diff) whose invocation is not interesting to the user.
	Quiet bool
}

// NewRunner creates a runner that echoes commands to the given logger.
// A nil logger falls back to log.Default().
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{logger: logger}
}

// Run executes the command and waits for it to finish.
// Combined output is returned on both success and failure; on a non-zero
// exit it is also folded into the returned error.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if !r.Quiet {
		r.logger.Info("+ " + name + " " + strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, nil
	}

	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return out, errors.Wrap(errors.ErrCodeSubprocess, &errors.ExitError{
			Tool:     name,
			ExitCode: exitErr.ExitCode(),
			Output:   strings.TrimSpace(string(out)),
		}, "running %s", name)
	}

	// The binary was missing or not executable.
	return out, errors.Wrap(errors.ErrCodeToolNotFound, err, "running %s", name)
}
