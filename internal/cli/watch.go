package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/printforge/printforge/pkg/build"
	"github.com/printforge/printforge/pkg/config"
	"github.com/printforge/printforge/pkg/manifest"
	"github.com/printforge/printforge/pkg/scad"
)

// debounceWindow batches bursts of filesystem events (editors often write
// several times in quick succession) into one rebuild.
const debounceWindow = 500 * time.Millisecond

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild models automatically when sources change",
		Long: `Watch monitors every model directory for changes to design files,
manifests and markdown sources, and rebuilds the affected models. Stop
with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), target)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "all", "build target on change: stl, images, docs, printables or all")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, target string) error {
	logger := loggerFromContext(ctx)

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	targets, err := build.ParseTargets(target)
	if err != nil {
		return err
	}

	models, err := manifest.Discover(root)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return err
	}
	for _, model := range models {
		if err := watcher.Add(filepath.Join(root, model)); err != nil {
			logger.Warnf("Cannot watch %s: %v", model, err)
		}
	}

	printInfo("Watching %d model directories", len(models))
	printDetail("Target: %s", target)

	// Models touched since the last rebuild.
	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			model, relevant := c.classifyEvent(root, event)
			if !relevant {
				continue
			}
			logger.Debug("Source changed", "path", event.Name, "op", event.Op.String())
			pending[model] = true
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Watch error: %v", err)

		case <-fire:
			changed := make([]string, 0, len(pending))
			for model := range pending {
				changed = append(changed, model)
			}
			clear(pending)
			fire = nil

			if err := c.rebuild(ctx, root, cfg, targets, changed); err != nil {
				// Keep watching; the next save may fix the build.
				printError("Rebuild failed: %v", err)
			}
		}
	}
}

// classifyEvent maps a filesystem event to the affected model directory.
// Only writes and creations of design files, manifests and markdown
// sources are relevant.
func (c *CLI) classifyEvent(root string, event fsnotify.Event) (string, bool) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return "", false
	}

	base := filepath.Base(event.Name)
	if base != manifest.Filename && !strings.HasSuffix(base, scad.Ext) && !strings.HasSuffix(base, ".md") {
		return "", false
	}

	rel, err := filepath.Rel(root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[0], true
}

// rebuild plans and runs the changed models.
func (c *CLI) rebuild(ctx context.Context, root string, cfg config.Config, targets build.Targets, changed []string) error {
	logger := loggerFromContext(ctx)

	// A model directory may have disappeared since the event fired.
	existing, err := manifest.Discover(root)
	if err != nil {
		return err
	}
	var only []string
	for _, model := range changed {
		if slices.Contains(existing, model) {
			only = append(only, model)
		}
	}
	if len(only) == 0 {
		return nil
	}

	tools, frameCache, err := c.newToolset(ctx, root, cfg, false, false)
	if err != nil {
		return err
	}
	defer frameCache.Close()

	planner := build.NewPlanner(root, cfg, tools, logger)
	plan, err := planner.Plan(ctx, targets, only)
	if err != nil {
		return err
	}
	if plan.Size() == 0 {
		return nil
	}

	p := newProgress(logger)
	if err := build.NewExecutor(cfg.Build.Jobs, logger).Run(ctx, plan); err != nil {
		return err
	}
	p.done(fmt.Sprintf("Rebuilt %s", strings.Join(only, ", ")))
	return nil
}
