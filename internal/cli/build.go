package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/printforge/printforge/pkg/build"
	"github.com/printforge/printforge/pkg/shell"
	"github.com/printforge/printforge/pkg/vcs"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	since       string // rebuild only models changed since this git revision
	jobs        int    // worker count override (0 = config value)
	models      string // comma-separated model directory names
	noCache     bool   // disable the render cache
	refresh     bool   // re-render frames and rebuild fresh outputs
	dryRun      bool   // print the plan without executing
	interactive bool   // pick the model directory interactively
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build [stl|images|docs|printables|zip|all]",
		Short: "Build model outputs",
		Long: `Build plans the requested targets across all model directories and runs
the resulting actions in parallel. With no target, everything is built:
STL geometry, rendered images, PDF documents and printables archives.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"stl", "images", "docs", "printables", "zip", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return c.runBuild(cmd.Context(), target, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.since, "since", "", "only build models changed since this git revision")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "number of parallel workers (default: config or CPU count)")
	cmd.Flags().StringVarP(&opts.models, "models", "m", "", "restrict to the named model directories (comma-separated)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached frames and fresh outputs")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the plan without running it")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick the model directory interactively")

	return cmd
}

// runBuild plans and executes one build invocation.
func (c *CLI) runBuild(ctx context.Context, target string, opts *buildOpts) error {
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

	only := parseModels(opts.models)
	if opts.interactive {
		selected, err := pickModel(root)
		if err != nil {
			return err
		}
		if selected == "" {
			printInfo("No model selected")
			return nil
		}
		only = []string{selected}
	}

	tools, frameCache, err := c.newToolset(ctx, root, cfg, opts.noCache, opts.refresh)
	if err != nil {
		return err
	}
	defer frameCache.Close()

	planner := build.NewPlanner(root, cfg, tools, logger)
	planner.Force = opts.refresh
	if opts.since != "" {
		planner.Filter = vcs.NewFilter(opts.since, cfg.Tools.Git, shell.NewRunner(logger), logger)
	}

	plan, err := planner.Plan(ctx, targets, only)
	if err != nil {
		return err
	}
	if plan.Size() == 0 {
		printInfo("Nothing to build")
		return nil
	}

	if opts.dryRun {
		return printPlan(plan)
	}

	jobs := opts.jobs
	if jobs == 0 {
		jobs = cfg.Build.Jobs
	}

	p := newProgress(logger)
	if err := build.NewExecutor(jobs, logger).Run(ctx, plan); err != nil {
		return err
	}
	p.done(fmt.Sprintf("Built %d targets", plan.Size()))

	printSuccess("Build complete")
	printFile(planner.BuildDir())
	return nil
}

// printPlan lists the planned actions in execution order with their
// current staleness.
func printPlan(plan *build.Plan) error {
	order, err := plan.Order()
	if err != nil {
		return err
	}

	printInfo("Planned actions")
	models := make(map[string]bool)
	for _, id := range order {
		a := plan.Action(id)
		models[a.Model] = true

		status := styleFresh.Render("fresh")
		if a.Kind == build.KindArchive || build.Stale(a.Outputs, a.Inputs) {
			status = styleStale.Render("stale")
		}
		printDetail("%-10s %-40s %s", a.Kind, a.ID, status)
	}
	printPlanStats(len(order), len(models))
	return nil
}
