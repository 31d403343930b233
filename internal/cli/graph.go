package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/printforge/printforge/pkg/build"
	"github.com/printforge/printforge/pkg/dag"
	"github.com/printforge/printforge/pkg/errors"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	format   string // output format: dot, svg or png
	output   string // output file ("" = stdout for dot, derived otherwise)
	detailed bool   // include action metadata in node labels
}

// graphCommand creates the graph command for visualizing the action DAG.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph [stl|images|docs|printables|zip|all]",
		Short: "Render the build action graph",
		Long: `Graph plans the requested targets and renders the resulting action
dependency graph. DOT output goes to stdout by default; SVG and PNG are
written next to the workspace as build-graph.<format> unless -o is given.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"stl", "images", "docs", "printables", "zip", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return c.runGraph(cmd, target, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "output format: dot, svg or png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include action metadata in node labels")

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, target string, opts *graphOpts) error {
	ctx := cmd.Context()
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

	// Planning needs no tools; action closures are never run here.
	planner := build.NewPlanner(root, cfg, build.Toolset{}, logger)
	plan, err := planner.Plan(ctx, targets, nil)
	if err != nil {
		return err
	}
	logger.Debugf("Planned graph: %d actions, %d edges", plan.Size(), plan.Graph().EdgeCount())

	dot := dag.ToDOT(plan.Graph(), dag.DOTOptions{Detailed: opts.detailed})

	switch strings.ToLower(opts.format) {
	case "dot":
		if opts.output == "" {
			fmt.Println(dot)
			return nil
		}
		if err := os.WriteFile(opts.output, []byte(dot), 0644); err != nil {
			return err
		}
		printFile(opts.output)
		return nil

	case "svg", "png":
		out := opts.output
		if out == "" {
			out = "build-graph." + strings.ToLower(opts.format)
		}

		spinner := newSpinnerWithContext(ctx, "Rendering "+strings.ToUpper(opts.format))
		spinner.Start()

		var data []byte
		if strings.EqualFold(opts.format, "svg") {
			data, err = dag.RenderSVG(ctx, dot)
		} else {
			data, err = dag.RenderPNG(ctx, dot)
		}
		if err != nil {
			if spinner.Cancelled() {
				spinner.Stop()
				return err
			}
			spinner.StopWithError(fmt.Sprintf("Rendering failed: %v", err))
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			spinner.StopWithError(err.Error())
			return err
		}
		spinner.StopWithSuccess("Rendered action graph")
		printFile(out)
		return nil

	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want dot, svg or png)", opts.format)
	}
}
