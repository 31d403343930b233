// Package build plans and executes model builds.
//
// The planner scans the workspace for model directories, loads their
// manifests and emits one action per declared output. Actions form a DAG
// keyed by build-relative output path; the executor walks the graph with
// a worker pool, running independent actions in parallel and skipping
// everything downstream of a failure.
package build

import (
	"context"

	"github.com/printforge/printforge/pkg/dag"
)

// Kind labels what an action produces.
type Kind string

const (
	KindSTL      Kind = "stl"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindArchive  Kind = "archive"
)

// Action is one schedulable unit of build work.
type Action struct {
	// ID is the build-relative path of the primary output, unique across
	// the plan (e.g. "widget/widget.stl", "printables-widget.zip").
	ID string

	Kind  Kind
	Model string // Model directory name

	// Outputs and Inputs are absolute paths used for staleness checks.
	Outputs []string
	Inputs  []string

	// Run performs the work. It must be safe to call from any worker
	// goroutine; actions share no mutable state.
	Run func(ctx context.Context) error
}

// Plan is an executable set of actions and their dependency graph.
type Plan struct {
	graph   *dag.DAG
	actions map[string]*Action
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{
		graph:   dag.New(),
		actions: make(map[string]*Action),
	}
}

// Add inserts an action as a graph node labeled with its kind and model.
func (p *Plan) Add(a *Action) error {
	err := p.graph.AddNode(dag.Node{
		ID: a.ID,
		Meta: dag.Metadata{
			"kind":  string(a.Kind),
			"model": a.Model,
		},
	})
	if err != nil {
		return err
	}
	p.actions[a.ID] = a
	return nil
}

// Connect records that the action `to` consumes an output of `from`.
func (p *Plan) Connect(from, to string) error {
	return p.graph.AddEdge(from, to)
}

// Action returns the action with the given ID, or nil.
func (p *Plan) Action(id string) *Action {
	return p.actions[id]
}

// Graph exposes the underlying action graph (for rendering and tests).
func (p *Plan) Graph() *dag.DAG {
	return p.graph
}

// Order returns action IDs in dependency order.
func (p *Plan) Order() ([]string, error) {
	return p.graph.TopoSort()
}

// Size returns the number of planned actions.
func (p *Plan) Size() int {
	return len(p.actions)
}
