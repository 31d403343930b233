package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// node states during execution.
const (
	statePending int32 = iota
	stateRunning
	stateDone
	stateFailed
)

// errSkipped marks actions that never ran because something upstream
// failed. It is a symptom, not a root cause.
var errSkipped = stderrors.New("skipped due to upstream failure")

// nodeRun is the mutable execution state of one action.
type nodeRun struct {
	action   *Action
	depCount atomic.Int32
	state    atomic.Int32
	err      error
	skipOnce sync.Once
}

// Executor runs a plan with a fixed-size worker pool.
type Executor struct {
	jobs   int
	logger *log.Logger
}

// NewExecutor creates an executor with the given worker count.
// A non-positive count falls back to a single worker.
func NewExecutor(jobs int, logger *log.Logger) *Executor {
	if jobs < 1 {
		jobs = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{jobs: jobs, logger: logger}
}

// Run executes every action in the plan, respecting dependency order.
// On failure the remaining graph is cancelled, dependents are skipped,
// and the first real error is returned as the root cause.
func (e *Executor) Run(ctx context.Context, plan *Plan) error {
	if err := plan.Graph().Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()[:8]
	logger := e.logger.With("run", runID)
	logger.Debug("Starting executor", "actions", plan.Size(), "workers", e.jobs)

	runs := make(map[string]*nodeRun, plan.Size())
	for id, a := range plan.actions {
		nr := &nodeRun{action: a}
		nr.depCount.Store(int32(plan.graph.InDegree(id)))
		runs[id] = nr
	}

	ready := make(chan *nodeRun, plan.Size())
	for _, id := range plan.graph.Roots() {
		ready <- runs[id]
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(plan.Size())
	for i := 0; i < e.jobs; i++ {
		go e.worker(runCtx, logger, plan, runs, ready, cancel, &wg)
	}
	wg.Wait()
	close(ready)

	var failed []string
	var rootCause error
	for _, id := range plan.graph.Nodes() {
		nr := runs[id.ID]
		if nr.state.Load() != stateFailed {
			continue
		}
		if stderrors.Is(nr.err, errSkipped) || stderrors.Is(nr.err, context.Canceled) {
			continue
		}
		failed = append(failed, id.ID)
		if rootCause == nil {
			rootCause = nr.err
		}
	}

	if rootCause != nil {
		return fmt.Errorf("build failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// worker pulls ready actions and runs them until the channel drains.
func (e *Executor) worker(ctx context.Context, logger *log.Logger, plan *Plan, runs map[string]*nodeRun, ready chan *nodeRun, cancel context.CancelFunc, wg *sync.WaitGroup) {
	for nr := range ready {
		if ctx.Err() != nil {
			nr.skipOnce.Do(func() {
				nr.state.Store(stateFailed)
				nr.err = ctx.Err()
				// Dependents still hold positive dep counts and will
				// never become ready; drain them or Run waits forever.
				e.skipDependents(logger, plan, runs, nr.action.ID, wg)
				wg.Done()
			})
			continue
		}

		logger.Debug("Running action", "id", nr.action.ID, "kind", nr.action.Kind)
		nr.state.Store(stateRunning)

		if err := nr.action.Run(ctx); err != nil {
			logger.Error("Action failed", "id", nr.action.ID, "err", err)
			nr.state.Store(stateFailed)
			nr.err = err
			cancel()
			e.skipDependents(logger, plan, runs, nr.action.ID, wg)
			wg.Done()
			continue
		}

		nr.state.Store(stateDone)
		for _, consumer := range plan.graph.Consumers(nr.action.ID) {
			dep := runs[consumer]
			if dep.depCount.Add(-1) == 0 {
				ready <- dep
			}
		}
		wg.Done()
	}
}

// skipDependents recursively marks everything downstream as failed so the
// wait group drains without running them.
func (e *Executor) skipDependents(logger *log.Logger, plan *Plan, runs map[string]*nodeRun, id string, wg *sync.WaitGroup) {
	for _, consumer := range plan.graph.Consumers(id) {
		dep := runs[consumer]
		dep.skipOnce.Do(func() {
			logger.Warn("Skipping action", "id", consumer, "failed_dependency", id)
			dep.state.Store(stateFailed)
			dep.err = fmt.Errorf("%w of %s", errSkipped, id)
			wg.Done()
			e.skipDependents(logger, plan, runs, consumer, wg)
		})
	}
}
