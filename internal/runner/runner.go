package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark-data/tidemark/internal/executor"
	"github.com/tidemark-data/tidemark/internal/governance"
	"github.com/tidemark-data/tidemark/internal/lineage"
)

// emitTimeout bounds lineage emission so a slow sink cannot stall a step,
// and detaches emission from run cancellation so FAIL events still go out.
const emitTimeout = 15 * time.Second

// Run is the execution record of one plan invocation. It is owned by a
// single Runner.Run call; only read-only configuration is shared across
// concurrent runs.
type Run struct {
	ID         string
	Name       string
	Namespace  string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []*StepResult
}

// Step returns the result for a step id, or nil.
func (r *Run) Step(id string) *StepResult {
	for _, sr := range r.Steps {
		if sr.Step.ID == id {
			return sr
		}
	}
	return nil
}

// Failed reports whether the run needs a non-zero exit status.
func (r *Run) Failed() bool {
	return r.Status == RunStatusFailed || r.Status == RunStatusPartiallyFailed
}

// Config holds runner dependencies.
type Config struct {
	// Executor runs external commands (required).
	Executor *executor.Executor
	// Resolver resolves dataset governance. Nil disables lineage together
	// with Emitter.
	Resolver *governance.Resolver
	// Emitter delivers lineage events. Nil disables emission entirely.
	Emitter lineage.Emitter
	// Namespace is the lineage namespace for all events of this runner.
	Namespace string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Runner executes plans. Steps run sequentially; lineage emission is
// fire-and-forget with respect to step progression.
type Runner struct {
	exec      *executor.Executor
	resolver  *governance.Resolver
	emitter   lineage.Emitter
	namespace string
	logger    *slog.Logger
}

// New creates a runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		exec:      cfg.Executor,
		resolver:  cfg.Resolver,
		emitter:   cfg.Emitter,
		namespace: cfg.Namespace,
		logger:    logger,
	}
}

// Run executes the plan's steps in order. Plan validation errors are
// returned before any side effect; process failures are contained at the
// step boundary and reflected only in the run status. The returned Run is
// complete even when steps failed.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Run, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.NewString(),
		Name:      plan.Name,
		Namespace: r.namespace,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	results := make(map[string]*StepResult, len(plan.Steps))
	for _, step := range plan.Steps {
		sr := &StepResult{Step: step, Status: StepStatusPending}
		results[step.ID] = sr
		run.Steps = append(run.Steps, sr)
	}

	r.logger.Info("starting run", "run_id", run.ID, "plan", plan.Name, "steps", len(plan.Steps))

	for _, step := range plan.Steps {
		sr := results[step.ID]

		if blockedBy := unmetDependency(step, results); blockedBy != "" && !step.AlwaysRun {
			sr.Status = StepStatusSkipped
			r.logger.Info("step skipped", "run_id", run.ID, "step", step.ID, "blocked_by", blockedBy)
			continue
		}

		sr.Status = StepStatusRunning
		r.emitStart(ctx, run, step)

		start := time.Now()
		r.executeStep(ctx, step, sr)
		sr.Duration = time.Since(start)

		if sr.Failed() {
			r.emitFail(ctx, run, sr)
			r.logger.Error("step failed", "run_id", run.ID, "step", step.ID, "duration", sr.Duration)
			continue
		}

		sr.Status = StepStatusSucceeded
		r.emitComplete(ctx, run, sr)
		r.logger.Info("step succeeded", "run_id", run.ID, "step", step.ID, "duration", sr.Duration)
	}

	run.Status = aggregate(run.Steps)
	run.FinishedAt = time.Now().UTC()
	r.logger.Info("run finished", "run_id", run.ID, "status", run.Status)

	return run, nil
}

// unmetDependency returns the first dependency that did not succeed.
func unmetDependency(step *Step, results map[string]*StepResult) string {
	for _, dep := range step.DependsOn {
		if results[dep].Status != StepStatusSucceeded {
			return dep
		}
	}
	return ""
}

// executeStep runs the step body and sets its terminal status and results.
func (r *Runner) executeStep(ctx context.Context, step *Step, sr *StepResult) {
	if step.Check != nil {
		tests, err := step.Check(ctx)
		sr.Tests = tests
		if err != nil {
			sr.Err = err
			sr.Status = StepStatusFailed
			return
		}
		for _, t := range tests {
			if !t.Success {
				sr.Err = fmt.Errorf("check %s failed", t.Name)
				sr.Status = StepStatusFailed
				return
			}
		}
		return
	}

	outcome := r.exec.Execute(ctx, step.ID, *step.Command)
	sr.Outcome = &outcome

	if step.Kind == StepKindTest && step.ParseTests != nil {
		sr.Tests = step.ParseTests(outcome.StdoutTail)
	}

	if !outcome.Succeeded() {
		sr.Err = outcomeError(outcome)
		sr.Status = StepStatusFailed
	}
}

func outcomeError(o executor.Outcome) error {
	switch o.Status {
	case executor.StatusTimedOut:
		return fmt.Errorf("command timed out after %s", o.Duration.Round(time.Millisecond))
	case executor.StatusCancelled:
		return fmt.Errorf("command cancelled")
	default:
		return fmt.Errorf("command exited with code %d", o.ExitCode)
	}
}

// aggregate derives the run status from the terminal step states: succeeded
// only when every executed step succeeded, partially failed when some work
// completed before a failure, failed when nothing succeeded.
func aggregate(steps []*StepResult) RunStatus {
	var succeeded, failed int
	for _, sr := range steps {
		switch sr.Status {
		case StepStatusSucceeded:
			succeeded++
		case StepStatusFailed:
			failed++
		}
	}

	switch {
	case failed == 0:
		return RunStatusSucceeded
	case succeeded > 0:
		return RunStatusPartiallyFailed
	default:
		return RunStatusFailed
	}
}

// --- Lineage emission ---

func (r *Runner) lineageEnabled() bool {
	return r.emitter != nil && r.resolver != nil
}

func (r *Runner) emitStart(ctx context.Context, run *Run, step *Step) {
	if !r.lineageEnabled() {
		return
	}
	ev := lineage.NewRunEvent(lineage.EventStart, run.ID, r.namespace, jobName(run, step), time.Now())
	ev.Inputs = r.datasets(step.Inputs, nil)
	r.deliver(ctx, ev)
}

func (r *Runner) emitComplete(ctx context.Context, run *Run, sr *StepResult) {
	if !r.lineageEnabled() {
		return
	}
	step := sr.Step
	ev := lineage.NewRunEvent(lineage.EventComplete, run.ID, r.namespace, jobName(run, step), time.Now())
	ev.Inputs = r.datasets(step.Inputs, nil)
	ev.Outputs = r.datasets(step.Outputs, r.assertions(sr))
	r.deliver(ctx, ev)
}

// emitFail carries whatever partial dataset information is available plus an
// error facet on the run.
func (r *Runner) emitFail(ctx context.Context, run *Run, sr *StepResult) {
	if !r.lineageEnabled() {
		return
	}
	step := sr.Step
	ev := lineage.NewRunEvent(lineage.EventFail, run.ID, r.namespace, jobName(run, step), time.Now())
	ev.Inputs = r.datasets(step.Inputs, nil)
	ev.Outputs = r.datasets(step.Outputs, r.assertions(sr))
	ev.Run.Facets = map[string]any{
		lineage.ErrorFacetKey: lineage.ErrorFacet(failureMessage(sr)),
	}
	r.deliver(ctx, ev)
}

// assertions returns the extra facets for a test step's datasets.
func (r *Runner) assertions(sr *StepResult) map[string]any {
	if sr.Step.Kind != StepKindTest || len(sr.Tests) == 0 {
		return nil
	}
	return map[string]any{
		lineage.AssertionsFacetKey: lineage.AssertionsFacet(sr.Tests),
	}
}

// datasets resolves governance for each identifier and attaches the facets.
// A facet that cannot be encoded is logged and omitted; the event still goes
// out with the remaining facets.
func (r *Runner) datasets(ids []string, extra map[string]any) []lineage.Dataset {
	out := make([]lineage.Dataset, 0, len(ids))
	for _, id := range ids {
		facets := make(map[string]any, 1+len(extra))

		resolved := r.resolver.Resolve(id)
		facet, err := lineage.GovernanceFacet(resolved)
		if err != nil {
			r.logger.Warn("governance facet dropped", "dataset", id, "error", err)
		} else {
			facets[lineage.GovernanceFacetKey] = facet
		}
		for k, v := range extra {
			facets[k] = v
		}

		out = append(out, lineage.Dataset{
			Namespace: r.namespace,
			Name:      id,
			Facets:    facets,
		})
	}
	return out
}

// deliver sends one event on a context detached from run cancellation so
// terminal events survive a cancelled run. Delivery failures are logged and
// swallowed; lineage never gates step progression.
func (r *Runner) deliver(ctx context.Context, ev lineage.RunEvent) {
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	if err := r.emitter.Emit(emitCtx, ev); err != nil {
		r.logger.Warn("lineage event dropped", "event_type", ev.EventType, "job", ev.Job.Name, "error", err)
	}
}

func jobName(run *Run, step *Step) string {
	return run.Name + "." + step.ID
}

func failureMessage(sr *StepResult) string {
	msg := ""
	if sr.Err != nil {
		msg = sr.Err.Error()
	}
	if sr.Outcome != nil && len(sr.Outcome.StderrTail) > 0 {
		msg += "\n" + strings.Join(sr.Outcome.StderrTail, "\n")
	}
	return strings.TrimSpace(msg)
}
