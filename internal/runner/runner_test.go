package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-data/tidemark/internal/executor"
	"github.com/tidemark-data/tidemark/internal/governance"
	"github.com/tidemark-data/tidemark/internal/lineage"
	"github.com/tidemark-data/tidemark/internal/testutil"
)

// captureEmitter records emitted events in order.
type captureEmitter struct {
	mu     sync.Mutex
	events []lineage.RunEvent
	err    error
}

func (c *captureEmitter) Emit(_ context.Context, ev lineage.RunEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureEmitter) all() []lineage.RunEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]lineage.RunEvent, len(c.events))
	copy(out, c.events)
	return out
}

func testResolver(t *testing.T) *governance.Resolver {
	t.Helper()
	r, err := governance.Load(map[string]any{
		"defaults": map[string]any{
			"access_level":   "internal",
			"classification": "green",
		},
		"sources": map[string]any{
			"raw.*": map[string]any{
				"classification": "yellow",
			},
		},
	}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return r
}

func newTestRunner(t *testing.T, emitter lineage.Emitter) *Runner {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	var resolver *governance.Resolver
	if emitter != nil {
		resolver = testResolver(t)
	}
	return New(Config{
		Executor:  executor.New(executor.Config{Logger: logger}),
		Resolver:  resolver,
		Emitter:   emitter,
		Namespace: "tidemark.test",
		Logger:    logger,
	})
}

func shellStep(id string, script string, dependsOn []string, outputs []string) *Step {
	return &Step{
		ID:        id,
		Kind:      StepKindTransform,
		Command:   &executor.Command{Argv: []string{"sh", "-c", script}},
		DependsOn: dependsOn,
		Outputs:   outputs,
	}
}

func TestRun_AllSucceed(t *testing.T) {
	emitter := &captureEmitter{}
	r := newTestRunner(t, emitter)

	plan := &Plan{
		Name: "pipeline",
		Steps: []*Step{
			shellStep("a", "true", nil, []string{"raw.obs"}),
			shellStep("b", "true", []string{"a"}, nil),
		},
	}

	run, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.False(t, run.Failed())
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	for _, id := range []string{"a", "b"} {
		require.NotNil(t, run.Step(id))
		assert.Equal(t, StepStatusSucceeded, run.Step(id).Status)
	}

	events := emitter.all()
	require.Len(t, events, 4)
	assert.Equal(t, lineage.EventStart, events[0].EventType)
	assert.Equal(t, "pipeline.a", events[0].Job.Name)
	assert.Equal(t, lineage.EventComplete, events[1].EventType)
	assert.Equal(t, lineage.EventStart, events[2].EventType)
	assert.Equal(t, "pipeline.b", events[2].Job.Name)
	assert.Equal(t, lineage.EventComplete, events[3].EventType)

	// Every event of one run shares the run id.
	for _, ev := range events {
		assert.Equal(t, run.ID, ev.Run.RunID)
		assert.Equal(t, "tidemark.test", ev.Job.Namespace)
	}
}

func TestRun_FailureSkipsDependents(t *testing.T) {
	emitter := &captureEmitter{}
	r := newTestRunner(t, emitter)

	plan := &Plan{
		Name: "pipeline",
		Steps: []*Step{
			shellStep("a", "true", nil, nil),
			shellStep("b", "echo broken >&2; exit 2", []string{"a"}, []string{"raw.obs"}),
			shellStep("c", "true", []string{"b"}, nil),
			{
				ID:         "test",
				Kind:       StepKindTest,
				Command:    &executor.Command{Argv: []string{"sh", "-c", "echo 'PASS not_null_id'"}},
				AlwaysRun:  true,
				ParseTests: ParseToolTests,
			},
		},
	}

	run, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, RunStatusPartiallyFailed, run.Status)
	assert.True(t, run.Failed())
	assert.Equal(t, StepStatusSucceeded, run.Step("a").Status)
	assert.Equal(t, StepStatusFailed, run.Step("b").Status)
	assert.Equal(t, StepStatusSkipped, run.Step("c").Status)
	assert.Equal(t, StepStatusSucceeded, run.Step("test").Status, "always-run steps execute after failures")

	require.Len(t, run.Step("test").Tests, 1)
	assert.True(t, run.Step("test").Tests[0].Success)

	// No events for the skipped step; a FAIL event for b.
	events := emitter.all()
	var types []string
	for _, ev := range events {
		types = append(types, ev.Job.Name+":"+string(ev.EventType))
	}
	assert.Equal(t, []string{
		"pipeline.a:START", "pipeline.a:COMPLETE",
		"pipeline.b:START", "pipeline.b:FAIL",
		"pipeline.test:START", "pipeline.test:COMPLETE",
	}, types)

	// The FAIL event carries the error facet with the captured stderr.
	failEv := events[3]
	require.Contains(t, failEv.Run.Facets, lineage.ErrorFacetKey)
	errFacet, ok := failEv.Run.Facets[lineage.ErrorFacetKey].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errFacet["message"], "broken")
	assert.Contains(t, errFacet["message"], "exited with code 2")
}

func TestRun_AllFailed(t *testing.T) {
	r := newTestRunner(t, nil)

	plan := &Plan{
		Name:  "pipeline",
		Steps: []*Step{shellStep("a", "exit 1", nil, nil)},
	}

	run, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, RunStatusFailed, run.Status)
}

func TestRun_GovernanceFacetsOnDatasets(t *testing.T) {
	emitter := &captureEmitter{}
	r := newTestRunner(t, emitter)

	plan := &Plan{
		Name:  "pipeline",
		Steps: []*Step{shellStep("a", "true", nil, []string{"raw.obs", "other.ds"})},
	}

	_, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	events := emitter.all()
	require.Len(t, events, 2)
	complete := events[1]
	require.Len(t, complete.Outputs, 2)

	first := complete.Outputs[0]
	assert.Equal(t, "raw.obs", first.Name)
	assert.Equal(t, "tidemark.test", first.Namespace)
	gov, ok := first.Facets[lineage.GovernanceFacetKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "yellow", gov["classification"], "pattern override applies")

	second := complete.Outputs[1]
	gov, ok = second.Facets[lineage.GovernanceFacetKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "green", gov["classification"], "defaults apply when nothing matches")
}

func TestRun_CheckStep(t *testing.T) {
	r := newTestRunner(t, nil)

	passing := func(context.Context) ([]lineage.TestResult, error) {
		return []lineage.TestResult{{Name: "freshness.obs", Success: true}}, nil
	}
	failing := func(context.Context) ([]lineage.TestResult, error) {
		return []lineage.TestResult{{Name: "freshness.stations", Success: false, FailureDetail: "0 records"}}, nil
	}
	erroring := func(context.Context) ([]lineage.TestResult, error) {
		return nil, fmt.Errorf("connection refused")
	}

	plan := &Plan{
		Name: "checks",
		Steps: []*Step{
			CheckStep("ok", passing, nil, nil),
			CheckStep("stale", failing, nil, nil),
			CheckStep("down", erroring, nil, nil),
		},
	}

	run, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, StepStatusSucceeded, run.Step("ok").Status)
	assert.Equal(t, StepStatusFailed, run.Step("stale").Status)
	assert.Equal(t, StepStatusFailed, run.Step("down").Status)
	assert.ErrorContains(t, run.Step("down").Err, "connection refused")
	assert.Equal(t, RunStatusPartiallyFailed, run.Status)
}

func TestRun_EmitterFailureDoesNotFailSteps(t *testing.T) {
	emitter := &captureEmitter{err: fmt.Errorf("sink down")}
	r := newTestRunner(t, emitter)

	plan := &Plan{
		Name:  "pipeline",
		Steps: []*Step{shellStep("a", "true", nil, []string{"raw.obs"})},
	}

	run, err := r.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
}

func TestRun_PlanValidation(t *testing.T) {
	r := newTestRunner(t, nil)

	tests := []struct {
		name string
		plan *Plan
	}{
		{
			name: "empty plan",
			plan: &Plan{Name: "p"},
		},
		{
			name: "duplicate ids",
			plan: &Plan{Name: "p", Steps: []*Step{
				shellStep("a", "true", nil, nil),
				shellStep("a", "true", nil, nil),
			}},
		},
		{
			name: "unknown dependency",
			plan: &Plan{Name: "p", Steps: []*Step{
				shellStep("a", "true", []string{"ghost"}, nil),
			}},
		},
		{
			name: "dependency cycle",
			plan: &Plan{Name: "p", Steps: []*Step{
				shellStep("a", "true", []string{"b"}, nil),
				shellStep("b", "true", []string{"a"}, nil),
			}},
		},
		{
			name: "neither command nor check",
			plan: &Plan{Name: "p", Steps: []*Step{{ID: "a", Kind: StepKindTransform}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), tt.plan)
			require.Error(t, err)
		})
	}
}
