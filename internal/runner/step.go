// Package runner orchestrates pipeline runs: it drives each step's external
// command or in-process check, tracks the step and run state machines, and
// emits lineage events with resolved governance facets around each step's
// dataset boundaries.
package runner

import (
	"context"
	"time"

	"github.com/tidemark-data/tidemark/internal/executor"
	"github.com/tidemark-data/tidemark/internal/lineage"
)

// StepKind categorizes a pipeline step.
type StepKind string

const (
	StepKindIngest    StepKind = "ingest"
	StepKindTransform StepKind = "transform"
	StepKindTest      StepKind = "test"
	StepKindOperation StepKind = "operation"
)

// StepStatus is the state of one step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// RunStatus is the aggregated state of one run.
type RunStatus string

const (
	RunStatusPending         RunStatus = "pending"
	RunStatusRunning         RunStatus = "running"
	RunStatusSucceeded       RunStatus = "succeeded"
	RunStatusPartiallyFailed RunStatus = "partially_failed"
	RunStatusFailed          RunStatus = "failed"
)

// CheckFunc is an in-process step body. It returns per-test results; the
// step fails when any result failed or an error is returned.
type CheckFunc func(ctx context.Context) ([]lineage.TestResult, error)

// ParseTestsFunc derives test results from a command's captured output tail.
type ParseTestsFunc func(lines []string) []lineage.TestResult

// Step is one unit of execution in a plan. Exactly one of Command or Check
// is set. Steps have no identity beyond the run they belong to.
type Step struct {
	// ID is unique within the plan.
	ID   string
	Kind StepKind

	// Command is the external command for subprocess steps.
	Command *executor.Command
	// Check is the body of in-process steps (e.g. raw-data validation).
	Check CheckFunc
	// ParseTests derives test results from a command step's output.
	// Only consulted for test-kind steps.
	ParseTests ParseTestsFunc

	// DependsOn lists step IDs that must have succeeded first.
	DependsOn []string
	// AlwaysRun lets the step execute even when upstream steps failed.
	AlwaysRun bool

	// Inputs and Outputs are the dataset identifiers the step touches.
	Inputs  []string
	Outputs []string
}

// StepResult is the mutable execution record of one step within a run.
type StepResult struct {
	Step     *Step
	Status   StepStatus
	Outcome  *executor.Outcome
	Tests    []lineage.TestResult
	Err      error
	Duration time.Duration
}

// Failed reports whether the step terminally failed.
func (s *StepResult) Failed() bool { return s.Status == StepStatusFailed }
