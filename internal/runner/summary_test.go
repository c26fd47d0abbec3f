package runner

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tidemark-data/tidemark/internal/executor"
)

func TestWriteSummary(t *testing.T) {
	now := time.Now().UTC()
	run := &Run{
		ID:         "run-1",
		Name:       "pipeline",
		Status:     RunStatusPartiallyFailed,
		StartedAt:  now,
		FinishedAt: now.Add(90 * time.Second),
		Steps: []*StepResult{
			{
				Step:     &Step{ID: "ingest", Kind: StepKindIngest},
				Status:   StepStatusSucceeded,
				Duration: 42 * time.Second,
				Outcome:  &executor.Outcome{Status: executor.StatusSucceeded},
			},
			{
				Step:     &Step{ID: "transform-gold", Kind: StepKindTransform},
				Status:   StepStatusFailed,
				Duration: 3 * time.Second,
				Err:      fmt.Errorf("command exited with code 2"),
				Outcome: &executor.Outcome{
					Status:     executor.StatusFailed,
					ExitCode:   2,
					StderrTail: []string{"compilation error in model hourly", "  line 12"},
				},
			},
			{
				Step:   &Step{ID: "publish", Kind: StepKindOperation},
				Status: StepStatusSkipped,
			},
		},
	}

	var buf bytes.Buffer
	WriteSummary(&buf, run)
	out := buf.String()

	assert.Contains(t, out, "ingest")
	assert.Contains(t, out, "transform-gold")
	assert.Contains(t, out, "publish")
	// The run status sits in the footer, which go-pretty renders uppercased.
	assert.Contains(t, strings.ToUpper(out), strings.ToUpper(string(RunStatusPartiallyFailed)))

	// Failed steps get their stderr tail below the table.
	assert.Contains(t, out, "transform-gold failed: command exited with code 2")
	assert.Contains(t, out, "compilation error in model hourly")

	// Skipped steps render no duration or exit code.
	assert.NotContains(t, out, "publish failed")
}

func TestFormatHelpers(t *testing.T) {
	skipped := &StepResult{Step: &Step{ID: "x"}, Status: StepStatusSkipped}
	assert.Equal(t, "-", formatDuration(skipped))
	assert.Equal(t, "-", formatExit(skipped))

	done := &StepResult{
		Step:     &Step{ID: "y"},
		Status:   StepStatusSucceeded,
		Duration: 1500 * time.Millisecond,
		Outcome:  &executor.Outcome{ExitCode: 0},
	}
	assert.Equal(t, "1.5s", formatDuration(done))
	assert.Equal(t, "0", formatExit(done))
}
