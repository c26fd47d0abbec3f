package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteSummary renders the per-step outcome table for a finished run, and
// the captured stderr tail of each failed step below it.
func WriteSummary(w io.Writer, run *Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Step", "Kind", "Status", "Duration", "Exit"})

	for _, sr := range run.Steps {
		t.AppendRow(table.Row{
			sr.Step.ID,
			sr.Step.Kind,
			sr.Status,
			formatDuration(sr),
			formatExit(sr),
		})
	}
	t.AppendFooter(table.Row{"", "", run.Status, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond), ""})
	t.Render()

	for _, sr := range run.Steps {
		if !sr.Failed() {
			continue
		}
		fmt.Fprintf(w, "\n%s failed", sr.Step.ID)
		if sr.Err != nil {
			fmt.Fprintf(w, ": %v", sr.Err)
		}
		fmt.Fprintln(w)
		if sr.Outcome != nil {
			for _, line := range sr.Outcome.StderrTail {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
}

func formatDuration(sr *StepResult) string {
	if sr.Status == StepStatusSkipped || sr.Status == StepStatusPending {
		return "-"
	}
	return sr.Duration.Round(time.Millisecond).String()
}

func formatExit(sr *StepResult) string {
	if sr.Outcome == nil {
		return "-"
	}
	return fmt.Sprintf("%d", sr.Outcome.ExitCode)
}
