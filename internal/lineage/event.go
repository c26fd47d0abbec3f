package lineage

import "time"

// EventType marks the step transition an event reports.
type EventType string

const (
	EventStart    EventType = "START"
	EventComplete EventType = "COMPLETE"
	EventFail     EventType = "FAIL"
)

// Producer identifies this tool in emitted events.
const Producer = "https://github.com/tidemark-data/tidemark"

// Dataset names one dataset touched by a step, with zero or more facets.
type Dataset struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Facets    map[string]any `json:"facets,omitempty"`
}

// Run identifies one pipeline run, with optional run-level facets (e.g. the
// error facet on FAIL events).
type Run struct {
	RunID  string         `json:"runId"`
	Facets map[string]any `json:"facets,omitempty"`
}

// Job identifies the step within its lineage namespace.
type Job struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// RunEvent is an immutable snapshot emitted at a step transition.
type RunEvent struct {
	EventType EventType `json:"eventType"`
	EventTime string    `json:"eventTime"`
	Run       Run       `json:"run"`
	Job       Job       `json:"job"`
	Inputs    []Dataset `json:"inputs,omitempty"`
	Outputs   []Dataset `json:"outputs,omitempty"`
	Producer  string    `json:"producer"`
}

// NewRunEvent assembles an event with the producer and timestamp filled in.
func NewRunEvent(typ EventType, runID, namespace, job string, at time.Time) RunEvent {
	return RunEvent{
		EventType: typ,
		EventTime: at.UTC().Format(time.RFC3339Nano),
		Run:       Run{RunID: runID},
		Job:       Job{Namespace: namespace, Name: job},
		Producer:  Producer,
	}
}
