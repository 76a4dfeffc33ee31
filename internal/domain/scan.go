package domain

import "time"

// ScanState is the lifecycle of the scanner
type ScanState string

const (
	StateIdle      ScanState = "idle"
	StateRunning   ScanState = "running"
	StateCompleted ScanState = "completed"
	StateError     ScanState = "error"
)

// ProgressStatus is the per-object status carried by a progress event
type ProgressStatus string

const (
	ProgressScanning ProgressStatus = "scanning"
	ProgressDone     ProgressStatus = "done"
	ProgressError    ProgressStatus = "error"
)

// ProgressEvent reports scan progress to a UI
type ProgressEvent struct {
	ObjectID    string         `json:"objectId"`
	ObjectTitle string         `json:"objectTitle"`
	Status      ProgressStatus `json:"status"`
	Current     int            `json:"current"`
	Total       int            `json:"total"`
}

// Diagnostics holds the verbatim exchange with the provider. It is log data
// and never part of the persisted mapping index.
type Diagnostics struct {
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
	RawResponse  string `json:"rawResponse"`
}

// ScanKind tells full scans from single-object rescans
type ScanKind string

const (
	ScanFull   ScanKind = "full"
	ScanObject ScanKind = "object"
)

// ScanRun is one recorded scan in the scan history
type ScanRun struct {
	ID         string
	Kind       ScanKind
	ObjectID   string
	State      ScanState
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    int
	Rejected   int
	Unresolved int
	TokenUsage TokenUsage
	Error      string
	Diagnostics
}

// Duration returns how long the run took, or zero while it is running
func (r ScanRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
