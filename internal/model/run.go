package model

import "time"

// RunStatus tracks the lifecycle of a batch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ResultStatus classifies a stored per-ticker outcome.
type ResultStatus string

const (
	ResultStatusTargets   ResultStatus = "targets"
	ResultStatusNoTargets ResultStatus = "no_targets"
	ResultStatusError     ResultStatus = "error"
)

// Run is one batch extraction run over a ticker list.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Tickers   int       `json:"tickers"`
	Stats     *RunStats `json:"stats,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStats summarizes store contents for progress reporting.
type RunStats struct {
	Processed   int `json:"processed"`
	WithTargets int `json:"with_targets"`
	Empty       int `json:"empty"`
	Errors      int `json:"errors"`
	HighUpside  int `json:"high_upside"`
}
