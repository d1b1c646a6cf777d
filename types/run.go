package types

import "time"

// RunMeta identifies one adapter run.
type RunMeta struct {
	RunID string
	AppID string
}

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	// RunStatusCompleted indicates the input stream was exhausted cleanly.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates a fatal synchronous error aborted the stream.
	RunStatusFailed RunStatus = "failed"
)

// RunCompletedEvent is published by adapters once a run has finished.
type RunCompletedEvent struct {
	ContractVersion  string    `json:"contract_version"`
	EventType        string    `json:"event_type"`
	RunID            string    `json:"run_id"`
	AppID            string    `json:"app_id"`
	Status           RunStatus `json:"status"`
	Error            string    `json:"error,omitempty"`
	Lines            int64     `json:"lines"`
	DecisionRecords  int64     `json:"decision_records"`
	OutcomeRecords   int64     `json:"outcome_records"`
	BackgroundErrors int64     `json:"background_errors"`
	DroppedEntries   int64     `json:"dropped_entries"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationMs       int64     `json:"duration_ms"`
}
