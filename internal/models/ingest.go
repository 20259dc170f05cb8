package models

import "time"

// Job state constants
const (
	JobStateRunning   = "running"
	JobStateSucceeded = "succeeded"
	JobStateFailed    = "failed"
)

// Queue item state constants
const (
	ItemStatePending   = "pending"
	ItemStateRunning   = "running"
	ItemStateSucceeded = "succeeded"
	ItemStateFailed    = "failed"
)

// IngestJob is the umbrella record for one bulk-ingest request.
// Counters are reconciled from queue truth by the worker, so they are
// always a faithful lower bound while running and exact at terminal.
type IngestJob struct {
	ID                        string     `json:"id"`
	CreatedAt                 time.Time  `json:"created_at"`
	StartedAt                 time.Time  `json:"started_at"`
	FinishedAt                *time.Time `json:"finished_at,omitempty"`
	State                     string     `json:"state"`
	RequestedStart            string     `json:"requested_start"`
	RequestedEnd              string     `json:"requested_end"`
	UniverseSymbolsConsidered int        `json:"universe_symbols_considered"`
	SymbolsAttempted          int        `json:"symbols_attempted"`
	SymbolsSucceeded          int        `json:"symbols_succeeded"`
	SymbolsFailed             int        `json:"symbols_failed"`
	LastError                 string     `json:"last_error,omitempty"`
}

// QueueItem is one unit of work: a (symbol, window) pair owned by a job.
type QueueItem struct {
	JobID         string     `json:"job_id"`
	Symbol        string     `json:"symbol"`
	WindowStart   string     `json:"window_start"`
	WindowEnd     string     `json:"window_end"`
	State         string     `json:"state"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// QueueCounts aggregates a job's queue items by state.
type QueueCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Window is a closed date interval [Start, End].
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// IngestRequest is the validated input of the start-resumable command.
type IngestRequest struct {
	StartDate       string         `json:"start_date"`
	EndDate         string         `json:"end_date"`
	WindowDays      int            `json:"window_days,omitempty"`
	Universe        UniverseFilter `json:"universe"`
	ArchiveOnFinish bool           `json:"archive_on_finish,omitempty"`
	ArchiveKeepDays int            `json:"archive_keep_days,omitempty"`
}

// StartResult is returned to the caller once the job is created and the
// worker is scheduled; it never waits for completion.
type StartResult struct {
	JobID          string `json:"job_id"`
	RequestedStart string `json:"requested_start"`
	RequestedEnd   string `json:"requested_end"`
	WindowDays     int    `json:"window_days"`
	QueuedItems    int    `json:"queued_items"`
}

// JobProgress combines the job record with queue-truth counts.
type JobProgress struct {
	JobID       string      `json:"job_id"`
	State       string      `json:"state"`
	Counts      QueueCounts `json:"counts"`
	PctComplete float64     `json:"pct_complete"`
	LastError   string      `json:"last_error,omitempty"`
}
