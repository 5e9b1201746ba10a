package syncer

import "time"

// Status classifies the outcome of a reconciliation cycle.
type Status string

const (
	StatusCompleted         Status = "completed"
	StatusPartial           Status = "partial"
	StatusNoNetwork         Status = "no_network"
	StatusRemoteUnreachable Status = "remote_unreachable"
	StatusTimedOut          Status = "timed_out"
)

// Result summarizes one reconciliation cycle.
type Result struct {
	Status           Status        `json:"status"`
	Success          bool          `json:"success"`
	Pulled           int           `json:"pulled"`
	PullErrors       int           `json:"pull_errors"`
	Synced           int           `json:"synced"`
	Failed           int           `json:"failed"`
	NotSyncable      int           `json:"not_syncable"`
	RemainingPending int           `json:"remaining_pending"`
	Cleaned          int64         `json:"cleaned"`
	Message          string        `json:"message"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// StatusUpdate is a progress signal emitted during a cycle: at start
// (progress 0), after each processed entry, and at end (progress 100).
type StatusUpdate struct {
	Progress float64 `json:"progress"`
	Synced   int     `json:"synced"`
	Total    int     `json:"total"`
	Message  string  `json:"message"`
}
