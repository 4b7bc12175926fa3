package events

import "time"

// ProgressEvent represents a progress update during a run.
// It provides real-time metrics about run progress, timing
// information, and cumulative statistics.
type ProgressEvent struct {
	BaseEvent
	Progress ProgressInfo `json:"progress"`
	Timing   TimingInfo   `json:"timing"`
	Stats    StatsInfo    `json:"stats"`
}

// ProgressInfo contains progress metrics for the current run phase.
type ProgressInfo struct {
	Category   string  `json:"category"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// TimingInfo contains timing metrics for the run.
type TimingInfo struct {
	ElapsedSec int64     `json:"elapsed_sec"`
	StartedAt  time.Time `json:"started_at"`
}

// StatsInfo contains cumulative statistics for the run.
type StatsInfo struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Timeouts int `json:"timeouts"`
	Errors   int `json:"errors"`
}
