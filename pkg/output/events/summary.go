package events

import (
	"time"

	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// SummaryEvent represents the final run summary.
// It contains comprehensive statistics about the completed run including
// check totals, the compliance score, breakdowns by category, and timing.
type SummaryEvent struct {
	BaseEvent
	Version    string             `json:"version"`
	Target     SummaryTarget      `json:"target"`
	Totals     SummaryTotals      `json:"totals"`
	Compliance scoring.Compliance `json:"compliance"`
	Breakdown  BreakdownInfo      `json:"breakdown"`
	Failures   []FailureInfo      `json:"failures,omitempty"`
	Timing     SummaryTiming      `json:"timing"`
	ExitCode   int                `json:"exit_code"`
	ExitReason string             `json:"exit_reason"`
}

// SummaryTarget contains information about the server under test.
type SummaryTarget struct {
	Endpoint   string `json:"endpoint"`
	Transport  string `json:"transport"`
	Revision   string `json:"revision,omitempty"`
	ServerName string `json:"server_name,omitempty"`
}

// SummaryTotals contains aggregate counts for all check results.
type SummaryTotals struct {
	Checks   int `json:"checks"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Timeouts int `json:"timeouts"`
	Errors   int `json:"errors"`
}

// BreakdownInfo contains detailed breakdowns of results by dimension.
type BreakdownInfo struct {
	ByCategory map[string]CategoryStats `json:"by_category"`
	ByLevel    map[string]CategoryStats `json:"by_level"`
}

// CategoryStats contains statistics for a specific category or dimension.
type CategoryStats struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// FailureInfo identifies a failed check for the summary failure list.
type FailureInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Level    Level  `json:"level"`
	Message  string `json:"message,omitempty"`
}

// SummaryTiming contains timing information for the run.
type SummaryTiming struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationSec float64   `json:"duration_sec"`
}
