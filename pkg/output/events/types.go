// Package events defines the event types for mcpconform output.
// All events are designed for JSON serialization and CI/CD integration.
//
// This package provides the foundational types that all other event types
// will embed. The BaseEvent struct is designed to be embedded in specific
// event types (ResultEvent, ProgressEvent, etc.).
package events

import (
	"time"

	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeStart indicates a conformance run has started.
	EventTypeStart EventType = "start"
	// EventTypeResult indicates a single check result.
	EventTypeResult EventType = "result"
	// EventTypeProgress indicates progress update during a run.
	EventTypeProgress EventType = "progress"
	// EventTypeError indicates an error occurred.
	EventTypeError EventType = "error"
	// EventTypeSummary indicates a summary of results.
	EventTypeSummary EventType = "summary"
	// EventTypeComplete indicates a run has completed.
	EventTypeComplete EventType = "complete"
)

// Outcome represents the result of a single check.
// This is a type alias for scoring.Outcome so writers and hooks can
// switch on check results without importing the scoring package.
type Outcome = scoring.Outcome

const (
	// OutcomePassed indicates the check passed.
	OutcomePassed = scoring.OutcomePassed
	// OutcomeFailed indicates the check failed.
	OutcomeFailed = scoring.OutcomeFailed
	// OutcomeSkipped indicates the check did not run.
	OutcomeSkipped = scoring.OutcomeSkipped
	// OutcomeTimedOut indicates the check exceeded its deadline.
	OutcomeTimedOut = scoring.OutcomeTimedOut
	// OutcomeErrored indicates the harness failed to execute the check.
	OutcomeErrored = scoring.OutcomeErrored
)

// Level represents the requirement level of a check.
// This is a type alias for scoring.Level.
type Level = scoring.Level

const (
	// LevelMust indicates a mandatory requirement.
	LevelMust = scoring.LevelMust
	// LevelShould indicates a recommended requirement.
	LevelShould = scoring.LevelShould
	// LevelMay indicates an optional requirement.
	LevelMay = scoring.LevelMay
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	RunID() string
}

// BaseEvent contains common fields for all events.
// It is designed to be embedded in specific event types.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the unique identifier for the run that produced this event.
func (e BaseEvent) RunID() string { return e.Run }
