// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.TestCore)
//	SweepInterval: duration.SweepInterval,
//	if elapsed > duration.SlowCase {
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// TEST CASE TIMEOUTS
// ============================================================================
//
// Per-category deadlines for cases executed against a peer. Core and spec
// cases are short because a conformant peer answers lifecycle traffic
// quickly; tool and async cases run real work on the peer side.
// ============================================================================

const (
	// TestCore bounds lifecycle and protocol cases (10s)
	TestCore = 10 * time.Second

	// TestSpec bounds revision edge-case probes (15s)
	TestSpec = 15 * time.Second

	// TestTool bounds synchronous tool invocations (30s)
	TestTool = 30 * time.Second

	// TestAsync bounds submit/poll/cancel async flows (60s)
	TestAsync = 60 * time.Second

	// ProbeSilence is how long a probe that expects no answer waits
	// before declaring the peer quiet (2s)
	ProbeSilence = 2 * time.Second
)

// ============================================================================
// HANDSHAKE AND RUN CEILINGS
// ============================================================================
//
// Use these for context.WithTimeout() calls that bound whole operations.
// ============================================================================

const (
	// Initialize bounds the initialize/initialized handshake (10s)
	Initialize = 10 * time.Second

	// ContextShort is for quick operations (30s)
	ContextShort = 30 * time.Second

	// ContextMedium is for standard operations (5min)
	ContextMedium = 5 * time.Minute

	// ContextMax is the ceiling for a full conformance run (30min)
	ContextMax = 30 * time.Minute
)

// ============================================================================
// SESSION LIFECYCLE
// ============================================================================
//
// Reference-server session registry timings.
// ============================================================================

const (
	// SessionTTL is how long an idle session survives before expiry (30min)
	SessionTTL = 30 * time.Minute

	// ConnIdle is how long a push connection may sit without a delivery
	// before the sweep closes it (5min)
	ConnIdle = 5 * time.Minute

	// SweepInterval is how often the registry sweep runs (1min)
	SweepInterval = 1 * time.Minute

	// KeepAlive is the comment-frame interval on event streams; it defeats
	// proxy idle teardown without waking the peer's JSON parser (15s)
	KeepAlive = 15 * time.Second
)

// ============================================================================
// ASYNC OPERATIONS
// ============================================================================
//
// Tracker retention and polling cadence.
// ============================================================================

const (
	// OpRetention is how long a terminal operation stays queryable (30min)
	OpRetention = 30 * time.Minute

	// OpSweep is how often the tracker purges expired operations (5min)
	OpSweep = 5 * time.Minute

	// PollInterval is the cadence for polling an async result (250ms)
	PollInterval = 250 * time.Millisecond
)

// ============================================================================
// HEALTH/RETRY INTERVALS
// ============================================================================
//
// Use these for health checks, retries, and shutdown coordination.
// ============================================================================

const (
	// RetryFast is for quick retries (1s)
	RetryFast = 1 * time.Second

	// RetryStd is for standard retry delay (5s)
	RetryStd = 5 * time.Second

	// HealthCheck is for health check intervals (2s)
	HealthCheck = 2 * time.Second

	// ShutdownGrace is the window between a polite stdin close and
	// escalating to SIGTERM, and again between SIGTERM and SIGKILL (5s)
	ShutdownGrace = 5 * time.Second
)

// ============================================================================
// UI/STREAMING INTERVALS
// ============================================================================
//
// Use these for progress updates and streaming output.
// ============================================================================

const (
	// StreamFast is for real-time updates (1s)
	StreamFast = 1 * time.Second

	// StreamStd is for normal progress reporting (3s)
	StreamStd = 3 * time.Second

	// StreamSlow is for background refreshes like tip rotation (5s)
	StreamSlow = 5 * time.Second
)

// ============================================================================
// RESPONSE TIME THRESHOLDS
// ============================================================================

const (
	// SlowCase flags a test case as slow in report output (5s)
	SlowCase = 5 * time.Second
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================
//
// Use these for low-level network configuration.
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// TCPKeepAlive is for TCP keep-alive interval (30s)
	TCPKeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)
