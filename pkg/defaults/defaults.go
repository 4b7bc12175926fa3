// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	cfg.MaxSessions = defaults.MaxSessions
//	cfg.ConnectRetries = defaults.RetryMedium
//	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
//
// DO NOT use hardcoded values like `MaxSessions: 100` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current mcpconform version
const Version = "1.2.0"

// ============================================================================
// BRANDING
// ============================================================================
//
// Tool name strings for reports, exporters, and user agents.
// Reference these instead of hardcoding the tool name.
// ============================================================================

const (
	// ToolName is the canonical lowercase tool name
	ToolName = "mcpconform"

	// ToolNameDisplay is the tool name for user-facing headings
	ToolNameDisplay = "MCPConform"

	// ToolURL is the project homepage
	ToolURL = "https://github.com/mcpconform/mcpconform"
)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Use these for worker pools, semaphores, and parallel operations.
// ============================================================================

const (
	// ConcurrencyMinimal is for single-threaded operations (1)
	ConcurrencyMinimal = 1

	// ConcurrencyLow is for light background work (5)
	ConcurrencyLow = 5

	// ConcurrencyMedium is for standard fan-out operations (10)
	ConcurrencyMedium = 10
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================
//
// Use these for retry loops and error recovery.
// ============================================================================

const (
	// RetryNone disables retries (0)
	RetryNone = 0

	// RetryLow is for quick operations (2)
	RetryLow = 2

	// RetryMedium is the standard retry count (3)
	RetryMedium = 3

	// RetryHigh is for flaky peers (5)
	RetryHigh = 5
)

// ============================================================================
// BUFFER SIZES
// ============================================================================
//
// Use these for byte buffers, slices, and I/O operations.
// ============================================================================

const (
	// BufferTiny is for small reads (1KB)
	BufferTiny = 1 * 1024

	// BufferSmall is for typical reads (4KB)
	BufferSmall = 4 * 1024

	// BufferMedium is for larger reads (32KB)
	BufferMedium = 32 * 1024

	// BufferLarge is the initial line-scanner allocation (64KB)
	BufferLarge = 64 * 1024

	// BufferHuge is for very large reads (1MB)
	BufferHuge = 1024 * 1024

	// BufferMax is the maximum accepted frame size (10MB)
	BufferMax = 10 * 1024 * 1024
)

// ============================================================================
// CHANNEL SIZES
// ============================================================================
//
// Use these for buffered channels.
// ============================================================================

const (
	// ChannelTiny is for small buffers (10)
	ChannelTiny = 10

	// ChannelSmall is for typical buffers (100)
	ChannelSmall = 100

	// ChannelMedium is for high-throughput buffers (1000)
	ChannelMedium = 1000
)

// ============================================================================
// HTTP CONTENT TYPES AND ACCEPT HEADERS
// ============================================================================
//
// Use these for Content-Type and Accept headers on the HTTP transport.
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypeSSE is text/event-stream
	ContentTypeSSE = "text/event-stream"

	// AcceptPost is the Accept header for POSTed requests: the peer may
	// answer with a single JSON body or upgrade to an event stream.
	AcceptPost = "application/json, text/event-stream"

	// AcceptStream is the Accept header for the listening GET stream.
	AcceptStream = "text/event-stream"
)

// ============================================================================
// PROTOCOL HEADERS
// ============================================================================
//
// Wire header and query parameter names used by the HTTP transport.
// Header lookups MUST be case-insensitive; these are the canonical forms.
// ============================================================================

const (
	// HeaderSessionID carries the session identifier assigned by the peer
	HeaderSessionID = "Mcp-Session-Id"

	// HeaderProtocolVersion carries the negotiated protocol revision
	HeaderProtocolVersion = "MCP-Protocol-Version"

	// QuerySessionID is the query-parameter fallback for the session id
	QuerySessionID = "session_id"
)

// ============================================================================
// USER AGENTS
// ============================================================================
//
// Use UserAgent() for dynamic user agent strings.
// ============================================================================

const (
	// UAMinimal is the bare user agent
	UAMinimal = "mcpconform/" + Version
)

// UserAgent returns the mcpconform user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("mcpconform/%s (%s)", Version, context)
}

// ============================================================================
// SESSION LIMITS
// ============================================================================
//
// Use these for session registry bounds and per-session queues.
// ============================================================================

const (
	// MaxSessions is the maximum number of live sessions per manager (100)
	MaxSessions = 100

	// QueueMaxMessages is the per-session bound on queued push messages (100)
	QueueMaxMessages = 100
)

// ============================================================================
// ASYNC OPERATION LIMITS
// ============================================================================
//
// Use these for the asynchronous operation tracker.
// ============================================================================

const (
	// OpMaxActive is the maximum number of concurrently tracked operations (100)
	OpMaxActive = 100

	// OpIDBytes is the number of random bytes in a generated operation id (8)
	OpIDBytes = 8
)

// ============================================================================
// DIAGNOSTICS
// ============================================================================

const (
	// StderrTailLines is how many trailing stderr lines a subprocess
	// transport retains for failure reports (64)
	StderrTailLines = 64
)

// ============================================================================
// PORTS
// ============================================================================
//
// Common port numbers.
// ============================================================================

const (
	// PortServeDefault is the default port for the reference server (8080)
	PortServeDefault = 8080

	// PortMetricsDefault is the default port for the metrics endpoint (9090)
	PortMetricsDefault = 9090
)
