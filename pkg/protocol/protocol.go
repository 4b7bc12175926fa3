// Package protocol defines the JSON-RPC 2.0 framing and MCP payload types
// shared by the transports, the revision adapters, the conformance suites,
// and the reference server.
//
// Raw JSON fields (ids, params, results) are kept as jsontext.Value rather
// than decoded eagerly: a conformance checker cares about the bytes the
// peer actually sent, not a normalized Go rendering of them.
package protocol

// JSONRPCVersion is the version string every frame must carry.
const JSONRPCVersion = "2.0"

// MCP request method names.
const (
	MethodInitialize     = "initialize"
	MethodPing           = "ping"
	MethodToolsList      = "tools/list"
	MethodToolsCall      = "tools/call"
	MethodToolsCallAsync = "tools/call-async"
	MethodToolsResult    = "tools/result"
	MethodToolsCancel    = "tools/cancel"
	MethodResourcesList  = "resources/list"
	MethodResourcesRead  = "resources/read"
	MethodPromptsList    = "prompts/list"
	MethodPromptsGet     = "prompts/get"
)

// MCP notification method names.
const (
	NotifInitialized = "notifications/initialized"

	// NotifInitializedLegacy is the pre-2024-11-05 spelling some servers
	// still emit; the earliest revision accepts it as an alias.
	NotifInitializedLegacy = "initialized"

	NotifCancelled        = "notifications/cancelled"
	NotifProgress         = "notifications/progress"
	NotifToolsListChanged = "notifications/tools/list_changed"
)
