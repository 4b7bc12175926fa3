package writers

import (
	"fmt"
	"strings"
)

// errorCodeNames maps JSON-RPC and MCP error codes to their conventional
// names for report display.
var errorCodeNames = map[int]string{
	-32700: "Parse error",
	-32600: "Invalid Request",
	-32601: "Method not found",
	-32602: "Invalid params",
	-32603: "Internal error",
	-32000: "Server error",
	-32002: "Resource not found",
}

// errorCodeName renders an error code with its conventional name, or the
// bare code when the name is unknown.
func errorCodeName(code int) string {
	if name, ok := errorCodeNames[code]; ok {
		return fmt.Sprintf("%d (%s)", code, name)
	}
	return fmt.Sprintf("%d", code)
}

// methodSpecArea maps each protocol method to the specification area that
// defines it. Reports use it to group wire evidence by area.
var methodSpecArea = map[string]string{
	"initialize":                       "Lifecycle",
	"initialized":                      "Lifecycle",
	"notifications/initialized":        "Lifecycle",
	"ping":                             "Utilities",
	"notifications/cancelled":          "Utilities",
	"notifications/progress":           "Utilities",
	"tools/list":                       "Tools",
	"tools/call":                       "Tools",
	"notifications/tools/list_changed": "Tools",
	"tools/call-async":                 "Async Operations",
	"tools/result":                     "Async Operations",
	"tools/cancel":                     "Async Operations",
	"resources/list":                   "Resources",
	"resources/read":                   "Resources",
	"prompts/list":                     "Prompts",
	"prompts/get":                      "Prompts",
}

// specAreaFor returns the specification area for a method. Unknown methods
// fall back to their namespace prefix, then to General.
func specAreaFor(method string) string {
	if area, ok := methodSpecArea[method]; ok {
		return area
	}
	prefix, _, found := strings.Cut(method, "/")
	if found {
		switch prefix {
		case "tools":
			return "Tools"
		case "resources":
			return "Resources"
		case "prompts":
			return "Prompts"
		case "notifications":
			return "Utilities"
		}
	}
	return "General"
}

// revisionNotes summarizes what each protocol revision changed, shown
// alongside the negotiated revision in report appendices.
var revisionNotes = map[string]string{
	"2024-11-05": "Baseline revision: initialize handshake with capability negotiation, tools/list and tools/call with pagination cursors, and the ping, progress, and cancellation utilities.",
	"2025-03-26": "Adds tool annotations and audio content, permits JSON-RPC batching, and replaces the HTTP+SSE transport with Streamable HTTP.",
	"2025-06-18": "Removes JSON-RPC batching, adds structured tool output and resource links in tool results, and requires the MCP-Protocol-Version header on HTTP requests.",
}

// revisionNote returns the summary for a revision, or empty when unknown.
func revisionNote(revision string) string {
	return revisionNotes[revision]
}

// categoryGuidanceInfo carries remediation advice for a failing check
// category together with the specification page that defines the area.
type categoryGuidanceInfo struct {
	Title        string
	Guidance     string
	ReferenceURL string
}

// categoryGuidance maps check categories to remediation advice.
var categoryGuidance = map[string]categoryGuidanceInfo{
	"core": {
		Title:        "Core Protocol",
		Guidance:     "Review the initialize handshake, protocol version negotiation, and post-initialize request gating. Core failures usually mean the lifecycle state machine accepts requests it should reject, or answers with the wrong protocol version.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/2025-06-18/basic/lifecycle",
	},
	"tools": {
		Title:        "Tools",
		Guidance:     "Check tools/list pagination cursors and tools/call argument validation. Tool failures are typically missing isError handling or mismatches between the declared input schema and what the server actually accepts.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/2025-06-18/server/tools",
	},
	"async": {
		Title:        "Async Operations",
		Guidance:     "Inspect operation status transitions and cancellation handling. Async failures usually come from operations that skip states, resurrect after a terminal state, or never become visible to polling.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/2025-06-18/basic/utilities/progress",
	},
	"spec": {
		Title:        "Revision Semantics",
		Guidance:     "Compare the server behavior against the negotiated revision. Revision-specific failures often come from emitting fields or methods that the negotiated revision does not define, or from dropping ones it requires.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/versioning",
	},
	"resources": {
		Title:        "Resources",
		Guidance:     "Verify resources/list pagination and resources/read URI handling. Resource failures usually mean unknown URIs return success instead of resource-not-found, or listed resources cannot actually be read.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/2025-06-18/server/resources",
	},
	"prompts": {
		Title:        "Prompts",
		Guidance:     "Verify prompts/list pagination and prompts/get argument handling. Prompt failures usually come from missing required-argument validation or message content that does not match the declared roles.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/2025-06-18/server/prompts",
	},
	"transport": {
		Title:        "Transport",
		Guidance:     "Check framing and session handling on the wire: newline-delimited messages without embedded newlines on stdio, and session id plus protocol version headers on HTTP. Transport failures often surface as dropped or interleaved frames rather than bad payloads.",
		ReferenceURL: "https://modelcontextprotocol.io/specification/2025-06-18/basic/transports",
	},
}

// categoryGuidanceFor returns remediation guidance for a category, with a
// generic fallback for categories not in the table.
func categoryGuidanceFor(category string) categoryGuidanceInfo {
	if info, ok := categoryGuidance[strings.ToLower(category)]; ok {
		return info
	}
	return categoryGuidanceInfo{
		Title:        capitalize(category),
		Guidance:     "Work through the failing checks in this category in order; the evidence blocks carry the exact request and response that decided each one.",
		ReferenceURL: "https://modelcontextprotocol.io/specification",
	}
}
