// Package adapter encapsulates the differences between MCP protocol
// revisions behind one interface. Everything revision-specific — handshake
// payload shape, tool descriptor fields, batch tolerance, header
// requirements, method aliasing — lives here, so transports and test
// suites never switch on a version string themselves.
//
// The set of revisions is closed: an unknown version string is an error,
// never a best-effort guess.
package adapter

import (
	"errors"
	"fmt"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// Supported protocol revisions, oldest first.
const (
	Rev20241105 = "2024-11-05"
	Rev20250326 = "2025-03-26"
	Rev20250618 = "2025-06-18"
)

// ErrUnsupportedRevision is returned by For and Negotiate when the version
// string names no known revision.
var ErrUnsupportedRevision = errors.New("adapter: unsupported protocol revision")

// Adapter is the revision-specific view of the protocol. Implementations
// are stateless and safe for concurrent use.
type Adapter interface {
	// Version returns the revision string this adapter implements.
	Version() string

	// BuildInitializeParams assembles the initialize request payload,
	// offering this adapter's revision.
	BuildInitializeParams(info protocol.ClientInfo) protocol.InitializeParams

	// ValidateInitializeResult checks the raw initialize result against
	// this revision's requirements. All violations are joined into the
	// returned error; nil means the payload is acceptable.
	ValidateInitializeResult(raw jsontext.Value) error

	// ValidateToolDescriptor checks one raw tool descriptor. Fields a
	// revision does not define (annotations before 2025-03-26, output
	// schemas before 2025-06-18) are violations, not extensions.
	ValidateToolDescriptor(raw jsontext.Value) error

	// ShapeToolDescriptor returns a copy of t with the fields this
	// revision does not define cleared. The reference server runs every
	// descriptor through this before serving it, so a session negotiated
	// to an older revision never sees newer fields.
	ShapeToolDescriptor(t protocol.Tool) protocol.Tool

	// SupportsAsyncTools reports whether the async tool extension
	// (tools/call-async, tools/result, tools/cancel) exists in this
	// revision.
	SupportsAsyncTools() bool

	// SupportsBatch reports whether JSON-RPC batch arrays are permitted.
	// The newest revision rejects them outright.
	SupportsBatch() bool

	// RequiresVersionHeader reports whether every post-initialization
	// HTTP request must carry the negotiated-version header.
	RequiresVersionHeader() bool

	// AcceptsInitialized reports whether method is a valid spelling of
	// the initialized notification under this revision.
	AcceptsInitialized(method string) bool
}

// Revisions returns all supported revision strings, oldest first.
func Revisions() []string {
	return []string{Rev20241105, Rev20250326, Rev20250618}
}

// Supported reports whether version names a known revision.
func Supported(version string) bool {
	switch version {
	case Rev20241105, Rev20250326, Rev20250618:
		return true
	}
	return false
}

// Latest returns the newest supported revision.
func Latest() string { return Rev20250618 }

// For returns the adapter for a revision string.
func For(version string) (Adapter, error) {
	switch version {
	case Rev20241105:
		return rev20241105, nil
	case Rev20250326:
		return rev20250326, nil
	case Rev20250618:
		return rev20250618, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedRevision, version)
}

// Negotiate runs the client side of version negotiation. The peer either
// echoed the offered version (accept), answered with a different version
// it supports (downgrade — returned so the caller can re-select its
// adapter), or answered something this harness cannot speak, which is an
// error: the caller must disconnect rather than continue on a version
// mismatch.
func Negotiate(offered, answered string) (string, error) {
	if answered == offered {
		return offered, nil
	}
	if Supported(answered) {
		return answered, nil
	}
	return "", fmt.Errorf("%w: peer answered %q to offer %q", ErrUnsupportedRevision, answered, offered)
}

// ValidationError reports one version-specific expectation a structurally
// valid payload failed to meet. Field names the offending location.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
