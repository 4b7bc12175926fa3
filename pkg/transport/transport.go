// Package transport moves JSON-RPC frames between the harness and the peer
// under test. Two implementations exist: Stdio spawns the peer as a
// subprocess and speaks line-delimited JSON over its pipes; HTTP posts to a
// single endpoint and optionally holds a server-sent-event stream open for
// pushed messages.
//
// Transports are deliberately dumb about the protocol: they frame, route by
// id, and surface exactly what the peer sent. What a frame MEANS for a
// given revision is the adapter's business, and what it means for
// compliance is the suite's.
package transport

import (
	"context"
	"errors"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// Sentinel errors shared by both transports.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("transport: closed")

	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("transport: already initialized")

	// ErrWantRequest is returned by Send when the frame has no id; use
	// Notify for notifications.
	ErrWantRequest = errors.New("transport: request frame requires an id")
)

// RawResult is the peer's answer to a raw probe.
type RawResult struct {
	// Status is the HTTP status code; 0 on stdio.
	Status int

	// Body is the raw response payload, possibly empty. For probes that
	// put a batch on the wire this may be a JSON array.
	Body []byte
}

// Transport is one live channel to the peer under test. Implementations
// are safe for concurrent use, though the conformance runner drives them
// sequentially.
type Transport interface {
	// Initialize sends the initialize request and waits for its result,
	// which is returned raw for revision-specific validation. It does not
	// send the initialized notification: negotiation sits between the two
	// handshake halves, and the caller may need to disconnect instead.
	// The peer-assigned session id, if any, is available from SessionID
	// afterwards.
	Initialize(ctx context.Context, params protocol.InitializeParams) (jsontext.Value, error)

	// Send transmits one request and blocks until the matching response
	// arrives, the context expires (*TimeoutError), or the channel dies
	// (*TransportError).
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

	// Notify transmits a notification. No response is awaited.
	Notify(ctx context.Context, n *protocol.Notification) error

	// SendRaw puts a preassembled frame on the wire and returns whatever
	// came back. It exists for probes that need something no well-formed
	// client would send: a batch array, a frame with a null id, garbage.
	SendRaw(ctx context.Context, frame []byte) (*RawResult, error)

	// SetProtocolVersion makes the transport stamp every subsequent
	// request with the negotiated revision, for transports that carry it
	// out-of-band (the HTTP version header). Callers invoke it only when
	// the active revision requires the header.
	SetProtocolVersion(version string)

	// SessionID returns the peer-assigned session id, or "" when the
	// transport has none (stdio) or the handshake has not happened yet.
	SessionID() string

	// Stderr returns the tail of the peer's diagnostic stream, oldest
	// first. Empty for transports without one.
	Stderr() []string

	// Close tears the channel down. Idempotent; never blocks forever.
	Close() error
}
