package protocol

import (
	"bytes"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
)

// Null is the raw JSON null literal, used as the response id when a
// request's own id could not be recovered.
var Null = jsontext.Value("null")

// Request is an outgoing JSON-RPC request.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// Notification is an outgoing JSON-RPC notification. It deliberately has
// no ID field: a notification with an id is a different kind of frame.
type Notification struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// Response is an incoming or outgoing JSON-RPC response. Exactly one of
// Result and Error is set on a well-formed frame.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	Result  jsontext.Value `json:"result,omitzero"`
	Error   *Error         `json:"error,omitzero"`
}

// NewRequest builds a request with the given id. The id and params are
// marshaled immediately so a later mutation of params cannot change the
// frame. A nil params leaves the field off the wire.
func NewRequest(id any, method string, params any) (*Request, error) {
	rawID, err := jsonutil.Marshal(id)
	if err != nil {
		return nil, err
	}
	req := &Request{
		JSONRPC: JSONRPCVersion,
		ID:      rawID,
		Method:  method,
	}
	if params != nil {
		raw, err := jsonutil.Marshal(params)
		if err != nil {
			return nil, err
		}
		req.Params = raw
	}
	return req, nil
}

// NewNotification builds a notification frame.
func NewNotification(method string, params any) (*Notification, error) {
	n := &Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		raw, err := jsonutil.Marshal(params)
		if err != nil {
			return nil, err
		}
		n.Params = raw
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Incoming frame classification
// ---------------------------------------------------------------------------

// Kind classifies a decoded frame.
type Kind int

const (
	KindInvalid Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Message is the generic envelope for frames read off the wire. A peer
// under test may send anything; Message holds whatever arrived and Kind
// sorts out what it was.
type Message struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
	Method  string         `json:"method,omitzero"`
	Params  jsontext.Value `json:"params,omitzero"`
	Result  jsontext.Value `json:"result,omitzero"`
	Error   *Error         `json:"error,omitzero"`
}

// HasID reports whether the frame carries a non-null id.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && !bytes.Equal(jsonutil.Compact(m.ID), Null)
}

// Kind classifies the frame. A method with an id is a request, a method
// without one is a notification, and an id-bearing frame with a result or
// error member is a response. Anything else is invalid.
func (m *Message) Kind() Kind {
	switch {
	case m.Method != "" && m.HasID():
		return KindRequest
	case m.Method != "":
		return KindNotification
	case len(m.Result) > 0 || m.Error != nil:
		return KindResponse
	default:
		return KindInvalid
	}
}

// IDKey returns a canonical map key for the frame's id, so "1" and " 1 "
// correlate. Returns "" when there is no usable id.
func (m *Message) IDKey() string {
	if !m.HasID() {
		return ""
	}
	return IDKey(m.ID)
}

// IDKey canonicalizes a raw id for use as a correlation key.
func IDKey(raw jsontext.Value) string {
	return string(jsonutil.Compact(raw))
}

// IsBatch reports whether a raw frame is a JSON array, i.e. a batch. Only
// leading JSON whitespace is skipped; a frame of nothing but whitespace is
// not a batch.
func IsBatch(frame []byte) bool {
	for _, b := range frame {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '['
		}
	}
	return false
}
