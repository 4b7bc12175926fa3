package protocol

import (
	"fmt"

	"github.com/go-json-experiment/json/jsontext"
)

// Error codes defined by JSON-RPC 2.0, plus the MCP-assigned codes the
// reference server uses.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeResourceNotFound is assigned by MCP for resources/read misses.
	CodeResourceNotFound = -32002
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    jsontext.Value `json:"data,omitzero"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates a JSON-RPC error object.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// InReservedRange reports whether code falls in the range JSON-RPC reserves
// for protocol-defined errors (-32768..-32000). Peers are free to use codes
// outside it for application errors.
func (e *Error) InReservedRange() bool {
	return e.Code >= -32768 && e.Code <= -32000
}
