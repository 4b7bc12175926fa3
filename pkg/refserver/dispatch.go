package refserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/internal/hexutil"
	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/asyncop"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/session"
	"github.com/mcpconform/mcpconform/pkg/tools"
)

// internalErrorFrame is the response of last resort, used when even the
// error response failed to encode.
var internalErrorFrame = []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)

// HandleFrame processes one inbound frame for the given session (nil
// before initialize). It returns the bytes to send back — nil when the
// frame needs no response — and the session created if the frame carried
// an initialize request.
func (s *Server) HandleFrame(ctx context.Context, sess *session.Session, raw []byte) ([]byte, *session.Session) {
	if protocol.IsBatch(raw) {
		return s.handleBatch(ctx, sess, raw)
	}

	var msg protocol.Message
	if err := jsonutil.Unmarshal(raw, &msg); err != nil {
		if s.cfg.Verbose {
			log.Printf("[refserver] PARSE ERROR  frame=%s", hexutil.Preview(raw, 120))
		}
		return encodeResponse(errResponse(protocol.Null, protocol.CodeParseError, "parse error")), nil
	}

	resp, created := s.dispatch(ctx, sess, &msg)
	if resp == nil {
		return nil, created
	}
	return encodeResponse(resp), created
}

// handleBatch applies the revision's batch policy, then dispatches each
// element in order. Notification-only batches produce no body.
func (s *Server) handleBatch(ctx context.Context, sess *session.Session, raw []byte) ([]byte, *session.Session) {
	rev := s.adapterForSession(sess)
	if !rev.SupportsBatch() {
		msg := fmt.Sprintf("batch requests are not supported on revision %s", rev.Version())
		return encodeResponse(errResponse(protocol.Null, protocol.CodeInvalidRequest, msg)), nil
	}

	var elements []jsontext.Value
	if err := jsonutil.Unmarshal(raw, &elements); err != nil {
		return encodeResponse(errResponse(protocol.Null, protocol.CodeParseError, "parse error")), nil
	}
	if len(elements) == 0 {
		return encodeResponse(errResponse(protocol.Null, protocol.CodeInvalidRequest, "empty batch")), nil
	}

	var created *session.Session
	responses := make([]*protocol.Response, 0, len(elements))
	for _, element := range elements {
		var msg protocol.Message
		if err := jsonutil.Unmarshal(element, &msg); err != nil {
			responses = append(responses, errResponse(protocol.Null, protocol.CodeInvalidRequest, "invalid frame in batch"))
			continue
		}
		resp, ns := s.dispatch(ctx, sess, &msg)
		if ns != nil {
			// An initialize inside the batch: later elements run on
			// the session it created.
			created = ns
			sess = ns
		}
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		return nil, created
	}
	payload, err := jsonutil.Marshal(responses)
	if err != nil {
		return internalErrorFrame, created
	}
	return payload, created
}

// dispatch classifies one frame and routes it.
func (s *Server) dispatch(ctx context.Context, sess *session.Session, msg *protocol.Message) (*protocol.Response, *session.Session) {
	if sess != nil {
		sess.Touch()
	}
	if msg.JSONRPC != protocol.JSONRPCVersion {
		return errResponse(idOrNull(msg), protocol.CodeInvalidRequest, `jsonrpc must be "2.0"`), nil
	}

	switch msg.Kind() {
	case protocol.KindRequest:
		return s.handleRequest(ctx, sess, msg)
	case protocol.KindNotification:
		s.handleNotification(sess, msg)
		return nil, nil
	case protocol.KindResponse:
		// The server initiates no requests, so a client response has
		// nothing to correlate with.
		if s.cfg.Verbose {
			log.Printf("[refserver] dropped uncorrelated response id=%s", msg.IDKey())
		}
		return nil, nil
	default:
		return errResponse(idOrNull(msg), protocol.CodeInvalidRequest, "frame is neither a request nor a notification"), nil
	}
}

// handleRequest times and routes one request.
func (s *Server) handleRequest(ctx context.Context, sess *session.Session, msg *protocol.Message) (*protocol.Response, *session.Session) {
	start := time.Now()
	resp, created := s.routeRequest(ctx, sess, msg)

	status := "ok"
	if resp != nil && resp.Error != nil {
		status = "error"
	}
	s.metrics.observeRequest(msg.Method, status, time.Since(start))
	if s.cfg.Verbose {
		log.Printf("[refserver] REQUEST  method=%s  status=%s  elapsed=%s", msg.Method, status, time.Since(start).Round(time.Microsecond))
	}
	return resp, created
}

func (s *Server) routeRequest(ctx context.Context, sess *session.Session, msg *protocol.Message) (*protocol.Response, *session.Session) {
	switch msg.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(sess, msg)
	case protocol.MethodPing:
		// Ping is answerable at any point in the lifecycle.
		return resultResponse(msg.ID, struct{}{}), nil
	}

	if sess == nil {
		return errResponse(msg.ID, protocol.CodeInvalidRequest, "server not initialized: send initialize first"), nil
	}
	if !sess.Initialized() {
		return errResponse(msg.ID, protocol.CodeInvalidRequest, "handshake incomplete: notifications/initialized not received"), nil
	}

	rev := s.adapterForSession(sess)
	switch msg.Method {
	case protocol.MethodToolsList:
		return s.handleToolsList(rev, msg), nil
	case protocol.MethodToolsCall:
		return s.handleToolsCall(ctx, msg), nil
	case protocol.MethodToolsCallAsync:
		if !rev.SupportsAsyncTools() {
			break
		}
		return s.handleToolsCallAsync(msg), nil
	case protocol.MethodToolsResult:
		if !rev.SupportsAsyncTools() {
			break
		}
		return s.handleToolsResult(msg), nil
	case protocol.MethodToolsCancel:
		if !rev.SupportsAsyncTools() {
			break
		}
		return s.handleToolsCancel(msg), nil
	case protocol.MethodResourcesList:
		return s.handleResourcesList(msg), nil
	case protocol.MethodResourcesRead:
		return s.handleResourcesRead(msg), nil
	case protocol.MethodPromptsList:
		return s.handlePromptsList(msg), nil
	case protocol.MethodPromptsGet:
		return s.handlePromptsGet(msg), nil
	}
	return errResponse(msg.ID, protocol.CodeMethodNotFound, fmt.Sprintf("method not found: %q", msg.Method)), nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (s *Server) handleInitialize(sess *session.Session, msg *protocol.Message) (*protocol.Response, *session.Session) {
	if sess != nil {
		return errResponse(msg.ID, protocol.CodeInvalidRequest, "session already initialized"), nil
	}

	var params protocol.InitializeParams
	if len(msg.Params) > 0 {
		if err := jsonutil.Unmarshal(msg.Params, &params); err != nil {
			return errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("invalid initialize params: %v", err)), nil
		}
	}

	// Echo a supported offer; counter any other with the newest revision
	// this server speaks. The client walks away if that is unacceptable.
	negotiated := params.ProtocolVersion
	if !adapter.Supported(negotiated) {
		negotiated = adapter.Latest()
	}
	rev, err := adapter.For(negotiated)
	if err != nil {
		return errResponse(msg.ID, protocol.CodeInternalError, "negotiation failed"), nil
	}

	created, err := s.sessions.Create(negotiated)
	if err != nil {
		if errors.Is(err, session.ErrLimit) {
			return errResponse(msg.ID, protocol.CodeInternalError, "session capacity reached"), nil
		}
		return errResponse(msg.ID, protocol.CodeInternalError, "session create failed"), nil
	}

	log.Printf("[refserver] INITIALIZE  offered=%q  negotiated=%s  session=%s  client=%s",
		params.ProtocolVersion, negotiated, created.ID(), params.ClientInfo.Name)

	result := protocol.InitializeResult{
		ProtocolVersion: negotiated,
		Capabilities:    s.capabilities(rev),
		ServerInfo:      s.serverInfo(),
		Instructions:    s.cfg.Instructions,
	}
	return resultResponse(msg.ID, result), created
}

func (s *Server) handleNotification(sess *session.Session, msg *protocol.Message) {
	rev := s.adapterForSession(sess)
	switch {
	case rev.AcceptsInitialized(msg.Method):
		if sess != nil {
			sess.MarkInitialized()
		}
	case msg.Method == protocol.NotifCancelled:
		// Cancellation of synchronous requests rides on the request
		// context; the notification itself needs no action.
		if s.cfg.Verbose {
			log.Printf("[refserver] cancelled notification  params=%s", hexutil.Preview(msg.Params, 120))
		}
	default:
		if s.cfg.Verbose {
			log.Printf("[refserver] ignored notification  method=%s", msg.Method)
		}
	}
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

func (s *Server) handleToolsList(rev adapter.Adapter, msg *protocol.Message) *protocol.Response {
	var params protocol.ListToolsParams
	if len(msg.Params) > 0 {
		if err := jsonutil.Unmarshal(msg.Params, &params); err != nil {
			return errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}

	all := s.registry.List()
	start := 0
	if params.Cursor != "" {
		offset, err := decodeCursor(params.Cursor)
		if err != nil || offset < 0 || offset > len(all) {
			return errResponse(msg.ID, protocol.CodeInvalidParams, "invalid cursor")
		}
		start = offset
	}

	end := len(all)
	next := ""
	if s.cfg.PageSize > 0 && start+s.cfg.PageSize < len(all) {
		end = start + s.cfg.PageSize
		next = encodeCursor(end)
	}

	shaped := make([]protocol.Tool, 0, end-start)
	for _, t := range all[start:end] {
		shaped = append(shaped, rev.ShapeToolDescriptor(t))
	}
	return resultResponse(msg.ID, protocol.ListToolsResult{Tools: shaped, NextCursor: next})
}

func (s *Server) handleToolsCall(ctx context.Context, msg *protocol.Message) *protocol.Response {
	name, tool, errResp := s.lookupTool(msg)
	if errResp != nil {
		return errResp
	}

	var params protocol.CallToolParams
	_ = jsonutil.Unmarshal(msg.Params, &params)

	start := time.Now()
	res, perr := tool.Handler(ctx, params.Arguments)
	if perr != nil {
		s.metrics.observeToolCall(name, "error", time.Since(start))
		return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: msg.ID, Error: perr}
	}
	if res == nil {
		s.metrics.observeToolCall(name, "error", time.Since(start))
		return errResponse(msg.ID, protocol.CodeInternalError, "tool returned no result")
	}
	status := "ok"
	if res.IsError {
		status = "tool_error"
	}
	s.metrics.observeToolCall(name, status, time.Since(start))
	return resultResponse(msg.ID, res)
}

func (s *Server) handleToolsCallAsync(msg *protocol.Message) *protocol.Response {
	name, tool, errResp := s.lookupTool(msg)
	if errResp != nil {
		return errResp
	}

	var params protocol.CallToolParams
	_ = jsonutil.Unmarshal(msg.Params, &params)
	args := params.Arguments

	// The operation's lifetime is independent of this request: the
	// tracker parents it on the background context and bounds it with
	// its own ceiling.
	op, err := s.tracker.Launch(context.Background(), name, func(opCtx context.Context) (jsontext.Value, *protocol.Error) {
		res, perr := tool.Handler(opCtx, args)
		if perr != nil {
			return nil, perr
		}
		raw, merr := jsonutil.Marshal(res)
		if merr != nil {
			return nil, protocol.NewError(protocol.CodeInternalError, "encode tool result")
		}
		return jsontext.Value(raw), nil
	})
	if err != nil {
		if errors.Is(err, asyncop.ErrTooManyActive) {
			return errResponse(msg.ID, protocol.CodeInternalError, "too many active operations")
		}
		return errResponse(msg.ID, protocol.CodeInternalError, "operation submit failed")
	}

	snap := op.Snapshot()
	return resultResponse(msg.ID, protocol.AsyncCallResult{
		OperationID: snap.ID,
		Status:      string(snap.Status),
	})
}

func (s *Server) handleToolsResult(msg *protocol.Message) *protocol.Response {
	op, errResp := s.lookupOperation(msg)
	if errResp != nil {
		return errResp
	}
	return resultResponse(msg.ID, operationWireStatus(op.Snapshot()))
}

func (s *Server) handleToolsCancel(msg *protocol.Message) *protocol.Response {
	op, errResp := s.lookupOperation(msg)
	if errResp != nil {
		return errResp
	}

	// Cancelling a terminal operation is an idempotent no-op: the
	// response simply reports the state that already won.
	accepted := op.Cancel()
	snap := op.Snapshot()
	log.Printf("[refserver] CANCEL  op=%s  accepted=%t  status=%s", snap.ID, accepted, snap.Status)
	return resultResponse(msg.ID, operationWireStatus(snap))
}

// lookupTool decodes the common {name, arguments} params shape and
// resolves the named tool.
func (s *Server) lookupTool(msg *protocol.Message) (string, *tools.Tool, *protocol.Response) {
	var params protocol.CallToolParams
	if len(msg.Params) > 0 {
		if err := jsonutil.Unmarshal(msg.Params, &params); err != nil {
			return "", nil, errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.Name == "" {
		return "", nil, errResponse(msg.ID, protocol.CodeInvalidParams, "tool name required")
	}
	tool, ok := s.registry.Get(params.Name)
	if !ok {
		return "", nil, errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("unknown tool: %q", params.Name))
	}
	return params.Name, tool, nil
}

func (s *Server) lookupOperation(msg *protocol.Message) (*asyncop.Operation, *protocol.Response) {
	var params protocol.OperationParams
	if len(msg.Params) > 0 {
		if err := jsonutil.Unmarshal(msg.Params, &params); err != nil {
			return nil, errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.OperationID == "" {
		return nil, errResponse(msg.ID, protocol.CodeInvalidParams, "operationId required")
	}
	op, err := s.tracker.Get(params.OperationID)
	if err != nil {
		return nil, errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("unknown operation: %q", params.OperationID))
	}
	return op, nil
}

// operationWire is the tools/result and tools/cancel payload. Result
// stays raw: it was marshaled once at completion and is served verbatim.
type operationWire struct {
	OperationID string          `json:"operationId"`
	Status      asyncop.Status  `json:"status"`
	Result      jsontext.Value  `json:"result,omitzero"`
	Error       *protocol.Error `json:"error,omitzero"`
}

func operationWireStatus(snap asyncop.Snapshot) operationWire {
	return operationWire{
		OperationID: snap.ID,
		Status:      snap.Status,
		Result:      snap.Result,
		Error:       snap.Error,
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Server) adapterForSession(sess *session.Session) adapter.Adapter {
	version := adapter.Latest()
	if sess != nil {
		version = sess.Revision()
	}
	rev, err := adapter.For(version)
	if err != nil {
		rev, _ = adapter.For(adapter.Latest())
	}
	return rev
}

func resultResponse(id jsontext.Value, v any) *protocol.Response {
	raw, err := jsonutil.Marshal(v)
	if err != nil {
		return errResponse(id, protocol.CodeInternalError, "encode result")
	}
	return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: id, Result: jsontext.Value(raw)}
}

func errResponse(id jsontext.Value, code int, message string) *protocol.Response {
	if len(id) == 0 {
		id = protocol.Null
	}
	return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: id, Error: protocol.NewError(code, message)}
}

func encodeResponse(resp *protocol.Response) []byte {
	payload, err := jsonutil.Marshal(resp)
	if err != nil {
		return internalErrorFrame
	}
	return payload
}

func idOrNull(msg *protocol.Message) jsontext.Value {
	if msg.HasID() {
		return msg.ID
	}
	return protocol.Null
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(raw))
}
