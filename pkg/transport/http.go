package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/internal/hexutil"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/httpclient"
	"github.com/mcpconform/mcpconform/pkg/iohelper"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// ErrPushUnsupported reports that the peer rejected the push-channel GET.
// Suites treat this as an optional capability, not a failure.
var ErrPushUnsupported = errors.New("transport: push stream not supported")

// HTTPConfig configures a streamable HTTP transport.
type HTTPConfig struct {
	// Endpoint is the single MCP endpoint URL.
	Endpoint string

	// Headers are extra headers stamped on every request.
	Headers map[string]string

	// AuthHeaders carry credentials; they are stripped on cross-origin
	// redirects by the underlying client.
	AuthHeaders http.Header

	// SessionViaQuery mirrors the session id into the session_id query
	// parameter in addition to the header.
	SessionViaQuery bool

	// Insecure skips TLS verification for self-signed targets.
	Insecure bool

	// Verbose logs every exchange.
	Verbose bool
}

// HTTP talks to a peer over a single POST endpoint. Responses arrive
// either as plain JSON or as an inline text/event-stream; an optional
// GET stream carries peer-initiated traffic.
type HTTP struct {
	cfg      HTTPConfig
	endpoint *url.URL
	client   *http.Client
	seq      atomic.Int64

	mu              sync.Mutex
	sessionID       string
	protocolVersion string
	initialized     bool
	closed          bool

	// pending maps in-flight request ids to the Send call waiting for
	// them, so responses the peer defers to the push channel find their
	// way back.
	pending map[string]chan *protocol.Response

	push *pushStream
}

// NewHTTP creates an HTTP transport for the given endpoint.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("http: endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http: endpoint %q: scheme must be http or https", cfg.Endpoint)
	}

	clientCfg := httpclient.DefaultConfig()
	// Per-request contexts carry the real deadlines; the client-wide
	// timeout only backstops inline streams left open by a stuck peer.
	clientCfg.Timeout = duration.ContextMax
	clientCfg.InsecureSkipVerify = cfg.Insecure
	clientCfg.AuthHeaders = cfg.AuthHeaders

	return &HTTP{
		cfg:      cfg,
		endpoint: u,
		client:   httpclient.New(clientCfg),
		pending:  make(map[string]chan *protocol.Response),
	}, nil
}

// NextID returns a fresh request id unique within this transport.
func (h *HTTP) NextID() int64 { return h.seq.Add(1) }

// SessionID returns the session identifier the peer assigned, "" before
// the handshake or for peers that never assign one.
func (h *HTTP) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// SetProtocolVersion makes every subsequent request carry the
// MCP-Protocol-Version header. Callers invoke this after negotiation,
// and only for revisions that demand the header.
func (h *HTTP) SetProtocolVersion(v string) {
	h.mu.Lock()
	h.protocolVersion = v
	h.mu.Unlock()
}

// Stderr returns nil: an HTTP peer has no diagnostic stream we can see.
func (h *HTTP) Stderr() []string { return nil }

// Initialize sends the initialize request and returns the raw result.
// The session id, when the peer assigns one, is captured from the
// response headers before this returns.
func (h *HTTP) Initialize(ctx context.Context, params protocol.InitializeParams) (jsontext.Value, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.initialized {
		h.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	h.mu.Unlock()

	req, err := protocol.NewRequest(h.NextID(), protocol.MethodInitialize, params)
	if err != nil {
		return nil, fmt.Errorf("http: build initialize: %w", err)
	}
	resp, err := h.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	h.mu.Lock()
	h.initialized = true
	h.mu.Unlock()
	return resp.Result, nil
}

// Send transmits req and blocks until the matching response. Peers
// answer inline (plain JSON or an inline event stream), or acknowledge
// with 202 and deliver the response on the push channel; both paths
// resolve here.
func (h *HTTP) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if len(req.ID) == 0 {
		return nil, ErrWantRequest
	}
	frame, err := jsonutil.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("http: marshal request: %w", err)
	}

	// Claim the id before the frame goes out: a fast peer can push the
	// response before the POST even returns.
	idKey := protocol.IDKey(req.ID)
	ch := h.claimPending(idKey)
	defer h.releasePending(idKey)

	start := time.Now()
	resp, err := h.post(ctx, req.Method, frame, req.ID)
	if err != nil {
		return nil, h.mapCtxErr(req.Method, start, err)
	}
	if resp != nil {
		return resp, nil
	}
	return h.awaitPushed(ctx, req.Method, start, ch)
}

// awaitPushed parks until the push channel delivers the response a 202
// acknowledgement deferred.
func (h *HTTP) awaitPushed(ctx context.Context, op string, start time.Time, ch <-chan *protocol.Response) (*protocol.Response, error) {
	h.mu.Lock()
	push := h.push
	h.mu.Unlock()
	if push == nil {
		return nil, h.fatal(op, errors.New("peer deferred the response but no push stream is open"))
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-push.done:
		return nil, h.fatal(op, errors.New("push stream closed before the response arrived"))
	case <-ctx.Done():
		return nil, h.mapCtxErr(op, start, ctx.Err())
	}
}

func (h *HTTP) claimPending(idKey string) chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	h.mu.Lock()
	h.pending[idKey] = ch
	h.mu.Unlock()
	return ch
}

func (h *HTTP) releasePending(idKey string) {
	h.mu.Lock()
	delete(h.pending, idKey)
	h.mu.Unlock()
}

// resolvePending hands a streamed response to the Send call waiting on
// its id. Reports whether anything was waiting.
func (h *HTTP) resolvePending(msg *protocol.Message) bool {
	if msg.Kind() != protocol.KindResponse || !msg.HasID() {
		return false
	}
	idKey := msg.IDKey()
	h.mu.Lock()
	ch, ok := h.pending[idKey]
	if ok {
		delete(h.pending, idKey)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	ch <- &protocol.Response{
		JSONRPC: msg.JSONRPC,
		ID:      msg.ID,
		Result:  msg.Result,
		Error:   msg.Error,
	}
	return true
}

// Notify transmits a notification. Peers answer those with 202 or an
// empty 200; both count as delivered.
func (h *HTTP) Notify(ctx context.Context, n *protocol.Notification) error {
	frame, err := jsonutil.Marshal(n)
	if err != nil {
		return fmt.Errorf("http: marshal notification: %w", err)
	}
	start := time.Now()
	_, err = h.post(ctx, n.Method, frame, nil)
	return h.mapCtxErr(n.Method, start, err)
}

// SendRaw posts frame verbatim and reports the HTTP status and body
// without interpreting either. Probes use it to watch how the peer
// treats malformed frames, batches, and missing headers.
func (h *HTTP) SendRaw(ctx context.Context, frame []byte) (*RawResult, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.mu.Unlock()

	httpReq, err := h.newRequest(ctx, http.MethodPost, bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, h.mapCtxErr("raw probe", start, h.fatal("raw probe", httpclient.Classify(err)))
	}
	defer iohelper.DrainAndClose(httpResp.Body)

	h.captureSession(httpResp)
	body, err := iohelper.ReadBody(httpResp.Body, iohelper.LargeMaxBodySize)
	if err != nil {
		return nil, h.mapCtxErr("raw probe", start, h.fatal("raw probe", fmt.Errorf("read body: %w", err)))
	}
	if h.cfg.Verbose {
		log.Printf("[http] raw probe status=%d body=%s", httpResp.StatusCode, hexutil.Preview(body, 256))
	}
	return &RawResult{Status: httpResp.StatusCode, Body: body}, nil
}

// EndSession issues the DELETE that asks the peer to discard the current
// session. The raw status is returned for inspection; 405 is a legal
// answer from peers that do not support client-initiated teardown.
func (h *HTTP) EndSession(ctx context.Context) (*RawResult, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	session := h.sessionID
	h.mu.Unlock()
	if session == "" {
		return nil, fmt.Errorf("http: no session to end")
	}

	req, err := h.newRequest(ctx, http.MethodDelete, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	httpResp, err := h.client.Do(req)
	if err != nil {
		return nil, h.mapCtxErr("session delete", start, h.fatal("session delete", httpclient.Classify(err)))
	}
	defer iohelper.DrainAndClose(httpResp.Body)

	body, err := iohelper.ReadBodySmall(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read delete response: %w", err)
	}
	if httpResp.StatusCode < 300 {
		h.mu.Lock()
		h.sessionID = ""
		h.mu.Unlock()
	}
	return &RawResult{Status: httpResp.StatusCode, Body: body}, nil
}

// Close tears down the push stream and releases pooled connections.
func (h *HTTP) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	push := h.push
	h.push = nil
	h.mu.Unlock()

	if push != nil {
		push.close()
	}
	h.client.CloseIdleConnections()
	return nil
}

// ---------------------------------------------------------------------------
// Request plumbing
// ---------------------------------------------------------------------------

// newRequest builds a request with the session, version, and caller
// headers applied.
func (h *HTTP) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	u := *h.endpoint

	h.mu.Lock()
	session := h.sessionID
	version := h.protocolVersion
	h.mu.Unlock()

	if session != "" && h.cfg.SessionViaQuery {
		q := u.Query()
		q.Set(defaults.QuerySessionID, session)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	}
	req.Header.Set("Accept", defaults.AcceptPost)
	if session != "" {
		req.Header.Set(defaults.HeaderSessionID, session)
	}
	if version != "" {
		req.Header.Set(defaults.HeaderProtocolVersion, version)
	}
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// post sends one frame and decodes whatever comes back. wantID selects
// the response to wait for on an inline stream; nil means no response is
// expected and an ack status suffices.
func (h *HTTP) post(ctx context.Context, op string, frame []byte, wantID jsontext.Value) (*protocol.Response, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.mu.Unlock()

	if h.cfg.Verbose {
		log.Printf("[http] -> %s %s", op, hexutil.Preview(frame, 256))
	}

	httpReq, err := h.newRequest(ctx, http.MethodPost, bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, h.fatal(op, httpclient.Classify(err))
	}

	h.captureSession(httpResp)

	if httpResp.StatusCode == http.StatusOK && isEventStream(httpResp) {
		// No draining here: an open event stream has no end to drain
		// to, so the connection is discarded instead of reused.
		defer httpResp.Body.Close()
		if wantID == nil {
			return nil, nil
		}
		return h.readInlineStream(httpResp.Body, op, wantID)
	}
	defer iohelper.DrainAndClose(httpResp.Body)

	switch {
	case httpResp.StatusCode == http.StatusAccepted:
		return nil, nil

	case httpResp.StatusCode == http.StatusOK:
		body, err := iohelper.ReadBody(httpResp.Body, iohelper.LargeMaxBodySize)
		if err != nil {
			return nil, h.fatal(op, fmt.Errorf("read body: %w", err))
		}
		if wantID == nil && len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		return decodeResponse(body, op)

	default:
		body, _ := iohelper.ReadBodySmall(httpResp.Body)
		// Some peers wrap protocol errors in HTTP error statuses; a
		// parseable JSON-RPC body still reaches the caller.
		if resp, err := decodeResponse(body, op); err == nil {
			return resp, nil
		}
		return nil, h.fatal(op, fmt.Errorf("status %d: %s", httpResp.StatusCode, hexutil.Preview(body, 256)))
	}
}

// readInlineStream consumes a text/event-stream response until the event
// carrying the response for wantID arrives. Interleaved responses for
// other outstanding requests are correlated; anything else is logged
// and dropped.
func (h *HTTP) readInlineStream(body io.Reader, op string, wantID jsontext.Value) (*protocol.Response, error) {
	want := protocol.IDKey(wantID)
	scanner := NewEventScanner(body)
	for {
		ev, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			return nil, h.fatal(op, errors.New("stream ended before the response arrived"))
		}
		if err != nil {
			return nil, h.fatal(op, fmt.Errorf("read stream: %w", err))
		}
		if len(ev.Data) == 0 {
			continue
		}

		var msg protocol.Message
		if err := jsonutil.Unmarshal(ev.Data, &msg); err != nil {
			log.Printf("[http] unparseable stream event: %s", hexutil.Preview(ev.Data, 256))
			continue
		}
		if msg.Kind() == protocol.KindResponse && msg.IDKey() == want {
			return &protocol.Response{
				JSONRPC: msg.JSONRPC,
				ID:      msg.ID,
				Result:  msg.Result,
				Error:   msg.Error,
			}, nil
		}
		// An interleaved response for a different outstanding request
		// still correlates; other traffic is logged and dropped.
		if h.resolvePending(&msg) {
			continue
		}
		if h.cfg.Verbose {
			log.Printf("[http] interleaved stream message method=%q", msg.Method)
		}
	}
}

// captureSession records the session id whenever the peer sends one.
// Header lookup is case-insensitive by construction.
func (h *HTTP) captureSession(resp *http.Response) {
	id := resp.Header.Get(defaults.HeaderSessionID)
	if id == "" {
		return
	}
	h.mu.Lock()
	if h.sessionID != id {
		h.sessionID = id
		if h.cfg.Verbose {
			log.Printf("[http] session assigned: %s", id)
		}
	}
	h.mu.Unlock()
}

// mapCtxErr converts a deadline blown inside the HTTP client into the
// timeout type suites score on.
func (h *HTTP) mapCtxErr(op string, start time.Time, err error) error {
	if err == nil {
		return nil
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Elapsed: time.Since(start), Err: context.DeadlineExceeded}
	}
	return err
}

func (h *HTTP) fatal(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func decodeResponse(body []byte, op string) (*protocol.Response, error) {
	var resp protocol.Response
	if err := jsonutil.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("unparseable response: %s", hexutil.Preview(body, 256))}
	}
	if resp.Result == nil && resp.Error == nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("frame is not a response: %s", hexutil.Preview(body, 256))}
	}
	return &resp, nil
}

func isEventStream(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.HasPrefix(ct, defaults.ContentTypeSSE)
	}
	return mt == defaults.ContentTypeSSE
}

// ---------------------------------------------------------------------------
// Push channel
// ---------------------------------------------------------------------------

// pushStream is the long-lived GET stream carrying peer-initiated
// messages.
type pushStream struct {
	cancel   context.CancelFunc
	body     io.Closer
	messages chan *protocol.Message
	done     chan struct{}
}

func (p *pushStream) close() {
	p.cancel()
	_ = p.body.Close()
	<-p.done
}

// OpenPushStream starts the GET stream. Messages arrive on the returned
// channel until the stream or the transport closes. Peers are free to
// not offer one; that surfaces as ErrPushUnsupported.
func (h *HTTP) OpenPushStream(ctx context.Context) (<-chan *protocol.Message, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.push != nil {
		h.mu.Unlock()
		return nil, errors.New("http: push stream already open")
	}
	h.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := h.newRequest(streamCtx, http.MethodGet, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", defaults.AcceptStream)

	resp, err := h.client.Do(req)
	if err != nil {
		cancel()
		return nil, h.fatal("push stream", httpclient.Classify(err))
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotFound {
		iohelper.DrainAndClose(resp.Body)
		cancel()
		return nil, fmt.Errorf("%w: status %d", ErrPushUnsupported, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !isEventStream(resp) {
		body, _ := iohelper.ReadBodySmall(resp.Body)
		iohelper.DrainAndClose(resp.Body)
		cancel()
		return nil, h.fatal("push stream", fmt.Errorf("status %d: %s", resp.StatusCode, hexutil.Preview(body, 128)))
	}

	h.captureSession(resp)

	push := &pushStream{
		cancel:   cancel,
		body:     resp.Body,
		messages: make(chan *protocol.Message, defaults.ChannelSmall),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.push = push
	h.mu.Unlock()

	go h.pushLoop(push, resp.Body)
	return push.messages, nil
}

func (h *HTTP) pushLoop(push *pushStream, body io.Reader) {
	defer close(push.done)
	defer close(push.messages)

	scanner := NewEventScanner(body)
	for {
		ev, err := scanner.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && h.cfg.Verbose {
				log.Printf("[http] push stream closed: %v", err)
			}
			return
		}
		if len(ev.Data) == 0 {
			continue
		}
		var msg protocol.Message
		if err := jsonutil.Unmarshal(ev.Data, &msg); err != nil {
			log.Printf("[http] unparseable push event: %s", hexutil.Preview(ev.Data, 256))
			continue
		}
		// Responses to outstanding requests go back to their Send call,
		// not to the stream consumer.
		if h.resolvePending(&msg) {
			continue
		}
		select {
		case push.messages <- &msg:
		default:
			log.Printf("[http] push buffer full, dropping %q", msg.Method)
		}
	}
}

// ---------------------------------------------------------------------------
// Preflight
// ---------------------------------------------------------------------------

// PreflightResult captures the peer's answer to an OPTIONS probe.
type PreflightResult struct {
	Status       int
	AllowMethods string
	AllowHeaders string
}

// Preflight sends an OPTIONS request the way a browser would before a
// cross-origin POST.
func (h *HTTP) Preflight(ctx context.Context) (*PreflightResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, h.endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("http: build preflight: %w", err)
	}
	req.Header.Set("Origin", "http://localhost")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type, "+defaults.HeaderSessionID)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.fatal("preflight", httpclient.Classify(err))
	}
	defer iohelper.DrainAndClose(resp.Body)

	return &PreflightResult{
		Status:       resp.StatusCode,
		AllowMethods: resp.Header.Get("Access-Control-Allow-Methods"),
		AllowHeaders: resp.Header.Get("Access-Control-Allow-Headers"),
	}, nil
}
