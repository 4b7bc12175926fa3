// Package conformance drives the built-in test suites against one live
// peer and records what it sees as scored results. The runner owns the
// handshake and the execution order; individual cases only look at the
// peer through the Env they are handed and report a verdict as an error
// (nil means the requirement held).
//
// Outcome classification at the runner boundary:
//
//	nil                         → passed
//	*transport.TransportError   → errored, run aborts
//	*transport.TimeoutError     → timedOut (aborts for core/critical)
//	*HarnessError / panic       → errored, run continues
//	anything else               → failed, run continues
package conformance

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/time/rate"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/scoring"
	"github.com/mcpconform/mcpconform/pkg/transport"
)

// Transport kinds as they appear in events and reports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Categories group cases by the protocol surface they exercise. Core and
// spec cases are short and cheap; tools and async cases run real work on
// the peer.
const (
	CategoryCore  = "core"
	CategoryTools = "tools"
	CategoryAsync = "async"
	CategorySpec  = "spec"
)

// TagLifecycle marks handshake cases so SkipLifecycle can exclude them
// without excluding the rest of the core category.
const TagLifecycle = "lifecycle"

// TestCase is one conformance check.
type TestCase struct {
	Name     string
	Category string
	Level    scoring.Level
	Tags     []string

	// Timeout bounds the case; 0 uses the category default from Config.
	Timeout time.Duration

	// Critical widens the core abort rule: a timeout here ends the run
	// even when the case sits outside the core category.
	Critical bool

	// Requires gates the case on facts about the target. When it returns
	// false the case is recorded skipped with the given reason and stays
	// out of scoring.
	Requires func(env *Env) (bool, string)

	// Run performs the check. A nil return is a pass; any error is the
	// verdict, classified by the runner.
	Run func(ctx context.Context, env *Env) error
}

// TestResult records how one case ended. Results are append-only: the
// runner never rewrites an outcome once recorded.
type TestResult struct {
	Name       string
	Category   string
	Level      scoring.Level
	Outcome    scoring.Outcome
	Message    string
	DurationMs float64
}

// HarnessError marks a defect in the harness rather than in the peer.
// The runner records it as errored, keeping it out of the pass/fail
// verdict the peer is graded on.
type HarnessError struct {
	Err error
}

func (e *HarnessError) Error() string { return "harness: " + e.Err.Error() }

func (e *HarnessError) Unwrap() error { return e.Err }

// Config controls one conformance run.
type Config struct {
	// Target is the display form of the peer: the endpoint URL, or the
	// command line for a spawned subprocess.
	Target string

	// Kind is TransportStdio or TransportHTTP.
	Kind string

	// ClientInfo identifies the harness in the handshake. Zero uses the
	// tool's own identity.
	ClientInfo protocol.ClientInfo

	// Per-category deadlines. Zero picks the duration package defaults.
	CoreTimeout  time.Duration
	SpecTimeout  time.Duration
	ToolTimeout  time.Duration
	AsyncTimeout time.Duration

	// Skip lists case names excluded from the run.
	Skip []string

	// SkipLifecycle excludes cases tagged lifecycle. The handshake still
	// happens; only its verdicts are dropped.
	SkipLifecycle bool

	// Categories restricts the run to the named categories. Empty runs
	// everything.
	Categories []string

	// Strict makes SHOULD and MAY failures count toward the exit code.
	// MUST failures always do.
	Strict bool

	// ThrottleMs inserts a pacing delay between requests to the peer.
	// 0 runs unthrottled.
	ThrottleMs int
}

// withDefaults fills the zero fields.
func (c Config) withDefaults() Config {
	if c.CoreTimeout <= 0 {
		c.CoreTimeout = duration.TestCore
	}
	if c.SpecTimeout <= 0 {
		c.SpecTimeout = duration.TestSpec
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = duration.TestTool
	}
	if c.AsyncTimeout <= 0 {
		c.AsyncTimeout = duration.TestAsync
	}
	if c.Kind == "" {
		c.Kind = TransportStdio
	}
	return c
}

// Env is the view a running case has of the peer. The runner populates
// the handshake fields once, before any case runs; cases treat them as
// read-only.
type Env struct {
	Transport transport.Transport
	Adapter   adapter.Adapter
	Kind      string
	Target    string

	// Handshake capture.
	RawInit      jsontext.Value
	Init         *protocol.InitializeResult
	Offered      string
	Negotiated   string
	InitErr      error
	NegotiateErr error
	NotifyErr    error

	// Tools is the descriptor snapshot taken right after the handshake,
	// nil when the peer advertises no tools capability or the snapshot
	// failed.
	Tools []protocol.Tool

	limiter  *rate.Limiter
	seq      atomic.Int64
	evidence *events.Evidence
}

// HasTool reports whether the snapshot lists a tool by that name.
func (e *Env) HasTool(name string) bool {
	for _, t := range e.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// NextID returns a request id unique within the run. When the transport
// numbers its own requests the same sequence is used, so raw probes never
// collide with ids the transport already spent.
func (e *Env) NextID() int64 {
	if seq, ok := e.Transport.(interface{ NextID() int64 }); ok {
		return seq.NextID()
	}
	return e.seq.Add(1)
}

// Call sends one request and waits for its response, recording the
// exchange as evidence for the current case.
func (e *Env) Call(ctx context.Context, method string, params any) (*protocol.Response, error) {
	if err := e.pace(ctx); err != nil {
		return nil, err
	}
	req, err := protocol.NewRequest(e.NextID(), method, params)
	if err != nil {
		return nil, &HarnessError{Err: err}
	}
	reqJSON, _ := jsonutil.Marshal(req)

	resp, err := e.Transport.Send(ctx, req)
	if err != nil {
		e.observe(method, string(reqJSON), "")
		return nil, err
	}
	respJSON, _ := jsonutil.Marshal(resp)
	e.observe(method, string(reqJSON), string(respJSON))
	return resp, nil
}

// Notify sends one notification.
func (e *Env) Notify(ctx context.Context, method string, params any) error {
	if err := e.pace(ctx); err != nil {
		return err
	}
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return &HarnessError{Err: err}
	}
	frame, _ := jsonutil.Marshal(n)
	e.observe(method, string(frame), "")
	return e.Transport.Notify(ctx, n)
}

// Raw sends a verbatim frame and reports whatever came back. The label
// names the probe in the recorded evidence.
func (e *Env) Raw(ctx context.Context, label string, frame []byte) (*transport.RawResult, error) {
	if err := e.pace(ctx); err != nil {
		return nil, err
	}
	raw, err := e.Transport.SendRaw(ctx, frame)
	if err != nil {
		e.observe(label, string(frame), "")
		return nil, err
	}
	body := string(raw.Body)
	if raw.Status != 0 {
		body = fmt.Sprintf("HTTP %d: %s", raw.Status, raw.Body)
	}
	e.observe(label, string(frame), body)
	return raw, nil
}

// Detail appends free-form context to the current case's evidence.
func (e *Env) Detail(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if e.evidence == nil {
		e.evidence = &events.Evidence{}
	}
	if e.evidence.Detail != "" {
		e.evidence.Detail += "; "
	}
	e.evidence.Detail += line
}

func (e *Env) pace(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

// observe keeps the latest wire exchange; in a multi-request case the
// last one is usually the decisive one.
func (e *Env) observe(method, request, response string) {
	detail := ""
	if e.evidence != nil {
		detail = e.evidence.Detail
	}
	e.evidence = &events.Evidence{
		Method:   method,
		Request:  request,
		Response: response,
		Detail:   detail,
	}
}

func (e *Env) resetEvidence() { e.evidence = nil }

// takeEvidence hands the recorded exchange to the runner and clears it.
func (e *Env) takeEvidence() *events.Evidence {
	ev := e.evidence
	e.evidence = nil
	return ev
}

// Suite returns every built-in case in execution order: core first, then
// tools, async, and the revision edge-case probes.
func Suite() []TestCase {
	var cases []TestCase
	cases = append(cases, CoreSuite()...)
	cases = append(cases, ToolsSuite()...)
	cases = append(cases, AsyncSuite()...)
	cases = append(cases, SpecSuite()...)
	return cases
}

// Categories lists the built-in category names in execution order.
func Categories() []string {
	return []string{CategoryCore, CategoryTools, CategoryAsync, CategorySpec}
}

// decodeResult unmarshals a response result payload.
func decodeResult[T any](resp *protocol.Response) (*T, error) {
	var out T
	if err := jsonutil.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("result does not decode: %v", err)
	}
	return &out, nil
}

func hasTag(tc TestCase, tag string) bool {
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func errorPreview(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
