package conformance

import (
	"context"
	"fmt"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/scoring"
	"github.com/mcpconform/mcpconform/pkg/transport"
)

// CoreSuite covers the lifecycle: handshake, version negotiation, ping,
// and the transport-level rules a peer must observe before anything else
// is worth probing. The handshake itself already ran; these cases judge
// what it produced.
func CoreSuite() []TestCase {
	return []TestCase{
		{
			Name:     "initialize-round-trip",
			Category: CategoryCore,
			Level:    scoring.LevelMust,
			Tags:     []string{TagLifecycle, "handshake"},
			Critical: true,
			Run:      checkInitializeRoundTrip,
		},
		{
			Name:     "initialize-version-echo",
			Category: CategoryCore,
			Level:    scoring.LevelMust,
			Tags:     []string{TagLifecycle},
			Run:      checkVersionEcho,
		},
		{
			Name:     "initialized-accepted",
			Category: CategoryCore,
			Level:    scoring.LevelMust,
			Tags:     []string{TagLifecycle},
			Run:      checkInitializedAccepted,
		},
		{
			Name:     "ping-round-trip",
			Category: CategoryCore,
			Level:    scoring.LevelMust,
			Run:      checkPing,
		},
		{
			Name:     "batch-rejected",
			Category: CategoryCore,
			Level:    scoring.LevelMust,
			Requires: func(env *Env) (bool, string) {
				if env.Adapter.SupportsBatch() {
					return false, fmt.Sprintf("revision %s permits batch requests", env.Adapter.Version())
				}
				return true, ""
			},
			Run: checkBatchRejected,
		},
		{
			Name:     "version-header-required",
			Category: CategoryCore,
			Level:    scoring.LevelShould,
			Requires: func(env *Env) (bool, string) {
				if env.Kind != TransportHTTP {
					return false, "only applies to HTTP transports"
				}
				if !env.Adapter.RequiresVersionHeader() {
					return false, fmt.Sprintf("revision %s does not require the version header", env.Adapter.Version())
				}
				if env.Negotiated == "" {
					return false, "no negotiated protocol version"
				}
				return true, ""
			},
			Run: checkVersionHeaderRequired,
		},
		{
			Name:     "session-id-issued",
			Category: CategoryCore,
			Level:    scoring.LevelMay,
			Requires: func(env *Env) (bool, string) {
				if env.Kind != TransportHTTP {
					return false, "only applies to HTTP transports"
				}
				if env.Init == nil {
					return false, "handshake did not complete"
				}
				return true, ""
			},
			Run: checkSessionIDIssued,
		},
	}
}

// checkInitializeRoundTrip judges the handshake the runner performed.
// Wrapping the transport error keeps the classification honest: a
// handshake timeout reads as a timeout here, not as a generic failure.
func checkInitializeRoundTrip(ctx context.Context, env *Env) error {
	if env.InitErr != nil {
		return fmt.Errorf("initialize failed: %w", env.InitErr)
	}
	if env.Init == nil {
		return fmt.Errorf("no initialize result captured")
	}
	env.observe(protocol.MethodInitialize, "", string(env.RawInit))
	if err := env.Adapter.ValidateInitializeResult(env.RawInit); err != nil {
		return fmt.Errorf("initialize result invalid: %v", err)
	}
	return nil
}

func checkVersionEcho(ctx context.Context, env *Env) error {
	if env.Init == nil {
		return fmt.Errorf("no initialize result to inspect")
	}
	env.observe(protocol.MethodInitialize, "", string(env.RawInit))
	if env.NegotiateErr != nil {
		return fmt.Errorf("peer answered unsupported protocol version %q (offered %q)", env.Init.ProtocolVersion, env.Offered)
	}
	if env.Negotiated != env.Offered {
		env.Detail("peer downgraded %s to %s", env.Offered, env.Negotiated)
	}
	return nil
}

// checkInitializedAccepted verifies the peer took the initialized
// notification and now serves post-handshake traffic.
func checkInitializedAccepted(ctx context.Context, env *Env) error {
	if env.NotifyErr != nil {
		return fmt.Errorf("initialized notification failed: %w", env.NotifyErr)
	}
	method := protocol.MethodPing
	if env.Init != nil && env.Init.Capabilities.Tools != nil {
		method = protocol.MethodToolsList
	}
	resp, err := env.Call(ctx, method, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("peer rejected %s after the handshake: [%d] %s", method, resp.Error.Code, resp.Error.Message)
	}
	return nil
}

func checkPing(ctx context.Context, env *Env) error {
	resp, err := env.Call(ctx, protocol.MethodPing, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("ping answered with error: [%d] %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("ping answered without a result")
	}
	return nil
}

// checkBatchRejected sends a two-element batch to a peer whose revision
// forbids them. The verdict comes from the body: HTTP peers answer an
// error payload under whatever status they like, stdio peers either
// answer or stay silent.
func checkBatchRejected(ctx context.Context, env *Env) error {
	one, err := protocol.NewRequest(env.NextID(), protocol.MethodPing, nil)
	if err != nil {
		return &HarnessError{Err: err}
	}
	two, err := protocol.NewRequest(env.NextID(), protocol.MethodPing, nil)
	if err != nil {
		return &HarnessError{Err: err}
	}
	b1, _ := jsonutil.Marshal(one)
	b2, _ := jsonutil.Marshal(two)
	frame := append(append(append([]byte("["), b1...), ','), b2...)
	frame = append(frame, ']')

	pctx, cancel := context.WithTimeout(ctx, duration.ProbeSilence)
	defer cancel()
	raw, err := env.Raw(pctx, "batch of two pings", frame)
	if err != nil {
		if transport.IsTimeout(err) {
			return fmt.Errorf("peer silently ignored the batch instead of rejecting it")
		}
		return err
	}
	if protocol.IsBatch(raw.Body) {
		return fmt.Errorf("peer answered the batch with a batch response instead of rejecting it")
	}
	var resp protocol.Response
	if uerr := jsonutil.Unmarshal(raw.Body, &resp); uerr != nil {
		return fmt.Errorf("peer answered the batch with an undecodable frame: %v", uerr)
	}
	if resp.Error == nil {
		return fmt.Errorf("peer accepted a batch request on revision %s", env.Adapter.Version())
	}
	if resp.Error.Code != protocol.CodeInvalidRequest {
		return fmt.Errorf("batch rejected with code %d, want %d (invalid request)", resp.Error.Code, protocol.CodeInvalidRequest)
	}
	return nil
}

// checkVersionHeaderRequired strips the MCP-Protocol-Version header and
// expects a 400. The transport attaches the header to every frame, so
// the probe blanks it for one exchange and restores it after.
func checkVersionHeaderRequired(ctx context.Context, env *Env) error {
	env.Transport.SetProtocolVersion("")
	defer env.Transport.SetProtocolVersion(env.Negotiated)

	req, err := protocol.NewRequest(env.NextID(), protocol.MethodPing, nil)
	if err != nil {
		return &HarnessError{Err: err}
	}
	frame, err := jsonutil.Marshal(req)
	if err != nil {
		return &HarnessError{Err: err}
	}
	raw, err := env.Raw(ctx, "ping without "+defaults.HeaderProtocolVersion, frame)
	if err != nil {
		return err
	}
	switch {
	case raw.Status == 400:
		return nil
	case raw.Status >= 400:
		return fmt.Errorf("request without %s header rejected with status %d, want 400", defaults.HeaderProtocolVersion, raw.Status)
	default:
		return fmt.Errorf("peer served a request missing the %s header (status %d)", defaults.HeaderProtocolVersion, raw.Status)
	}
}

func checkSessionIDIssued(ctx context.Context, env *Env) error {
	sid := env.Transport.SessionID()
	if sid == "" {
		return fmt.Errorf("peer issued no session id on initialize")
	}
	env.Detail("session id %q", sid)
	resp, err := env.Call(ctx, protocol.MethodPing, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("ping under session %q answered with error: [%d] %s", sid, resp.Error.Code, resp.Error.Message)
	}
	return nil
}
