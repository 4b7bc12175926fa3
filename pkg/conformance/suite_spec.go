package conformance

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/scoring"
	"github.com/mcpconform/mcpconform/pkg/transport"
)

// SpecSuite probes the envelope rules every revision shares: result
// shapes, the jsonrpc constant, id correlation, error code ranges, and
// notification silence. These are the rules sloppy implementations bend
// first.
func SpecSuite() []TestCase {
	return []TestCase{
		{
			Name:     "spec-server-info",
			Category: CategorySpec,
			Level:    scoring.LevelMust,
			Run:      checkServerInfo,
		},
		{
			Name:     "spec-capability-shape",
			Category: CategorySpec,
			Level:    scoring.LevelMust,
			Run:      checkCapabilityShape,
		},
		{
			Name:     "spec-jsonrpc-version",
			Category: CategorySpec,
			Level:    scoring.LevelMust,
			Run:      checkJSONRPCVersion,
		},
		{
			Name:     "spec-id-correlation",
			Category: CategorySpec,
			Level:    scoring.LevelMust,
			Run:      checkIDCorrelation,
		},
		{
			Name:     "spec-error-code-range",
			Category: CategorySpec,
			Level:    scoring.LevelMust,
			Run:      checkErrorCodeRange,
		},
		{
			Name:     "spec-notification-silence",
			Category: CategorySpec,
			Level:    scoring.LevelShould,
			Run:      checkNotificationSilence,
		},
	}
}

func checkServerInfo(ctx context.Context, env *Env) error {
	if env.Init == nil {
		return fmt.Errorf("no initialize result to inspect")
	}
	env.observe(protocol.MethodInitialize, "", string(env.RawInit))
	info := env.Init.ServerInfo
	if info.Name == "" {
		return fmt.Errorf("serverInfo has no name")
	}
	if info.Version == "" {
		return fmt.Errorf("serverInfo %q has no version", info.Name)
	}
	return nil
}

// checkCapabilityShape requires capabilities to be an object whose
// members are objects. A peer that advertises `"tools": true` breaks
// every client that reads subfields.
func checkCapabilityShape(ctx context.Context, env *Env) error {
	if len(env.RawInit) == 0 {
		return fmt.Errorf("no initialize result to inspect")
	}
	env.observe(protocol.MethodInitialize, "", string(env.RawInit))
	var res struct {
		Capabilities map[string]jsontext.Value `json:"capabilities"`
	}
	if err := jsonutil.Unmarshal(env.RawInit, &res); err != nil {
		return fmt.Errorf("initialize result does not decode: %v", err)
	}
	if res.Capabilities == nil {
		return fmt.Errorf("initialize result has no capabilities object")
	}
	for name, raw := range res.Capabilities {
		trimmed := bytes.TrimLeft(raw, " \t\r\n")
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return fmt.Errorf("capability %q is not an object: %s", name, errorPreview(raw))
		}
	}
	return nil
}

func checkJSONRPCVersion(ctx context.Context, env *Env) error {
	req, err := protocol.NewRequest(env.NextID(), protocol.MethodPing, nil)
	if err != nil {
		return &HarnessError{Err: err}
	}
	frame, err := jsonutil.Marshal(req)
	if err != nil {
		return &HarnessError{Err: err}
	}
	raw, err := env.Raw(ctx, "ping for envelope inspection", frame)
	if err != nil {
		return err
	}
	var m protocol.Message
	if uerr := jsonutil.Unmarshal(raw.Body, &m); uerr != nil {
		return fmt.Errorf("response does not decode: %v", uerr)
	}
	if m.JSONRPC != protocol.JSONRPCVersion {
		return fmt.Errorf("response carries jsonrpc %q, want %q", m.JSONRPC, protocol.JSONRPCVersion)
	}
	return nil
}

// checkIDCorrelation sends a ping with a string id and requires the same
// id back, byte semantics rather than type coercion.
func checkIDCorrelation(ctx context.Context, env *Env) error {
	id := fmt.Sprintf("corr-probe-%d", env.NextID())
	req, err := protocol.NewRequest(id, protocol.MethodPing, nil)
	if err != nil {
		return &HarnessError{Err: err}
	}
	frame, err := jsonutil.Marshal(req)
	if err != nil {
		return &HarnessError{Err: err}
	}
	raw, err := env.Raw(ctx, "ping with string id", frame)
	if err != nil {
		return err
	}
	var m protocol.Message
	if uerr := jsonutil.Unmarshal(raw.Body, &m); uerr != nil {
		return fmt.Errorf("response does not decode: %v", uerr)
	}
	if !m.HasID() {
		return fmt.Errorf("response to a string-id request carries no id")
	}
	if got, want := m.IDKey(), protocol.IDKey(req.ID); got != want {
		return fmt.Errorf("response id %s does not match request id %s", got, want)
	}
	return nil
}

func checkErrorCodeRange(ctx context.Context, env *Env) error {
	resp, err := env.Call(ctx, "conformance/no-such-method", nil)
	if err != nil {
		return err
	}
	if resp.Error == nil {
		return fmt.Errorf("peer answered an unknown method with a result")
	}
	code := resp.Error.Code
	if code > -32000 || code < -32768 {
		return fmt.Errorf("unknown method drew code %d, outside the reserved range [-32768, -32000]", code)
	}
	if code != protocol.CodeMethodNotFound {
		env.Detail("unknown method drew code %d (typical is %d)", code, protocol.CodeMethodNotFound)
	}
	return nil
}

// checkNotificationSilence sends a progress notification nobody asked
// for and expects no response addressed to it. Silence, an empty ack, or
// unrelated peer-initiated traffic all pass; a response frame fails.
func checkNotificationSilence(ctx context.Context, env *Env) error {
	n, err := protocol.NewNotification(protocol.NotifProgress, map[string]any{
		"progressToken": "conformance-probe",
		"progress":      1,
	})
	if err != nil {
		return &HarnessError{Err: err}
	}
	frame, err := jsonutil.Marshal(n)
	if err != nil {
		return &HarnessError{Err: err}
	}

	pctx, cancel := context.WithTimeout(ctx, duration.ProbeSilence)
	defer cancel()
	raw, err := env.Raw(pctx, "unsolicited progress notification", frame)
	if err != nil {
		if transport.IsTimeout(err) {
			// Silence is the specified behavior.
			return nil
		}
		return err
	}
	if len(bytes.TrimSpace(raw.Body)) == 0 {
		return nil
	}
	var m protocol.Message
	if uerr := jsonutil.Unmarshal(raw.Body, &m); uerr != nil {
		return fmt.Errorf("peer answered a notification with an undecodable frame: %s", errorPreview(raw.Body))
	}
	switch m.Kind() {
	case protocol.KindRequest, protocol.KindNotification:
		// Peer-initiated traffic that happened to arrive in the window.
		env.Detail("peer sent %s %q while we listened", m.Kind(), m.Method)
		return nil
	default:
		return fmt.Errorf("peer answered a notification: %s", errorPreview(raw.Body))
	}
}
