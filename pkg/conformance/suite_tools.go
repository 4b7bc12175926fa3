package conformance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// ToolsSuite exercises tools/list and tools/call against the probe tools
// (echo, add, sleep). A peer that advertises the tools capability is
// expected to carry the probe tools; the MAY cases additionally gate on
// the specific tool being listed.
func ToolsSuite() []TestCase {
	return []TestCase{
		{
			Name:     "tools-list-shape",
			Category: CategoryTools,
			Level:    scoring.LevelMust,
			Requires: requiresToolsCapability,
			Run:      checkToolsListShape,
		},
		{
			Name:     "tools-descriptors-valid",
			Category: CategoryTools,
			Level:    scoring.LevelMust,
			Requires: requiresToolsCapability,
			Run:      checkToolDescriptors,
		},
		{
			Name:     "tools-call-echo",
			Category: CategoryTools,
			Level:    scoring.LevelMust,
			Requires: requiresToolsCapability,
			Run:      checkCallEcho,
		},
		{
			Name:     "tools-call-add",
			Category: CategoryTools,
			Level:    scoring.LevelMust,
			Requires: requiresToolsCapability,
			Run:      checkCallAdd,
		},
		{
			Name:     "tools-call-unknown-tool",
			Category: CategoryTools,
			Level:    scoring.LevelShould,
			Requires: requiresToolsCapability,
			Run:      checkCallUnknownTool,
		},
		{
			Name:     "tools-call-bad-arguments",
			Category: CategoryTools,
			Level:    scoring.LevelShould,
			Requires: func(env *Env) (bool, string) {
				if ok, reason := requiresToolsCapability(env); !ok {
					return false, reason
				}
				// Without the echo tool the rejection would prove
				// nothing: any unknown name draws an error.
				if !env.HasTool("echo") {
					return false, "peer does not list an echo tool"
				}
				return true, ""
			},
			Run: checkCallBadArguments,
		},
		{
			Name:     "tools-call-sleep-bounded",
			Category: CategoryTools,
			Level:    scoring.LevelMay,
			Requires: func(env *Env) (bool, string) {
				if ok, reason := requiresToolsCapability(env); !ok {
					return false, reason
				}
				if !env.HasTool("sleep") {
					return false, "peer does not list a sleep tool"
				}
				return true, ""
			},
			Run: checkCallSleepBounded,
		},
	}
}

func requiresToolsCapability(env *Env) (bool, string) {
	if env.Init == nil {
		return false, "handshake did not complete"
	}
	if env.Init.Capabilities.Tools == nil {
		return false, "peer does not advertise the tools capability"
	}
	return true, ""
}

// callTool invokes one tool with a literal JSON arguments object. The
// middle return carries a protocol-level error answer; err is reserved
// for transport and harness trouble.
func callTool(ctx context.Context, env *Env, name, args string) (*protocol.CallToolResult, *protocol.Error, error) {
	params := protocol.CallToolParams{Name: name}
	if args != "" {
		params.Arguments = jsontext.Value(args)
	}
	resp, err := env.Call(ctx, protocol.MethodToolsCall, params)
	if err != nil {
		return nil, nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error, nil
	}
	res, derr := decodeResult[protocol.CallToolResult](resp)
	if derr != nil {
		return nil, nil, fmt.Errorf("tools/call result does not decode: %v", derr)
	}
	return res, nil, nil
}

// firstText returns the text of the first text content block.
func firstText(res *protocol.CallToolResult) string {
	for _, c := range res.Content {
		if c.Type == "text" {
			return c.Text
		}
	}
	return ""
}

func checkToolsListShape(ctx context.Context, env *Env) error {
	resp, err := env.Call(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("tools/list answered with error: [%d] %s", resp.Error.Code, resp.Error.Message)
	}
	res, derr := decodeResult[protocol.ListToolsResult](resp)
	if derr != nil {
		return fmt.Errorf("tools/list result does not decode: %v", derr)
	}
	if res.Tools == nil {
		return fmt.Errorf("tools/list result has no tools array")
	}
	for i, t := range res.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool descriptor %d has an empty name", i)
		}
	}
	env.Detail("%d tools listed", len(res.Tools))
	return nil
}

// checkToolDescriptors runs every listed descriptor through the revision
// adapter's shape rules.
func checkToolDescriptors(ctx context.Context, env *Env) error {
	resp, err := env.Call(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("tools/list answered with error: [%d] %s", resp.Error.Code, resp.Error.Message)
	}
	var res struct {
		Tools []jsontext.Value `json:"tools"`
	}
	if uerr := jsonutil.Unmarshal(resp.Result, &res); uerr != nil {
		return fmt.Errorf("tools/list result does not decode: %v", uerr)
	}

	var bad []string
	for _, raw := range res.Tools {
		if verr := env.Adapter.ValidateToolDescriptor(raw); verr != nil {
			if len(bad) < 3 {
				bad = append(bad, verr.Error())
			} else {
				bad = append(bad, "...")
				break
			}
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid tool descriptors: %s", strings.Join(bad, "; "))
	}
	return nil
}

func checkCallEcho(ctx context.Context, env *Env) error {
	const probe = "conformance-probe"
	res, perr, err := callTool(ctx, env, "echo", fmt.Sprintf(`{"message":%q}`, probe))
	if err != nil {
		return err
	}
	if perr != nil {
		return fmt.Errorf("echo call answered with error: [%d] %s", perr.Code, perr.Message)
	}
	if res.IsError {
		return fmt.Errorf("echo call reported a tool error: %s", firstText(res))
	}
	if got := firstText(res); got != probe {
		return fmt.Errorf("echo returned %q, want %q", got, probe)
	}
	return nil
}

// checkCallAdd prefers the structured result when the peer provides one;
// older revisions only carry the text block.
func checkCallAdd(ctx context.Context, env *Env) error {
	res, perr, err := callTool(ctx, env, "add", `{"a":2,"b":3}`)
	if err != nil {
		return err
	}
	if perr != nil {
		return fmt.Errorf("add call answered with error: [%d] %s", perr.Code, perr.Message)
	}
	if res.IsError {
		return fmt.Errorf("add call reported a tool error: %s", firstText(res))
	}
	if len(res.StructuredContent) > 0 {
		var sc struct {
			Sum float64 `json:"sum"`
		}
		if uerr := jsonutil.Unmarshal(res.StructuredContent, &sc); uerr != nil {
			return fmt.Errorf("add structured content does not decode: %v", uerr)
		}
		if sc.Sum != 5 {
			return fmt.Errorf("add reported sum %g, want 5", sc.Sum)
		}
		return nil
	}
	if text := firstText(res); !strings.Contains(text, "5") {
		return fmt.Errorf("add returned %q, expected the sum 5", text)
	}
	return nil
}

func checkCallUnknownTool(ctx context.Context, env *Env) error {
	_, perr, err := callTool(ctx, env, "no-such-tool-conformance-probe", "")
	if err != nil {
		return err
	}
	if perr == nil {
		return fmt.Errorf("peer executed a call to a tool it never listed")
	}
	if perr.Code != protocol.CodeInvalidParams {
		env.Detail("unknown tool drew code %d (typical is %d)", perr.Code, protocol.CodeInvalidParams)
	}
	return nil
}

// checkCallBadArguments calls echo without the required message argument.
// Either a protocol error or an isError result is a valid rejection.
func checkCallBadArguments(ctx context.Context, env *Env) error {
	res, perr, err := callTool(ctx, env, "echo", `{}`)
	if err != nil {
		return err
	}
	if perr != nil {
		return nil
	}
	if res.IsError {
		return nil
	}
	return fmt.Errorf("echo accepted a call without its required message argument")
}

func checkCallSleepBounded(ctx context.Context, env *Env) error {
	const ms = 300
	start := time.Now()
	res, perr, err := callTool(ctx, env, "sleep", fmt.Sprintf(`{"ms":%d}`, ms))
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	if perr != nil {
		return fmt.Errorf("sleep call answered with error: [%d] %s", perr.Code, perr.Message)
	}
	if res.IsError {
		return fmt.Errorf("sleep call reported a tool error: %s", firstText(res))
	}
	// A little slack under the nominal duration absorbs clock skew
	// between the two processes.
	if elapsed < time.Duration(ms-10)*time.Millisecond {
		return fmt.Errorf("sleep %dms returned after %s, before the tool could have finished", ms, elapsed.Round(time.Millisecond))
	}
	env.Detail("sleep %dms completed in %s", ms, elapsed.Round(time.Millisecond))
	return nil
}
