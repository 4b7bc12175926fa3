// Command conform-smoke exercises the reference server through the
// official MCP Go SDK. The conformance suite talks to peers with its own
// protocol layer; this client is the cross-check that a stock SDK client
// can hold a full session against the same server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// scenarioResult tracks the outcome of a single scenario.
type scenarioResult struct {
	name   string
	passed bool
	err    error
}

// scenario is a named test function that runs against a live MCP session.
type scenario struct {
	name string
	live bool // requires an external target (skipped without -live)
	fn   func(ctx context.Context, s *mcp.ClientSession, target string) error
}

func main() {
	var (
		port    = flag.Int("port", 18080, "Reference server HTTP port")
		target  = flag.String("target", "", "External MCP endpoint for live scenarios")
		timeout = flag.Duration("timeout", 90*time.Second, "Overall timeout")
		live    = flag.Bool("live", false, "Enable live scenarios that hit an external target")
		runOnly = flag.String("scenario", "", "Run only this named scenario")
	)
	flag.Parse()
	log.SetFlags(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	serverCmd, err := startServer(ctx, *port)
	if err != nil {
		log.Fatalf("FATAL start_server: %v", err)
	}
	defer stopServer(serverCmd)

	if err := waitForHealth(ctx, *port); err != nil {
		log.Fatalf("FATAL health_check: %v", err)
	}
	fmt.Println("server: healthy")

	client := mcp.NewClient(&mcp.Implementation{Name: "conform-smoke", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint: fmt.Sprintf("http://127.0.0.1:%d/mcp", *port),
	}, nil)
	if err != nil {
		log.Fatalf("FATAL connect: %v", err)
	}
	defer session.Close()

	scenarios := allScenarios()

	var results []scenarioResult
	for _, sc := range scenarios {
		if *runOnly != "" && sc.name != *runOnly {
			continue
		}
		if sc.live && !*live {
			results = append(results, scenarioResult{name: sc.name, passed: true, err: fmt.Errorf("SKIP (needs -live)")})
			fmt.Printf("SKIP  %s\n", sc.name)
			continue
		}

		err := sc.fn(ctx, session, *target)
		passed := err == nil
		results = append(results, scenarioResult{name: sc.name, passed: passed, err: err})

		if passed {
			fmt.Printf("PASS  %s\n", sc.name)
		} else {
			fmt.Printf("FAIL  %s: %v\n", sc.name, err)
		}
	}

	// Summary.
	passed, failed, skipped := 0, 0, 0
	for _, r := range results {
		if r.err != nil && strings.HasPrefix(r.err.Error(), "SKIP") {
			skipped++
		} else if r.passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n--- %d passed, %d failed, %d skipped ---\n", passed, failed, skipped)
	if failed > 0 {
		os.Exit(1)
	}
}

// allScenarios returns every smoke scenario in execution order.
func allScenarios() []scenario {
	return []scenario{
		// Surface area verification.
		{"tool_discovery", false, scenarioToolDiscovery},
		{"resource_exploration", false, scenarioResourceExploration},
		{"prompt_catalog", false, scenarioPromptCatalog},

		// Individual tool validation (positive + negative for each).
		{"echo_roundtrip", false, scenarioEchoRoundtrip},
		{"add_numbers", false, scenarioAddNumbers},
		{"sleep_timing", false, scenarioSleepTiming},
		{"fail_is_error", false, scenarioFailIsError},

		// Live (requires an external MCP endpoint).
		{"external_handshake", true, scenarioExternalHandshake},
	}
}

// ---------------------------------------------------------------------------
// tool_discovery — verifies every built-in tool exists with metadata,
// plus negative: calling a nonexistent tool must not silently succeed.
// ---------------------------------------------------------------------------

func scenarioToolDiscovery(ctx context.Context, s *mcp.ClientSession, _ string) error {
	tools, err := s.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("ListTools: %w", err)
	}

	expected := []string{"echo", "add", "sleep", "read_file", "write_file", "fail"}

	have := make(map[string]bool, len(tools.Tools))
	for _, t := range tools.Tools {
		have[t.Name] = true
	}

	var missing []string
	for _, name := range expected {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools: %v (have %d)", missing, len(tools.Tools))
	}

	// Agents select tools by description and build arguments from the
	// schema, so both must be present on every tool.
	for _, t := range tools.Tools {
		if t.Description == "" {
			return fmt.Errorf("tool %q has empty description", t.Name)
		}
		if t.InputSchema == nil {
			return fmt.Errorf("tool %q has nil input schema", t.Name)
		}
	}

	// NEGATIVE: a nonexistent tool must fail, either as a protocol error
	// or as IsError=true.
	fakeResult, err := callToolRaw(ctx, s, "nonexistent_tool_that_does_not_exist", map[string]any{})
	if err == nil && !fakeResult.IsError {
		return fmt.Errorf("NEG nonexistent tool: expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// resource_exploration — reads the server info resource and verifies its
// structure, plus negative: unknown URIs must error.
// ---------------------------------------------------------------------------

func scenarioResourceExploration(ctx context.Context, s *mcp.ClientSession, _ string) error {
	list, err := s.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		return fmt.Errorf("ListResources: %w", err)
	}

	const infoURI = "mcpconform://server/info"
	found := false
	for _, r := range list.Resources {
		if r.URI == infoURI {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("resource list missing %s (have %d resources)", infoURI, len(list.Resources))
	}

	infoRes, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: infoURI})
	if err != nil {
		return fmt.Errorf("ReadResource(%s): %w", infoURI, err)
	}
	info, err := resourceJSON(infoRes)
	if err != nil {
		return fmt.Errorf("parse server info: %w", err)
	}
	for _, field := range []string{"name", "version"} {
		if _, ok := info[field]; !ok {
			return fmt.Errorf("server info missing %q field", field)
		}
	}

	// NEGATIVE: unknown URI must error.
	if _, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: "mcpconform://no/such/resource"}); err == nil {
		return fmt.Errorf("NEG unknown resource: expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// prompt_catalog — lists prompts, renders one, plus negatives for
// unknown prompts and missing required arguments.
// ---------------------------------------------------------------------------

func scenarioPromptCatalog(ctx context.Context, s *mcp.ClientSession, _ string) error {
	list, err := s.ListPrompts(ctx, &mcp.ListPromptsParams{})
	if err != nil {
		return fmt.Errorf("ListPrompts: %w", err)
	}

	const briefName = "tool-brief"
	var brief *mcp.Prompt
	for _, p := range list.Prompts {
		if p.Name == briefName {
			brief = p
		}
	}
	if brief == nil {
		return fmt.Errorf("prompt list missing %q (have %d prompts)", briefName, len(list.Prompts))
	}
	if len(brief.Arguments) == 0 {
		return fmt.Errorf("%q advertises no arguments", briefName)
	}

	result, err := s.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      briefName,
		Arguments: map[string]string{"tool": "echo"},
	})
	if err != nil {
		return fmt.Errorf("GetPrompt(%s): %w", briefName, err)
	}
	if len(result.Messages) == 0 {
		return fmt.Errorf("GetPrompt(%s): no messages", briefName)
	}

	// NEGATIVE: unknown prompt must error.
	if _, err := s.GetPrompt(ctx, &mcp.GetPromptParams{Name: "no-such-prompt"}); err == nil {
		return fmt.Errorf("NEG unknown prompt: expected error, got success")
	}

	// NEGATIVE: required argument left out must error.
	if _, err := s.GetPrompt(ctx, &mcp.GetPromptParams{Name: briefName}); err == nil {
		return fmt.Errorf("NEG missing argument: expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// echo_roundtrip — message comes back unchanged; missing argument errors.
// ---------------------------------------------------------------------------

func scenarioEchoRoundtrip(ctx context.Context, s *mcp.ClientSession, _ string) error {
	const msg = "smoke test payload: åäö 日本語 <>&"
	result, err := callToolRaw(ctx, s, "echo", map[string]any{"message": msg})
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	if result.IsError {
		return fmt.Errorf("echo: unexpected isError: %s", extractText(result))
	}
	if got := extractText(result); got != msg {
		return fmt.Errorf("echo mangled message: %q", got)
	}

	// NEGATIVE: echo requires message.
	negResult, err := callToolRaw(ctx, s, "echo", map[string]any{})
	if err == nil && !negResult.IsError {
		return fmt.Errorf("NEG echo without message: expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// add_numbers — sum in text and structured content; missing operand errors.
// ---------------------------------------------------------------------------

func scenarioAddNumbers(ctx context.Context, s *mcp.ClientSession, _ string) error {
	result, err := callToolRaw(ctx, s, "add", map[string]any{"a": 2, "b": 3})
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if result.IsError {
		return fmt.Errorf("add: unexpected isError: %s", extractText(result))
	}
	if text := extractText(result); !strings.Contains(text, "5") {
		return fmt.Errorf("add 2+3: text %q does not mention 5", text)
	}

	if result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return fmt.Errorf("add: marshal structured content: %w", err)
		}
		var structured struct {
			Sum float64 `json:"sum"`
		}
		if err := json.Unmarshal(raw, &structured); err != nil {
			return fmt.Errorf("add: parse structured content: %w", err)
		}
		if structured.Sum != 5 {
			return fmt.Errorf("add 2+3: structured sum = %g, want 5", structured.Sum)
		}
	}

	// NEGATIVE: b left out.
	negResult, err := callToolRaw(ctx, s, "add", map[string]any{"a": 2})
	if err == nil && !negResult.IsError {
		return fmt.Errorf("NEG add without b: expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// sleep_timing — short sleep returns promptly; negative ms rejected.
// ---------------------------------------------------------------------------

func scenarioSleepTiming(ctx context.Context, s *mcp.ClientSession, _ string) error {
	start := time.Now()
	result, err := callToolRaw(ctx, s, "sleep", map[string]any{"ms": 50})
	if err != nil {
		return fmt.Errorf("sleep: %w", err)
	}
	if result.IsError {
		return fmt.Errorf("sleep: unexpected isError: %s", extractText(result))
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		return fmt.Errorf("sleep 50ms returned after %v", elapsed)
	}
	if text := extractText(result); !strings.Contains(text, "50") {
		return fmt.Errorf("sleep: text %q does not report the duration", text)
	}

	// NEGATIVE: negative duration rejected.
	negResult, err := callToolRaw(ctx, s, "sleep", map[string]any{"ms": -1})
	if err == nil && !negResult.IsError {
		return fmt.Errorf("NEG sleep(-1): expected error, got success")
	}

	return nil
}

// ---------------------------------------------------------------------------
// fail_is_error — the fail tool reports through isError, not a protocol
// error, and echoes the requested failure text.
// ---------------------------------------------------------------------------

func scenarioFailIsError(ctx context.Context, s *mcp.ClientSession, _ string) error {
	const wanted = "expected smoke failure"
	result, err := callToolRaw(ctx, s, "fail", map[string]any{"message": wanted})
	if err != nil {
		return fmt.Errorf("fail should use isError, got protocol error: %w", err)
	}
	if !result.IsError {
		return fmt.Errorf("fail: IsError = false")
	}
	if text := extractText(result); !strings.Contains(text, wanted) {
		return fmt.Errorf("fail: text %q missing %q", text, wanted)
	}
	return nil
}

// ---------------------------------------------------------------------------
// external_handshake — connects a second SDK session to the -target
// endpoint and runs the minimal discovery round.
// ---------------------------------------------------------------------------

func scenarioExternalHandshake(ctx context.Context, _ *mcp.ClientSession, target string) error {
	if target == "" {
		return fmt.Errorf("-target required for live scenarios")
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "conform-smoke", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: target}, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("ListTools: %w", err)
	}
	fmt.Printf("      external target advertises %d tools\n", len(tools.Tools))
	return nil
}

// ---------------------------------------------------------------------------
// Helpers.
// ---------------------------------------------------------------------------

func callToolRaw(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", name, err)
	}
	return s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(payload)})
}

func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(*mcp.TextContent); ok {
		return tc.Text
	}
	return fmt.Sprintf("%T", result.Content[0])
}

func resourceJSON(res *mcp.ReadResourceResult) (map[string]any, error) {
	if len(res.Contents) == 0 || res.Contents[0].Text == "" {
		return nil, fmt.Errorf("empty resource content")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &data); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return data, nil
}

func startServer(ctx context.Context, port int) (*exec.Cmd, error) {
	root, err := findRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("find repo root: %w", err)
	}

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/cli", "serve", "-addr", fmt.Sprintf(":%d", port))
	cmd.Dir = root
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func stopServer(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		modPath := dir + string(os.PathSeparator) + "go.mod"
		if data, err := os.ReadFile(modPath); err == nil {
			if strings.Contains(string(data), "module github.com/mcpconform/mcpconform\n") ||
				strings.Contains(string(data), "module github.com/mcpconform/mcpconform\r\n") {
				return dir, nil
			}
		}

		parent := dir[:max(strings.LastIndex(dir, string(os.PathSeparator)), 0)]
		if parent == dir || parent == "" {
			return "", fmt.Errorf("repo root not found walking up from %s", dir)
		}
		dir = parent
	}
}

func waitForHealth(ctx context.Context, port int) error {
	client := &http.Client{Timeout: 2 * time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
