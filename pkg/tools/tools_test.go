package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

func callBuiltin(t *testing.T, name string, args string) (*protocol.CallToolResult, *protocol.Error) {
	t.Helper()
	reg := Builtin()
	tool, ok := reg.Get(name)
	if !ok {
		t.Fatalf("builtin tool %q not registered", name)
	}
	return tool.Handler(context.Background(), jsontext.Value(args))
}

func firstText(t *testing.T, res *protocol.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	return res.Content[0].Text
}

func TestBuiltinRegistryOrder(t *testing.T) {
	reg := Builtin()
	list := reg.List()
	want := []string{"echo", "add", "sleep", "read_file", "write_file", "fail"}
	if len(list) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("tool %d: expected %q, got %q", i, name, list[i].Name)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	tool := echoTool()
	if err := reg.Register(tool); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := reg.Register(tool); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegisterRejectsIncomplete(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Tool{}); err == nil {
		t.Fatal("expected nameless tool to be rejected")
	}
	if err := reg.Register(Tool{Descriptor: protocol.Tool{Name: "bare"}}); err == nil {
		t.Fatal("expected handlerless tool to be rejected")
	}
}

func TestEchoReturnsMessage(t *testing.T) {
	res, perr := callBuiltin(t, "echo", `{"message":"hello conformance"}`)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if res.IsError {
		t.Fatal("echo should not set isError")
	}
	if got := firstText(t, res); got != "hello conformance" {
		t.Errorf("expected echoed message, got %q", got)
	}
}

func TestEchoRequiresMessage(t *testing.T) {
	_, perr := callBuiltin(t, "echo", `{}`)
	if perr == nil {
		t.Fatal("expected missing message to be rejected")
	}
	if perr.Code != protocol.CodeInvalidParams {
		t.Errorf("expected invalid params code, got %d", perr.Code)
	}
}

func TestAddComputesSum(t *testing.T) {
	res, perr := callBuiltin(t, "add", `{"a":2.5,"b":4}`)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if got := firstText(t, res); !strings.Contains(got, "6.5") {
		t.Errorf("expected text to mention the sum, got %q", got)
	}
	var structured struct {
		Sum float64 `json:"sum"`
	}
	if err := jsonutil.Unmarshal(res.StructuredContent, &structured); err != nil {
		t.Fatalf("decode structuredContent: %v", err)
	}
	if structured.Sum != 6.5 {
		t.Errorf("expected sum 6.5, got %g", structured.Sum)
	}
}

func TestAddDeclaresOutputSchema(t *testing.T) {
	reg := Builtin()
	tool, _ := reg.Get("add")
	if len(tool.Descriptor.OutputSchema) == 0 {
		t.Fatal("add should declare an output schema")
	}
	if !jsonutil.Valid(tool.Descriptor.OutputSchema) {
		t.Fatal("output schema is not valid JSON")
	}
}

func TestAddRequiresBothOperands(t *testing.T) {
	_, perr := callBuiltin(t, "add", `{"a":1}`)
	if perr == nil {
		t.Fatal("expected missing operand to be rejected")
	}
	if perr.Code != protocol.CodeInvalidParams {
		t.Errorf("expected invalid params code, got %d", perr.Code)
	}
}

func TestSleepCompletes(t *testing.T) {
	start := time.Now()
	res, perr := callBuiltin(t, "sleep", `{"ms":20}`)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned after %v, expected at least 20ms", elapsed)
	}
	if got := firstText(t, res); !strings.Contains(got, "20ms") {
		t.Errorf("expected duration in text, got %q", got)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	reg := Builtin()
	tool, _ := reg.Get("sleep")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, perr := tool.Handler(ctx, jsontext.Value(`{"ms":10000}`))
	if perr == nil {
		t.Fatal("expected cancellation to surface as an error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, expected prompt return", elapsed)
	}
}

func TestSleepRejectsNegative(t *testing.T) {
	_, perr := callBuiltin(t, "sleep", `{"ms":-5}`)
	if perr == nil {
		t.Fatal("expected negative ms to be rejected")
	}
}

func TestWriteThenReadFile(t *testing.T) {
	// Both tools must come from one registry so they share a workspace.
	reg := Builtin()
	write, _ := reg.Get("write_file")
	read, _ := reg.Get("read_file")

	res, perr := write.Handler(context.Background(), jsontext.Value(`{"path":"notes/hello.txt","content":"stored by the tool"}`))
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if res.IsError {
		t.Fatalf("write_file reported failure: %q", firstText(t, res))
	}
	if got := firstText(t, res); !strings.Contains(got, "notes/hello.txt") {
		t.Errorf("expected confirmation to name the path, got %q", got)
	}

	res, perr = read.Handler(context.Background(), jsontext.Value(`{"path":"notes/hello.txt"}`))
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if res.IsError {
		t.Fatalf("read_file reported failure: %q", firstText(t, res))
	}
	if got := firstText(t, res); got != "stored by the tool" {
		t.Errorf("expected stored content back, got %q", got)
	}
}

func TestReadFileMissingIsToolError(t *testing.T) {
	res, perr := callBuiltin(t, "read_file", `{"path":"absent.txt"}`)
	if perr != nil {
		t.Fatalf("a missing file must not be a protocol error: %v", perr)
	}
	if !res.IsError {
		t.Fatal("expected isError for a missing file")
	}
}

func TestFileToolsRejectEscapingPaths(t *testing.T) {
	for _, args := range []string{
		`{"path":"../outside.txt"}`,
		`{"path":"/etc/passwd"}`,
		`{"path":"a/../../b"}`,
	} {
		if _, perr := callBuiltin(t, "read_file", args); perr == nil {
			t.Errorf("read_file accepted %s", args)
		} else if perr.Code != protocol.CodeInvalidParams {
			t.Errorf("read_file %s: expected invalid params code, got %d", args, perr.Code)
		}
	}

	if _, perr := callBuiltin(t, "write_file", `{"path":"../escape.txt","content":"x"}`); perr == nil {
		t.Error("write_file accepted a path outside the workspace")
	}
}

func TestWriteFileRequiresContent(t *testing.T) {
	_, perr := callBuiltin(t, "write_file", `{"path":"a.txt"}`)
	if perr == nil {
		t.Fatal("expected missing content to be rejected")
	}
	if perr.Code != protocol.CodeInvalidParams {
		t.Errorf("expected invalid params code, got %d", perr.Code)
	}
}

func TestFailSetsIsError(t *testing.T) {
	res, perr := callBuiltin(t, "fail", `{"message":"kaboom"}`)
	if perr != nil {
		t.Fatalf("tool-level failure must not be a protocol error: %v", perr)
	}
	if !res.IsError {
		t.Fatal("expected isError to be set")
	}
	if got := firstText(t, res); got != "kaboom" {
		t.Errorf("expected failure text, got %q", got)
	}
}

func TestFailDefaultsMessage(t *testing.T) {
	res, perr := callBuiltin(t, "fail", ``)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if !res.IsError {
		t.Fatal("expected isError to be set")
	}
	if firstText(t, res) == "" {
		t.Error("expected a default failure message")
	}
}

func TestParseArgsRejectsMalformedJSON(t *testing.T) {
	_, perr := callBuiltin(t, "echo", `{"message":`)
	if perr == nil {
		t.Fatal("expected malformed arguments to be rejected")
	}
	if perr.Code != protocol.CodeInvalidParams {
		t.Errorf("expected invalid params code, got %d", perr.Code)
	}
}
