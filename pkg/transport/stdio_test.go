package transport

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// echoPeer is a minimal line-delimited JSON-RPC responder used as the
// subprocess under test.
const echoPeer = `
import json, sys

for line in sys.stdin:
    line = line.strip()
    if not line:
        continue
    try:
        msg = json.loads(line)
    except ValueError:
        continue
    if isinstance(msg, list):
        print(json.dumps({"jsonrpc": "2.0", "id": None,
                          "error": {"code": -32600, "message": "batch not supported"}}), flush=True)
        continue
    method = msg.get("method")
    mid = msg.get("id")
    if method == "initialize":
        print(json.dumps({"jsonrpc": "2.0", "id": mid, "result": {
            "protocolVersion": "2025-06-18",
            "capabilities": {"tools": {}},
            "serverInfo": {"name": "echo-peer", "version": "0.1.0"}}}), flush=True)
    elif method == "ping":
        print(json.dumps({"jsonrpc": "2.0", "id": mid, "result": {}}), flush=True)
    elif mid is not None:
        print(json.dumps({"jsonrpc": "2.0", "id": mid,
                          "error": {"code": -32601, "message": "method not found"}}), flush=True)
`

const stderrPeer = `
import json, sys

print("warming up", file=sys.stderr, flush=True)
print("ready", file=sys.stderr, flush=True)
for line in sys.stdin:
    msg = json.loads(line)
    print(json.dumps({"jsonrpc": "2.0", "id": msg.get("id"), "result": {}}), flush=True)
`

const crashPeer = `
import sys
print("fatal: refusing to start", file=sys.stderr, flush=True)
sys.exit(3)
`

const silentPeer = `
import sys
for line in sys.stdin:
    pass
`

// crashOncePeer dies on the first post-handshake ping and behaves on the
// next launch, leaving a marker file so runs can tell the two apart.
const crashOncePeer = `
import json, os, sys

marker = os.environ["CRASH_MARKER"]

for line in sys.stdin:
    line = line.strip()
    if not line:
        continue
    msg = json.loads(line)
    method = msg.get("method")
    mid = msg.get("id")
    if method == "initialize":
        print(json.dumps({"jsonrpc": "2.0", "id": mid, "result": {
            "protocolVersion": "2025-06-18",
            "capabilities": {"tools": {}},
            "serverInfo": {"name": "crash-once-peer", "version": "0.1.0"}}}), flush=True)
    elif method == "ping":
        if not os.path.exists(marker):
            open(marker, "w").close()
            sys.exit(1)
        print(json.dumps({"jsonrpc": "2.0", "id": mid, "result": {"revived": True}}), flush=True)
`

func requirePython(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return path
}

func writePeerScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peer.py")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write peer script: %v", err)
	}
	return path
}

func newStdioPeer(t *testing.T, script string) *Stdio {
	t.Helper()
	py := requirePython(t)
	tr := NewStdio(StdioConfig{Command: []string{py, writePeerScript(t, script)}})
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestStdio_InitializeAndPing(t *testing.T) {
	tr := newStdioPeer(t, echoPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw, err := tr.Initialize(ctx, protocol.InitializeParams{
		ProtocolVersion: "2025-06-18",
		ClientInfo:      protocol.ClientInfo{Name: "probe", Version: "1.0"},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var result protocol.InitializeResult
	if err := jsonutil.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ServerInfo.Name != "echo-peer" {
		t.Errorf("Unexpected server name %q", result.ServerInfo.Name)
	}

	req, _ := protocol.NewRequest(tr.NextID(), protocol.MethodPing, nil)
	resp, err := tr.Send(ctx, req)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Error != nil {
		t.Errorf("Unexpected error response: %v", resp.Error)
	}

	if _, err := tr.Initialize(ctx, protocol.InitializeParams{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Second initialize should be rejected, got %v", err)
	}
}

func TestStdio_UnknownMethodSurfacesPeerError(t *testing.T) {
	tr := newStdioPeer(t, echoPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, _ := protocol.NewRequest(tr.NextID(), "no/such/method", nil)
	resp, err := tr.Send(ctx, req)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("Expected method-not-found error, got %+v", resp)
	}
}

func TestStdio_SendRawBatchAnswer(t *testing.T) {
	tr := newStdioPeer(t, echoPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := tr.SendRaw(ctx, []byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`))
	if err != nil {
		t.Fatalf("SendRaw failed: %v", err)
	}
	if res.Status != 0 {
		t.Errorf("Expected zero status on stdio, got %d", res.Status)
	}
	if !strings.Contains(string(res.Body), "-32600") {
		t.Errorf("Expected batch rejection in body, got %s", res.Body)
	}
}

func TestStdio_StderrTailCaptured(t *testing.T) {
	tr := newStdioPeer(t, stderrPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, _ := protocol.NewRequest(tr.NextID(), protocol.MethodPing, nil)
	if _, err := tr.Send(ctx, req); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Stderr is read on its own goroutine; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(tr.Stderr()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	lines := tr.Stderr()
	if len(lines) < 2 {
		t.Fatalf("Expected stderr lines, got %v", lines)
	}
	if lines[0] != "warming up" || lines[1] != "ready" {
		t.Errorf("Unexpected stderr tail: %v", lines)
	}
}

func TestStdio_PeerExitIsFatalWithStderr(t *testing.T) {
	tr := newStdioPeer(t, crashPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, _ := protocol.NewRequest(tr.NextID(), protocol.MethodPing, nil)
	_, err := tr.Send(ctx, req)
	if !IsFatal(err) {
		t.Fatalf("Expected fatal transport error, got %v", err)
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransportError, got %T", err)
	}
	found := false
	for _, line := range te.Stderr {
		if strings.Contains(line, "refusing to start") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected peer stderr in error, got %v", te.Stderr)
	}
}

func TestStdio_SilentPeerTimesOut(t *testing.T) {
	tr := newStdioPeer(t, silentPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req, _ := protocol.NewRequest(tr.NextID(), protocol.MethodPing, nil)
	_, err := tr.Send(ctx, req)
	if !IsTimeout(err) {
		t.Fatalf("Expected timeout, got %v", err)
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		if te.Op != protocol.MethodPing {
			t.Errorf("Expected op ping, got %q", te.Op)
		}
		if te.Elapsed <= 0 {
			t.Errorf("Expected positive elapsed time, got %v", te.Elapsed)
		}
	}
}

func TestStdio_RestartReplaysInitializeAfterCrash(t *testing.T) {
	py := requirePython(t)
	marker := filepath.Join(t.TempDir(), "crashed-once")
	tr := NewStdio(StdioConfig{
		Command: []string{py, writePeerScript(t, crashOncePeer)},
		Env:     []string{"CRASH_MARKER=" + marker},
	})
	t.Cleanup(func() { tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := tr.Initialize(ctx, protocol.InitializeParams{
		ProtocolVersion: "2025-06-18",
		ClientInfo:      protocol.ClientInfo{Name: "harness", Version: "1.0"},
	}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// The peer dies mid-request; the transport must relaunch it, replay
	// the handshake, and resend before giving up.
	req, _ := protocol.NewRequest(tr.NextID(), protocol.MethodPing, nil)
	resp, err := tr.Send(ctx, req)
	if err != nil {
		t.Fatalf("Send across peer crash failed: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error response: %v", resp.Error)
	}
	if !strings.Contains(string(resp.Result), "revived") {
		t.Errorf("Expected answer from the relaunched peer, got %s", resp.Result)
	}
}

func TestStdio_MissingBinaryFailsFast(t *testing.T) {
	tr := NewStdio(StdioConfig{Command: []string{"/no/such/binary-mcpconform-test"}})
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	req, _ := protocol.NewRequest(1, protocol.MethodPing, nil)
	_, err := tr.Send(ctx, req)
	if !IsFatal(err) {
		t.Fatalf("Expected fatal error for missing binary, got %v", err)
	}
	// A missing binary must not burn through the whole retry budget.
	if time.Since(start) > 3*time.Second {
		t.Errorf("Missing binary took too long to fail: %v", time.Since(start))
	}
}

func TestStdio_SendWithoutIDRejected(t *testing.T) {
	tr := NewStdio(StdioConfig{Command: []string{"/no/such/binary"}})
	defer tr.Close()

	_, err := tr.Send(context.Background(), &protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: protocol.MethodPing})
	if !errors.Is(err, ErrWantRequest) {
		t.Errorf("Expected ErrWantRequest, got %v", err)
	}
}

func TestStdio_CloseIdempotent(t *testing.T) {
	tr := newStdioPeer(t, echoPeer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, _ := protocol.NewRequest(tr.NextID(), protocol.MethodPing, nil)
	if _, err := tr.Send(ctx, req); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	if _, err := tr.Send(ctx, req); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}

func TestStdio_CloseNeverStartedPeer(t *testing.T) {
	tr := NewStdio(StdioConfig{Command: []string{"/no/such/binary"}})
	if err := tr.Close(); err != nil {
		t.Errorf("Close on unstarted transport failed: %v", err)
	}
}
