package asyncop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/protocol"
)

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tr := NewTracker(cfg)
	t.Cleanup(tr.Stop)
	return tr
}

func waitTerminal(t *testing.T, op *Operation) {
	t.Helper()
	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("operation never reached a terminal state")
	}
}

func TestLaunchCompletes(t *testing.T) {
	tr := newTestTracker(t, Config{})

	op, err := tr.Launch(context.Background(), "echo", func(ctx context.Context) (jsontext.Value, *protocol.Error) {
		return jsontext.Value(`{"echoed":true}`), nil
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	waitTerminal(t, op)

	snap := op.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
	if string(snap.Result) != `{"echoed":true}` {
		t.Errorf("unexpected result: %s", snap.Result)
	}
	if snap.Error != nil {
		t.Errorf("unexpected error: %v", snap.Error)
	}
}

func TestLaunchFails(t *testing.T) {
	tr := newTestTracker(t, Config{})

	op, err := tr.Launch(context.Background(), "echo", func(ctx context.Context) (jsontext.Value, *protocol.Error) {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing argument")
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	waitTerminal(t, op)

	snap := op.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected failed, got %s", snap.Status)
	}
	if snap.Error == nil || snap.Error.Code != protocol.CodeInvalidParams {
		t.Errorf("unexpected error: %+v", snap.Error)
	}
	if snap.Result != nil {
		t.Errorf("failed snapshot should not carry a result, got %s", snap.Result)
	}
}

func TestLaunchPanicBecomesFailed(t *testing.T) {
	tr := newTestTracker(t, Config{})

	op, err := tr.Launch(context.Background(), "echo", func(ctx context.Context) (jsontext.Value, *protocol.Error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	waitTerminal(t, op)

	snap := op.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected failed after panic, got %s", snap.Status)
	}
	if snap.Error == nil || !strings.Contains(snap.Error.Message, "internal panic") {
		t.Errorf("expected panic message, got %+v", snap.Error)
	}
}

func TestCancelStopsWorker(t *testing.T) {
	tr := newTestTracker(t, Config{})

	op, err := tr.Launch(context.Background(), "sleep", func(ctx context.Context) (jsontext.Value, *protocol.Error) {
		<-ctx.Done()
		return nil, protocol.NewError(protocol.CodeInternalError, "should be ignored")
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if !op.Cancel() {
		t.Fatal("Cancel should report the transition")
	}
	waitTerminal(t, op)

	// The worker's late Fail must not overwrite the cancelled state.
	time.Sleep(50 * time.Millisecond)
	if snap := op.Snapshot(); snap.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", snap.Status)
	}
}

func TestCancelOnTerminalIsNoOp(t *testing.T) {
	tr := newTestTracker(t, Config{})
	op, _, err := tr.Create(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	op.Complete(jsontext.Value(`{}`))
	if op.Cancel() {
		t.Error("Cancel on a terminal operation must be a no-op")
	}
	if snap := op.Snapshot(); snap.Status != StatusCompleted {
		t.Errorf("cancel must not overwrite terminal state, got %s", snap.Status)
	}
}

func TestTerminalFirstWriterWins(t *testing.T) {
	tr := newTestTracker(t, Config{})
	op, _, err := tr.Create(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	op.Complete(jsontext.Value(`{"first":true}`))
	op.Fail(protocol.CodeInternalError, "too late")

	snap := op.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected completed to stick, got %s", snap.Status)
	}
	if snap.Error != nil {
		t.Errorf("late Fail must not attach an error, got %+v", snap.Error)
	}
}

func TestCreateAtCapacity(t *testing.T) {
	tr := newTestTracker(t, Config{MaxActive: 2})

	for i := 0; i < 2; i++ {
		if _, _, err := tr.Create(context.Background(), "sleep"); err != nil {
			t.Fatalf("creating operation %d: %v", i, err)
		}
	}
	if _, _, err := tr.Create(context.Background(), "sleep"); !errors.Is(err, ErrTooManyActive) {
		t.Errorf("expected ErrTooManyActive, got %v", err)
	}
}

func TestTerminalOperationFreesSlot(t *testing.T) {
	tr := newTestTracker(t, Config{MaxActive: 1})

	op, _, err := tr.Create(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	op.Complete(jsontext.Value(`{}`))

	if _, _, err := tr.Create(context.Background(), "echo"); err != nil {
		t.Errorf("terminal operation should not count against the cap: %v", err)
	}
}

func TestGetMiss(t *testing.T) {
	tr := newTestTracker(t, Config{})
	if _, err := tr.Get("op_0000000000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWaitForReturnsOnTerminal(t *testing.T) {
	tr := newTestTracker(t, Config{})
	op, _, _ := tr.Create(context.Background(), "echo")

	go func() {
		time.Sleep(20 * time.Millisecond)
		op.Complete(jsontext.Value(`{}`))
	}()

	start := time.Now()
	op.WaitFor(context.Background(), 5*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitFor should return at completion, took %v", elapsed)
	}
	if snap := op.Snapshot(); snap.Status != StatusCompleted {
		t.Errorf("expected completed after wait, got %s", snap.Status)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	tr := newTestTracker(t, Config{})
	op, _, _ := tr.Create(context.Background(), "sleep")
	op.SetRunning()

	op.WaitFor(context.Background(), 50*time.Millisecond)
	if snap := op.Snapshot(); snap.Status != StatusRunning {
		t.Errorf("expected still running after wait timeout, got %s", snap.Status)
	}
}

func TestSweepRemovesExpiredTerminal(t *testing.T) {
	tr := newTestTracker(t, Config{})

	op, _, _ := tr.Create(context.Background(), "echo")
	op.Complete(jsontext.Value(`{}`))

	op.mu.Lock()
	op.UpdatedAt = time.Now().Add(-tr.cfg.Retention - time.Minute)
	op.mu.Unlock()

	tr.sweep()

	if _, err := tr.Get(op.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expired terminal operation should have been swept")
	}

	// Non-terminal operations survive the sweep regardless of age.
	running, _, _ := tr.Create(context.Background(), "sleep")
	running.SetRunning()
	running.mu.Lock()
	running.UpdatedAt = time.Now().Add(-tr.cfg.Retention - time.Minute)
	running.mu.Unlock()

	tr.sweep()
	if _, err := tr.Get(running.ID); err != nil {
		t.Errorf("running operation must survive the sweep: %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	tr := newTestTracker(t, Config{})

	a, _, _ := tr.Create(context.Background(), "echo")
	b, _, _ := tr.Create(context.Background(), "sleep")
	a.Complete(jsontext.Value(`{}`))
	b.SetRunning()

	completed := tr.List(StatusCompleted)
	if len(completed) != 1 || completed[0].ID != a.ID {
		t.Errorf("unexpected completed list: %+v", completed)
	}
	all := tr.List()
	if len(all) != 2 {
		t.Errorf("expected 2 operations, got %d", len(all))
	}
}

func TestStopCancelsActive(t *testing.T) {
	tr := NewTracker(Config{})

	op, err := tr.Launch(context.Background(), "sleep", func(ctx context.Context) (jsontext.Value, *protocol.Error) {
		<-ctx.Done()
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	tr.Stop()
	tr.Stop() // Idempotent.

	if snap := op.Snapshot(); snap.Status != StatusCancelled {
		t.Errorf("expected cancelled after stop, got %s", snap.Status)
	}
}

func TestGenerateOpIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := generateOpID()
		if err != nil {
			t.Fatalf("generateOpID failed: %v", err)
		}
		if !strings.HasPrefix(id, "op_") {
			t.Fatalf("expected op_ prefix, got %q", id)
		}
		if len(id) != len("op_")+16 {
			t.Fatalf("expected 16 hex chars, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
