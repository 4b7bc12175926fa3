package session

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := NewManager(cfg)
	t.Cleanup(m.Stop)
	return m
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager(t, Config{})

	s, err := m.Create("2025-06-18")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.ID() == "" {
		t.Error("expected a session id")
	}
	if s.Revision() != "2025-06-18" {
		t.Errorf("unexpected revision %q", s.Revision())
	}

	got, err := m.Get(s.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}
}

func TestGetUnknown(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAtCapacity(t *testing.T) {
	m := newTestManager(t, Config{MaxSessions: 2})

	for i := 0; i < 2; i++ {
		if _, err := m.Create("2025-06-18"); err != nil {
			t.Fatalf("creating session %d: %v", i, err)
		}
	}
	if _, err := m.Create("2025-06-18"); !errors.Is(err, ErrLimit) {
		t.Errorf("expected ErrLimit, got %v", err)
	}
}

func TestMarkInitializedIdempotent(t *testing.T) {
	m := newTestManager(t, Config{})
	s, _ := m.Create("2024-11-05")

	if s.Initialized() {
		t.Error("new session should not be initialized")
	}
	s.MarkInitialized()
	s.MarkInitialized()
	if !s.Initialized() {
		t.Error("session should be initialized")
	}
}

func TestDeliverAndDrain(t *testing.T) {
	m := newTestManager(t, Config{})
	s, _ := m.Create("2025-06-18")

	frame := []byte(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`)
	if err := m.Deliver(s.ID(), frame); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	select {
	case got := <-s.Outbound():
		if string(got) != string(frame) {
			t.Errorf("unexpected frame: %s", got)
		}
	default:
		t.Fatal("expected a queued frame")
	}
}

func TestEnqueueEvictsOldestWhenFull(t *testing.T) {
	m := newTestManager(t, Config{QueueSize: 2})
	s, _ := m.Create("2025-06-18")

	for _, frame := range []string{"a", "b", "c"} {
		if err := s.Enqueue([]byte(frame)); err != nil {
			t.Fatalf("enqueue %q: %v", frame, err)
		}
	}

	// "a" was evicted to make room; "b" and "c" remain in order.
	for _, want := range []string{"b", "c"} {
		select {
		case got := <-s.Outbound():
			if string(got) != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		default:
			t.Fatalf("queue empty, expected %q", want)
		}
	}
}

func TestAttachStreamExclusive(t *testing.T) {
	m := newTestManager(t, Config{})
	s, _ := m.Create("2025-06-18")

	if err := s.AttachStream(); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := s.AttachStream(); !errors.Is(err, ErrStreamBusy) {
		t.Errorf("expected ErrStreamBusy, got %v", err)
	}
	s.DetachStream()
	if err := s.AttachStream(); err != nil {
		t.Errorf("attach after detach: %v", err)
	}
}

func TestRemoveClosesGone(t *testing.T) {
	m := newTestManager(t, Config{})
	s, _ := m.Create("2025-06-18")

	if err := m.Remove(s.ID()); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	select {
	case <-s.Gone():
	default:
		t.Error("expected gone channel to be closed")
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
	if err := s.Enqueue([]byte("late")); !errors.Is(err, ErrNotFound) {
		t.Errorf("enqueue after remove should fail, got %v", err)
	}
	if err := m.Remove(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove should report ErrNotFound, got %v", err)
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	m := newTestManager(t, Config{})

	idle, _ := m.Create("2025-06-18")
	fresh, _ := m.Create("2025-06-18")

	// Backdate the idle session past the TTL.
	idle.mu.Lock()
	idle.lastAccess = time.Now().Add(-m.cfg.TTL - time.Minute)
	idle.mu.Unlock()

	m.sweep()

	if _, err := m.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("idle session should have been swept, got %v", err)
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Errorf("fresh session should survive the sweep: %v", err)
	}
}

func TestSweepSparesAttachedSessions(t *testing.T) {
	m := newTestManager(t, Config{})

	s, _ := m.Create("2025-06-18")
	if err := s.AttachStream(); err != nil {
		t.Fatalf("AttachStream failed: %v", err)
	}

	// Idle far past the TTL, but the open stream keeps it alive.
	s.mu.Lock()
	s.lastAccess = time.Now().Add(-m.cfg.TTL - time.Minute)
	s.mu.Unlock()

	m.sweep()
	if _, err := m.Get(s.ID()); err != nil {
		t.Fatalf("session with an attached stream must survive the sweep: %v", err)
	}

	// Once the stream detaches, idleness counts again.
	s.DetachStream()
	m.sweep()
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("detached idle session should have been swept, got %v", err)
	}
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	m := newTestManager(t, Config{})
	s, _ := m.Create("2025-06-18")

	s.mu.Lock()
	s.lastAccess = time.Now().Add(-m.cfg.TTL - time.Minute)
	s.mu.Unlock()

	if err := m.Touch(s.ID()); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	m.sweep()

	if _, err := m.Get(s.ID()); err != nil {
		t.Errorf("touched session should survive the sweep: %v", err)
	}
}

func TestBroadcastReachesLiveSessions(t *testing.T) {
	m := newTestManager(t, Config{QueueSize: 1})

	a, _ := m.Create("2025-06-18")
	b, _ := m.Create("2025-06-18")

	if err := m.Remove(b.ID()); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	reached := m.Broadcast([]byte(`{"jsonrpc":"2.0","method":"notifications/prompts/list_changed"}`))
	if reached != 1 {
		t.Errorf("expected broadcast to reach 1 session, got %d", reached)
	}

	select {
	case <-a.Outbound():
	default:
		t.Error("expected the live session to receive the broadcast")
	}
}

func TestStats(t *testing.T) {
	m := newTestManager(t, Config{})

	a, _ := m.Create("2025-06-18")
	b, _ := m.Create("2024-11-05")
	a.MarkInitialized()
	if err := b.AttachStream(); err != nil {
		t.Fatalf("attach: %v", err)
	}

	st := m.Stats()
	if st.Total != 2 || st.Initialized != 1 || st.Attached != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestStopIdempotent(t *testing.T) {
	m := NewManager(Config{})
	s, _ := m.Create("2025-06-18")

	m.Stop()
	m.Stop()

	select {
	case <-s.Gone():
	default:
		t.Error("stop should close session gone channels")
	}
	if m.Count() != 0 {
		t.Errorf("expected no sessions after stop, got %d", m.Count())
	}
}
