// Package session tracks the per-client state the reference server keeps
// between requests: negotiated revision, initialization progress, and the
// outbound queue feeding the push stream. Sessions expire after a TTL of
// inactivity; an explicit delete ends one early.
package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
)

var (
	// ErrNotFound reports an unknown or expired session id.
	ErrNotFound = errors.New("session: not found")

	// ErrLimit reports that the server is at its session cap.
	ErrLimit = errors.New("session: server at capacity")

	// ErrStreamBusy reports that a session already has a push stream
	// attached. One stream per session.
	ErrStreamBusy = errors.New("session: push stream already attached")
)

// ---------------------------------------------------------------------------
// Session — one client's state between requests.
// ---------------------------------------------------------------------------

// Session is safe for concurrent use.
type Session struct {
	mu sync.RWMutex

	// Immutable fields (set at creation, never change).
	id        string
	revision  string
	createdAt time.Time

	// Mutable fields.
	lastAccess  time.Time
	initialized bool
	attached    bool

	// queue buffers server-initiated frames until a push stream drains
	// them.
	queue chan []byte

	// gone is closed when the session is removed, unblocking any
	// attached stream handler.
	gone chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Revision returns the protocol revision negotiated at initialize.
func (s *Session) Revision() string { return s.revision }

// Initialized reports whether the client completed the handshake by
// sending the initialized notification.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// MarkInitialized records handshake completion. Idempotent.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		s.initialized = true
		log.Printf("[session] INITIALIZED  id=%s  revision=%s", s.id, s.revision)
	}
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// Enqueue buffers a server-initiated frame for the push stream. When the
// queue is full the oldest frame is evicted so a stalled reader never
// blocks a request handler.
func (s *Session) Enqueue(frame []byte) error {
	for {
		select {
		case <-s.gone:
			return ErrNotFound
		case s.queue <- frame:
			return nil
		default:
		}
		select {
		case <-s.queue:
			log.Printf("[session] DROPPED  id=%s  reason=queue_full", s.id)
		default:
		}
	}
}

// Outbound returns the queue a push stream handler drains.
func (s *Session) Outbound() <-chan []byte { return s.queue }

// Gone returns a channel closed when the session is removed.
func (s *Session) Gone() <-chan struct{} { return s.gone }

// AttachStream claims the session's single push stream slot.
func (s *Session) AttachStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return ErrStreamBusy
	}
	s.attached = true
	return nil
}

// DetachStream releases the push stream slot.
func (s *Session) DetachStream() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

// Snapshot returns a read-consistent copy for introspection endpoints.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:          s.id,
		Revision:    s.revision,
		CreatedAt:   s.createdAt,
		LastAccess:  s.lastAccess,
		Initialized: s.initialized,
		Attached:    s.attached,
		Queued:      len(s.queue),
	}
}

// Snapshot is an immutable view of a Session.
type Snapshot struct {
	ID          string    `json:"id"`
	Revision    string    `json:"revision"`
	CreatedAt   time.Time `json:"createdAt"`
	LastAccess  time.Time `json:"lastAccess"`
	Initialized bool      `json:"initialized"`
	Attached    bool      `json:"attached"`
	Queued      int       `json:"queued"`
}

// ---------------------------------------------------------------------------
// Manager — concurrent-safe session registry with TTL sweep.
// ---------------------------------------------------------------------------

// Config bounds the registry.
type Config struct {
	// MaxSessions caps concurrent sessions.
	MaxSessions int

	// QueueSize is the per-session outbound buffer.
	QueueSize int

	// TTL is how long an idle session survives.
	TTL time.Duration

	// SweepInterval is how often expired sessions are collected.
	SweepInterval time.Duration
}

// DefaultConfig returns the registry's standard bounds.
func DefaultConfig() Config {
	return Config{
		MaxSessions:   defaults.MaxSessions,
		QueueSize:     defaults.QueueMaxMessages,
		TTL:           duration.SessionTTL,
		SweepInterval: duration.SweepInterval,
	}
}

// Manager owns all live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	stop     chan struct{}
}

// NewManager creates a Manager and starts its sweep goroutine.
func NewManager(cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaults.MaxSessions
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueMaxMessages
	}
	if cfg.TTL <= 0 {
		cfg.TTL = duration.SessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = duration.SweepInterval
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Stop shuts down the sweep goroutine and drops all sessions. Safe to
// call multiple times.
func (m *Manager) Stop() {
	select {
	case <-m.stop:
		return // Already stopped.
	default:
	}
	close(m.stop)

	m.mu.Lock()
	for id, s := range m.sessions {
		close(s.gone)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
}

// Create registers a new session bound to the negotiated revision.
func (m *Manager) Create(revision string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrLimit
	}

	now := time.Now()
	s := &Session{
		id:         uuid.NewString(),
		revision:   revision,
		createdAt:  now,
		lastAccess: now,
		queue:      make(chan []byte, m.cfg.QueueSize),
		gone:       make(chan struct{}),
	}
	m.sessions[s.id] = s
	log.Printf("[session] CREATED  id=%s  revision=%s  total=%d", s.id, revision, len(m.sessions))
	return s, nil
}

// Get looks a session up without refreshing its activity timestamp.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Touch refreshes a session's activity timestamp.
func (m *Manager) Touch(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Touch()
	return nil
}

// Deliver queues a server-initiated frame on one session.
func (m *Manager) Deliver(id string, frame []byte) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Enqueue(frame)
}

// Broadcast queues a frame on every live session and returns the count
// of sessions reached.
func (m *Manager) Broadcast(frame []byte) int {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	reached := 0
	for _, s := range targets {
		if s.Enqueue(frame) == nil {
			reached++
		}
	}
	return reached
}

// Remove ends a session immediately.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	close(s.gone)
	log.Printf("[session] REMOVED  id=%s  remaining=%d", id, len(m.sessions))
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats summarizes registry state.
type Stats struct {
	Total       int `json:"total"`
	Initialized int `json:"initialized"`
	Attached    int `json:"attached"`
}

// Stats returns aggregate counts over live sessions.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st Stats
	st.Total = len(m.sessions)
	for _, s := range m.sessions {
		snap := s.Snapshot()
		if snap.Initialized {
			st.Initialized++
		}
		if snap.Attached {
			st.Attached++
		}
	}
	return st
}

// sweepLoop periodically removes expired sessions.
func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep removes sessions idle longer than the TTL. A session with a
// push stream attached has an open connection and is never expired, no
// matter how quiet it has been. Two-phase: collect under read lock,
// delete under write lock.
func (m *Manager) sweep() {
	m.mu.RLock()
	cutoff := time.Now().Add(-m.cfg.TTL)
	var expired []string
	for id, s := range m.sessions {
		s.mu.RLock()
		last := s.lastAccess
		attached := s.attached
		s.mu.RUnlock()
		if attached {
			continue
		}
		if last.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.mu.Lock()
	removed := 0
	for _, id := range expired {
		s, ok := m.sessions[id]
		if !ok {
			continue
		}
		// A stream may have attached between the two phases.
		s.mu.RLock()
		attached := s.attached
		s.mu.RUnlock()
		if attached {
			continue
		}
		delete(m.sessions, id)
		close(s.gone)
		removed++
	}
	remaining := len(m.sessions)
	m.mu.Unlock()
	if removed > 0 {
		log.Printf("[session] SWEEP  removed=%d  remaining=%d", removed, remaining)
	}
}
