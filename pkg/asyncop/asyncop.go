// Package asyncop tracks asynchronous tool invocations for the reference
// server. An operation is created when tools/call-async is accepted,
// runs on its own goroutine, and stays queryable for a retention window
// after reaching a terminal state.
package asyncop

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

var (
	// ErrTooManyActive reports that the tracker is at its concurrency cap.
	ErrTooManyActive = errors.New("asyncop: too many active operations")

	// ErrNotFound reports an unknown operation id.
	ErrNotFound = errors.New("asyncop: operation not found")
)

// ---------------------------------------------------------------------------
// Operation — one async tool invocation with lifecycle tracking.
// ---------------------------------------------------------------------------

// Status represents the current state of an async operation.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Operation is a single async invocation. Terminal transitions are
// first-writer-wins: once completed, failed, or cancelled, later
// transition attempts are silently ignored.
type Operation struct {
	mu sync.RWMutex

	// Immutable fields (set at creation, never change).
	ID        string
	Tool      string
	CreatedAt time.Time

	// Mutable fields.
	Status    Status
	UpdatedAt time.Time

	// Terminal fields (set once).
	Result jsontext.Value
	Error  *protocol.Error

	cancel context.CancelFunc

	// done is closed on the terminal transition; WaitFor blocks on it.
	done chan struct{}
}

// SetRunning moves a submitted operation to running. No-op otherwise.
func (o *Operation) SetRunning() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Status != StatusSubmitted {
		return
	}
	o.Status = StatusRunning
	o.UpdatedAt = time.Now()
}

// Complete marks the operation as completed with the given result and
// releases its context. No-op if already terminal (prevents a
// Cancel→Complete race from resurrecting the operation).
func (o *Operation) Complete(result jsontext.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Status.IsTerminal() {
		return
	}
	o.Status = StatusCompleted
	o.Result = result
	o.UpdatedAt = time.Now()
	if o.cancel != nil {
		o.cancel()
	}
	closeDone(o.done)
	log.Printf("[asyncop] COMPLETED  id=%s  tool=%s  result_bytes=%d", o.ID, o.Tool, len(result))
}

// Fail marks the operation as failed. No-op if already terminal.
func (o *Operation) Fail(code int, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Status.IsTerminal() {
		return
	}
	o.Status = StatusFailed
	o.Error = protocol.NewError(code, message)
	o.UpdatedAt = time.Now()
	if o.cancel != nil {
		o.cancel()
	}
	closeDone(o.done)
	log.Printf("[asyncop] FAILED  id=%s  tool=%s  err=%s", o.ID, o.Tool, message)
}

// Cancel moves a non-terminal operation to cancelled and fires its
// context. It reports whether this call performed the transition;
// cancelling an already-terminal operation is an idempotent no-op that
// leaves the existing state untouched.
func (o *Operation) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Status.IsTerminal() {
		return false
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
	if o.cancel != nil {
		o.cancel()
	}
	closeDone(o.done)
	log.Printf("[asyncop] CANCELLED  id=%s  tool=%s", o.ID, o.Tool)
	return true
}

// closeDone safely closes a done channel. Must be called under o.mu.
func closeDone(ch chan struct{}) {
	select {
	case <-ch:
		// Already closed.
	default:
		close(ch)
	}
}

// WaitFor blocks until the operation reaches a terminal state, ctx is
// cancelled, or wait elapses. Callers re-read the snapshot afterwards;
// a timeout simply means "still running".
func (o *Operation) WaitFor(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-o.done:
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Done returns the channel closed on the terminal transition.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Snapshot returns a read-consistent copy for serialization.
func (o *Operation) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	snap := Snapshot{
		ID:        o.ID,
		Tool:      o.Tool,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.Status == StatusCompleted {
		snap.Result = o.Result
	}
	if o.Status == StatusFailed {
		snap.Error = o.Error
	}
	return snap
}

// Snapshot is an immutable, serializable view of an Operation.
type Snapshot struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Result    jsontext.Value  `json:"result,omitzero"`
	Error     *protocol.Error `json:"error,omitzero"`
}

// ---------------------------------------------------------------------------
// Tracker — concurrent-safe operation store with auto-cleanup.
// ---------------------------------------------------------------------------

// Config bounds the tracker.
type Config struct {
	// MaxActive caps concurrently running operations.
	MaxActive int

	// Retention is how long terminal operations stay queryable.
	Retention time.Duration

	// SweepInterval is how often expired operations are collected.
	SweepInterval time.Duration

	// MaxDuration is the hard ceiling on a single operation's runtime.
	MaxDuration time.Duration
}

// DefaultConfig returns the tracker's standard bounds.
func DefaultConfig() Config {
	return Config{
		MaxActive:     defaults.OpMaxActive,
		Retention:     duration.OpRetention,
		SweepInterval: duration.OpSweep,
		MaxDuration:   duration.ContextMax,
	}
}

// Tracker manages the lifecycle of async operations.
type Tracker struct {
	mu   sync.RWMutex
	ops  map[string]*Operation
	cfg  Config
	wg   sync.WaitGroup // tracks worker goroutines for clean shutdown
	stop chan struct{}
}

// NewTracker creates a Tracker and starts its cleanup goroutine.
func NewTracker(cfg Config) *Tracker {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = defaults.OpMaxActive
	}
	if cfg.Retention <= 0 {
		cfg.Retention = duration.OpRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = duration.OpSweep
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = duration.ContextMax
	}
	tr := &Tracker{
		ops:  make(map[string]*Operation),
		cfg:  cfg,
		stop: make(chan struct{}),
	}
	go tr.sweepLoop()
	return tr
}

// Stop cancels all running operations, waits for workers to drain
// (bounded), and shuts down the cleanup goroutine. Safe to call
// multiple times.
func (tr *Tracker) Stop() {
	select {
	case <-tr.stop:
		return // Already stopped.
	default:
	}

	tr.cancelAll()

	done := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * duration.ShutdownGrace):
	}

	close(tr.stop)
}

// Create registers a new operation. The returned context is cancelled
// when the operation terminates, its runtime ceiling passes, or the
// parent is done. The caller owns the worker goroutine; most callers
// want Launch instead.
func (tr *Tracker) Create(parent context.Context, tool string) (*Operation, context.Context, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	active := 0
	for _, o := range tr.ops {
		o.mu.RLock()
		s := o.Status
		o.mu.RUnlock()
		if !s.IsTerminal() {
			active++
		}
	}
	if active >= tr.cfg.MaxActive {
		return nil, nil, fmt.Errorf("%w (%d/%d)", ErrTooManyActive, active, tr.cfg.MaxActive)
	}

	id, err := generateOpID()
	if err != nil {
		return nil, nil, err
	}

	// Chain a hard timeout under the cancel so no operation can run
	// forever; both must be released on the terminal transition.
	timeoutCtx, timeoutCancel := context.WithTimeout(parent, tr.cfg.MaxDuration)
	ctx, cancel := context.WithCancel(timeoutCtx)

	now := time.Now()
	op := &Operation{
		ID:        id,
		Tool:      tool,
		CreatedAt: now,
		Status:    StatusSubmitted,
		UpdatedAt: now,
		cancel: func() {
			cancel()
			timeoutCancel()
		},
		done: make(chan struct{}),
	}

	tr.ops[id] = op
	log.Printf("[asyncop] CREATED  id=%s  tool=%s  active=%d", id, tool, active+1)
	return op, ctx, nil
}

// Launch creates an operation and runs workFn on its own goroutine.
// The worker's return value resolves the operation unless something
// (cancel, timeout) already did; panics resolve it as failed rather
// than leaving it stuck in running.
func (tr *Tracker) Launch(parent context.Context, tool string, workFn func(ctx context.Context) (jsontext.Value, *protocol.Error)) (*Operation, error) {
	op, ctx, err := tr.Create(parent, tool)
	if err != nil {
		return nil, err
	}

	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				op.Fail(protocol.CodeInternalError, fmt.Sprintf("internal panic: %v", r))
			}
		}()

		op.SetRunning()
		result, perr := workFn(ctx)
		switch {
		case perr != nil:
			op.Fail(perr.Code, perr.Message)
		case ctx.Err() != nil:
			// Cancelled or timed out mid-run; Cancel already set the
			// state, and a timeout without cancel resolves as failure.
			op.Fail(protocol.CodeInternalError, "operation deadline exceeded")
		default:
			op.Complete(result)
		}
	}()

	return op, nil
}

// Get returns the operation with the given id.
func (tr *Tracker) Get(id string) (*Operation, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	op, ok := tr.ops[id]
	if !ok {
		// Log every miss — this is what clients report as "operation
		// not found".
		log.Printf("[asyncop] GET MISS  id=%s  known=%d", id, len(tr.ops))
		return nil, ErrNotFound
	}
	return op, nil
}

// List returns snapshots of all operations, optionally filtered by
// status.
func (tr *Tracker) List(statusFilter ...Status) []Snapshot {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	filter := make(map[Status]bool, len(statusFilter))
	for _, s := range statusFilter {
		filter[s] = true
	}

	snaps := make([]Snapshot, 0, len(tr.ops))
	for _, o := range tr.ops {
		snap := o.Snapshot()
		if len(filter) > 0 && !filter[snap.Status] {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// ActiveCount returns the number of non-terminal operations.
func (tr *Tracker) ActiveCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	count := 0
	for _, o := range tr.ops {
		o.mu.RLock()
		s := o.Status
		o.mu.RUnlock()
		if !s.IsTerminal() {
			count++
		}
	}
	return count
}

// sweepLoop periodically removes expired terminal operations.
func (tr *Tracker) sweepLoop() {
	ticker := time.NewTicker(tr.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tr.stop:
			return
		case <-ticker.C:
			tr.sweep()
		}
	}
}

// sweep removes operations terminal for longer than the retention
// window. Two-phase: collect under read lock, delete under write lock.
func (tr *Tracker) sweep() {
	tr.mu.RLock()
	cutoff := time.Now().Add(-tr.cfg.Retention)
	var expired []string
	for id, o := range tr.ops {
		o.mu.RLock()
		status := o.Status
		updated := o.UpdatedAt
		o.mu.RUnlock()
		if status.IsTerminal() && updated.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	tr.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	tr.mu.Lock()
	for _, id := range expired {
		delete(tr.ops, id)
	}
	remaining := len(tr.ops)
	tr.mu.Unlock()
	log.Printf("[asyncop] SWEEP  removed=%d  remaining=%d", len(expired), remaining)
}

// cancelAll cancels every non-terminal operation. Called during
// shutdown to prevent goroutine leaks.
func (tr *Tracker) cancelAll() {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	for _, o := range tr.ops {
		o.Cancel()
	}
}

// generateOpID produces a short, unique operation identifier.
// Format: "op_" + 16 hex chars (8 random bytes = 2^64 values).
func generateOpID() (string, error) {
	b := make([]byte, defaults.OpIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("asyncop: crypto/rand failed: %w", err)
	}
	return "op_" + hex.EncodeToString(b), nil
}
