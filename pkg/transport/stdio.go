package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/sys/unix"

	"github.com/mcpconform/mcpconform/internal/hexutil"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/retry"
)

// StdioConfig configures a subprocess transport.
type StdioConfig struct {
	// Command is the argv of the peer to spawn; Command[0] is the binary.
	Command []string

	// Dir is the working directory for the peer; "" inherits ours.
	Dir string

	// Env entries are appended to the inherited environment.
	Env []string

	// ConnectRetries is the number of spawn attempts before giving up.
	// 0 means defaults.RetryMedium.
	ConnectRetries int

	// Verbose logs every frame in both directions.
	Verbose bool
}

// Stdio runs the peer as a subprocess and exchanges one JSON-RPC object
// per line over its stdin/stdout, keeping stderr aside as diagnostics.
// The peer owns its stdout: anything that is not protocol is a peer bug,
// but it gets logged rather than crashing the harness.
type Stdio struct {
	cfg StdioConfig
	seq atomic.Int64

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	pending     map[string]chan *protocol.Response
	rawWaiter   chan []byte
	started     bool
	initialized bool
	closed      bool
	deathCause  error

	// initParams is the handshake to replay after a pipe-break restart.
	initParams *protocol.InitializeParams
	restarts   int

	wmu sync.Mutex // serializes frame writes

	dead   chan struct{} // closed when the current peer's read loop exits
	exited chan struct{} // closed when the current peer is reaped

	stderr *tailRing
}

// NewStdio creates a subprocess transport. The peer is not spawned until
// the first operation needs it.
func NewStdio(cfg StdioConfig) *Stdio {
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = defaults.RetryMedium
	}
	return &Stdio{
		cfg:     cfg,
		pending: make(map[string]chan *protocol.Response),
		dead:    make(chan struct{}),
		exited:  make(chan struct{}),
		stderr:  newTailRing(defaults.StderrTailLines),
	}
}

// NextID returns a fresh request id unique within this transport.
func (s *Stdio) NextID() int64 { return s.seq.Add(1) }

// SessionID returns "". A subprocess is its own session; there is no
// out-of-band identifier.
func (s *Stdio) SessionID() string { return "" }

// SetProtocolVersion is a no-op: stdio has no out-of-band header to stamp.
func (s *Stdio) SetProtocolVersion(string) {}

// Stderr returns the tail of the peer's diagnostic stream, oldest first.
func (s *Stdio) Stderr() []string { return s.stderr.Lines() }

// Initialize sends the initialize request and returns the raw result.
func (s *Stdio) Initialize(ctx context.Context, params protocol.InitializeParams) (jsontext.Value, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.initialized {
		s.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	s.mu.Unlock()

	req, err := protocol.NewRequest(s.NextID(), protocol.MethodInitialize, params)
	if err != nil {
		return nil, fmt.Errorf("stdio: build initialize: %w", err)
	}
	resp, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	s.mu.Lock()
	s.initialized = true
	s.initParams = &params
	s.mu.Unlock()
	return resp.Result, nil
}

// Send transmits req and blocks until the matching response. A broken
// pipe gets one recovery attempt: the peer is relaunched, initialize is
// replayed, and the request goes out again on the fresh process.
func (s *Stdio) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if len(req.ID) == 0 {
		return nil, ErrWantRequest
	}
	if err := s.ensureStarted(ctx); err != nil {
		if !errors.Is(err, errPipeBroken) {
			return nil, err
		}
		if rerr := s.restart(ctx); rerr != nil {
			return nil, err
		}
	}

	frame, err := jsonutil.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("stdio: marshal request: %w", err)
	}

	resp, err := s.deliver(ctx, req.Method, frame, protocol.IDKey(req.ID))
	if err != nil && errors.Is(err, errPipeBroken) {
		if rerr := s.restart(ctx); rerr == nil {
			return s.deliver(ctx, req.Method, frame, protocol.IDKey(req.ID))
		}
	}
	return resp, err
}

// deliver registers the request id, writes the frame, and waits for the
// correlated response, the death of the current peer, or ctx.
func (s *Stdio) deliver(ctx context.Context, op string, frame []byte, idKey string) (*protocol.Response, error) {
	ch := make(chan *protocol.Response, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.pending[idKey] = ch
	dead := s.dead
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, idKey)
		s.mu.Unlock()
	}()

	if err := s.write(frame); err != nil {
		return nil, err
	}

	start := time.Now()
	select {
	case resp := <-ch:
		if resp == nil {
			// The read loop closed the channel on its way down.
			return nil, s.fatal("send", fmt.Errorf("%w: %w", errPipeBroken, s.causeOfDeath()))
		}
		return resp, nil
	case <-dead:
		return nil, s.fatal("send", fmt.Errorf("%w: %w", errPipeBroken, s.causeOfDeath()))
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Op: op, Elapsed: time.Since(start), Err: ctx.Err()}
		}
		return nil, ctx.Err()
	}
}

// Notify transmits a notification.
func (s *Stdio) Notify(ctx context.Context, n *protocol.Notification) error {
	if err := s.ensureStarted(ctx); err != nil {
		if !errors.Is(err, errPipeBroken) {
			return err
		}
		if rerr := s.restart(ctx); rerr != nil {
			return err
		}
	}
	frame, err := jsonutil.Marshal(n)
	if err != nil {
		return fmt.Errorf("stdio: marshal notification: %w", err)
	}
	if err := s.write(frame); err != nil {
		if errors.Is(err, errPipeBroken) {
			if rerr := s.restart(ctx); rerr == nil {
				return s.write(frame)
			}
		}
		return err
	}
	return nil
}

// SendRaw writes frame verbatim (newline appended) and waits for the next
// frame that correlates with no outstanding request. Probes that expect
// silence should pass a short deadline and treat a TimeoutError as the
// answer.
func (s *Stdio) SendRaw(ctx context.Context, frame []byte) (*RawResult, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return nil, err
	}

	ch := make(chan []byte, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.rawWaiter != nil {
		s.mu.Unlock()
		return nil, errors.New("stdio: raw probe already in flight")
	}
	s.rawWaiter = ch
	dead := s.dead
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.rawWaiter = nil
		s.mu.Unlock()
	}()

	if err := s.write(frame); err != nil {
		return nil, err
	}

	start := time.Now()
	select {
	case body := <-ch:
		return &RawResult{Body: body}, nil
	case <-dead:
		return nil, s.fatal("send", s.causeOfDeath())
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Op: "raw probe", Elapsed: time.Since(start), Err: ctx.Err()}
		}
		return nil, ctx.Err()
	}
}

// Close shuts the peer down: polite EOF on stdin first, SIGTERM to the
// process group if it lingers, SIGKILL if it ignores that too.
func (s *Stdio) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	stdin := s.stdin
	cmd := s.cmd
	exited := s.exited
	s.mu.Unlock()

	if !started {
		return nil
	}

	if stdin != nil {
		_ = stdin.Close()
	}
	select {
	case <-exited:
		return nil
	case <-time.After(duration.ShutdownGrace):
	}

	if cmd != nil && cmd.Process != nil {
		// Negative pid signals the whole process group, catching any
		// children the peer spawned.
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
	}
	select {
	case <-exited:
		return nil
	case <-time.After(duration.ShutdownGrace):
	}

	if cmd != nil && cmd.Process != nil {
		log.Printf("[stdio] peer ignored SIGTERM, killing pid=%d", cmd.Process.Pid)
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	<-exited
	return nil
}

// ---------------------------------------------------------------------------
// Process lifecycle
// ---------------------------------------------------------------------------

func (s *Stdio) ensureStarted(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		cause := s.deathCause
		s.mu.Unlock()
		if cause != nil {
			return s.fatal("send", fmt.Errorf("%w: %w", errPipeBroken, cause))
		}
		return nil
	}
	s.mu.Unlock()

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = s.cfg.ConnectRetries
	err := retry.Do(ctx, cfg, func() error {
		err := s.spawn()
		if err != nil && (errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)) {
			// A missing binary will not appear on retry.
			return retry.Stop(err)
		}
		return err
	})
	if err != nil {
		return s.fatal("connect", err)
	}
	return nil
}

func (s *Stdio) spawn() error {
	if len(s.cfg.Command) == 0 {
		return retry.Stop(errors.New("stdio: empty command"))
	}

	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	// Own process group so Close can signal the peer and its children
	// without hitting the harness itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdio: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdio: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stdio: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("stdio: start %q: %w", s.cfg.Command[0], err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.started = true
	// Each spawned peer gets its own dead/exited pair; a loop from an
	// earlier generation must never signal the current one.
	dead := s.dead
	exited := s.exited
	s.mu.Unlock()

	log.Printf("[stdio] started peer pid=%d command=%v", cmd.Process.Pid, s.cfg.Command)

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		s.readLoop(stdout, dead)
	}()
	go func() {
		defer loops.Done()
		s.stderrLoop(stderr)
	}()
	go func() {
		loops.Wait()
		waitErr := cmd.Wait()
		if waitErr != nil {
			log.Printf("[stdio] peer exited: %v", waitErr)
		}
		s.mu.Lock()
		// An exit status beats the generic stdout-close cause, but a
		// specific read failure is kept as is.
		if s.exited == exited {
			switch {
			case waitErr != nil && (s.deathCause == nil || errors.Is(s.deathCause, errStdoutClosed)):
				s.deathCause = fmt.Errorf("peer exited: %w", waitErr)
			case s.deathCause == nil:
				s.deathCause = errors.New("peer exited")
			}
		}
		s.mu.Unlock()
		close(exited)
	}()

	return nil
}

// restart tears down a peer whose pipe broke and brings up a fresh one,
// replaying the initialize handshake if the old peer had completed it.
// Attempts are bounded by the connect retry budget.
func (s *Stdio) restart(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.restarts >= s.cfg.ConnectRetries {
		s.mu.Unlock()
		return fmt.Errorf("stdio: restart budget of %d exhausted", s.cfg.ConnectRetries)
	}
	s.restarts++
	cmd := s.cmd
	oldExited := s.exited
	wasInit := s.initialized
	params := s.initParams
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	select {
	case <-oldExited:
	case <-time.After(duration.ShutdownGrace):
	}

	s.mu.Lock()
	s.started = false
	s.initialized = false
	s.deathCause = nil
	s.cmd = nil
	s.stdin = nil
	s.dead = make(chan struct{})
	s.exited = make(chan struct{})
	s.mu.Unlock()

	if err := s.ensureStarted(ctx); err != nil {
		return err
	}
	log.Printf("[stdio] restarted peer after pipe break (attempt %d of %d)", s.restartCount(), s.cfg.ConnectRetries)

	if !wasInit || params == nil {
		return nil
	}
	req, err := protocol.NewRequest(s.NextID(), protocol.MethodInitialize, *params)
	if err != nil {
		return fmt.Errorf("stdio: rebuild initialize: %w", err)
	}
	frame, err := jsonutil.Marshal(req)
	if err != nil {
		return fmt.Errorf("stdio: marshal initialize: %w", err)
	}
	resp, err := s.deliver(ctx, protocol.MethodInitialize, frame, protocol.IDKey(req.ID))
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("stdio: replayed initialize rejected: %w", resp.Error)
	}
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	if n, err := protocol.NewNotification(protocol.NotifInitialized, nil); err == nil {
		if frame, err := jsonutil.Marshal(n); err == nil {
			_ = s.write(frame)
		}
	}
	return nil
}

func (s *Stdio) restartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

var errStdoutClosed = errors.New("peer closed stdout")

func (s *Stdio) readLoop(stdout io.Reader, dead chan struct{}) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, defaults.BufferLarge), defaults.BufferMax)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frame := bytes.Clone(line)
		if s.cfg.Verbose {
			log.Printf("[stdio] <- %s", hexutil.Preview(frame, 256))
		}
		s.route(frame)
	}

	cause := scanner.Err()
	if cause == nil {
		cause = errStdoutClosed
	} else if errors.Is(cause, bufio.ErrTooLong) {
		cause = fmt.Errorf("frame exceeds %d bytes: %w", defaults.BufferMax, cause)
	}

	s.mu.Lock()
	if s.dead == dead {
		if s.deathCause == nil {
			s.deathCause = cause
		}
		for idKey, ch := range s.pending {
			close(ch)
			delete(s.pending, idKey)
		}
	}
	s.mu.Unlock()
	close(dead)
}

func (s *Stdio) stderrLoop(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, defaults.BufferSmall), defaults.BufferHuge)
	for scanner.Scan() {
		s.stderr.Add(scanner.Text())
	}
}

// route hands one incoming frame to whoever is waiting for it. Responses
// correlate by id; everything else goes to an armed raw probe or the log.
func (s *Stdio) route(frame []byte) {
	if !protocol.IsBatch(frame) {
		var msg protocol.Message
		if err := jsonutil.Unmarshal(frame, &msg); err == nil {
			if msg.Kind() == protocol.KindResponse && msg.HasID() {
				s.mu.Lock()
				ch, ok := s.pending[msg.IDKey()]
				if ok {
					delete(s.pending, msg.IDKey())
				}
				s.mu.Unlock()
				if ok {
					ch <- &protocol.Response{
						JSONRPC: msg.JSONRPC,
						ID:      msg.ID,
						Result:  msg.Result,
						Error:   msg.Error,
					}
					return
				}
			}
		}
	}

	// Batches, null-id errors, peer-initiated traffic, and garbage all
	// land here: a raw probe takes them, otherwise they only get logged.
	s.mu.Lock()
	waiter := s.rawWaiter
	s.rawWaiter = nil
	s.mu.Unlock()
	if waiter != nil {
		waiter <- frame
		return
	}
	log.Printf("[stdio] dropped unroutable frame: %s", hexutil.Preview(frame, 256))
}

// errPipeBroken marks write failures the caller may heal by restarting
// the peer.
var errPipeBroken = errors.New("pipe to peer broken")

func (s *Stdio) write(frame []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	cause := s.deathCause
	s.mu.Unlock()
	if cause != nil {
		return s.fatal("send", fmt.Errorf("%w: %w", errPipeBroken, cause))
	}
	if stdin == nil {
		return s.fatal("send", errors.New("stdin not open"))
	}

	if s.cfg.Verbose {
		log.Printf("[stdio] -> %s", hexutil.Preview(frame, 256))
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := stdin.Write(append(frame, '\n')); err != nil {
		return s.fatal("send", fmt.Errorf("%w: write to peer: %w", errPipeBroken, err))
	}
	return nil
}

func (s *Stdio) causeOfDeath() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deathCause != nil {
		return s.deathCause
	}
	return errors.New("channel closed")
}

func (s *Stdio) fatal(op string, err error) *TransportError {
	s.mu.Lock()
	started := s.started
	exited := s.exited
	s.mu.Unlock()
	if started {
		// Let the stderr drain finish so the tail makes it into the
		// error report.
		select {
		case <-exited:
		case <-time.After(duration.StreamFast):
		}
		// The reaper may have upgraded the cause to an exit status.
		if cause := s.causeOfDeath(); !errors.Is(err, cause) && errors.Is(err, errStdoutClosed) {
			if errors.Is(err, errPipeBroken) {
				err = fmt.Errorf("%w: %w", errPipeBroken, cause)
			} else {
				err = cause
			}
		}
	}
	return &TransportError{Op: op, Err: err, Stderr: s.stderr.Lines()}
}

// ---------------------------------------------------------------------------
// Stderr tail
// ---------------------------------------------------------------------------

// tailRing keeps the last n lines of a stream.
type tailRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTailRing(max int) *tailRing {
	return &tailRing{max: max}
}

func (r *tailRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

func (r *tailRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
