// Package refserver is a self-contained MCP server the conformance engine
// can be pointed at: over stdio as a spawned subprocess, over streamable
// HTTP as an in-process handler, or both at once. It speaks every
// supported protocol revision and keeps each session on the revision it
// negotiated, so a single instance can serve mixed-revision traffic.
package refserver

import (
	"log"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/asyncop"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/session"
	"github.com/mcpconform/mcpconform/pkg/tools"
)

// Config holds reference server configuration.
type Config struct {
	// Name and Version populate serverInfo in the initialize response.
	Name    string
	Version string

	// Instructions is the optional usage text advertised at initialize.
	Instructions string

	// PageSize bounds one tools/list page. Zero serves the whole set in a
	// single page.
	PageSize int

	// Sessions configures the session registry.
	Sessions session.Config

	// Ops configures the async operation tracker.
	Ops asyncop.Config

	// Verbose enables per-frame logging.
	Verbose bool
}

// Server is the reference MCP implementation. One instance serves any
// number of transports concurrently.
type Server struct {
	cfg      Config
	registry *tools.Registry
	sessions *session.Manager
	tracker  *asyncop.Tracker
	metrics  *serverMetrics
	ready    atomic.Bool

	// notifyLimiter bounds how fast tool-list change notifications fan
	// out to sessions. Re-registrations in a tight loop collapse into
	// one broadcast per window.
	notifyLimiter *rate.Limiter
}

// New creates a reference server with the given tool set. A nil registry
// gets the built-in tools.
func New(cfg Config, registry *tools.Registry) *Server {
	if cfg.Name == "" {
		cfg.Name = "mcpconform-refserver"
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if registry == nil {
		registry = tools.Builtin()
	}

	s := &Server{
		cfg:           cfg,
		registry:      registry,
		sessions:      session.NewManager(cfg.Sessions),
		tracker:       asyncop.NewTracker(cfg.Ops),
		notifyLimiter: rate.NewLimiter(rate.Every(duration.StreamFast), 1),
	}
	s.metrics = newServerMetrics(s)
	return s
}

// Sessions exposes the session registry, mainly for tests and the
// selftest command.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Tracker exposes the async operation tracker.
func (s *Server) Tracker() *asyncop.Tracker { return s.tracker }

// MarkReady flips the health endpoint from 503 to 200. Call it once the
// listeners are up.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady reports whether startup completed.
func (s *Server) IsReady() bool { return s.ready.Load() }

// Stop shuts down the background sweeps, cancels running operations, and
// ends every session. Safe to call more than once.
func (s *Server) Stop() {
	s.tracker.Stop()
	s.sessions.Stop()
}

// RegisterTool adds a tool at runtime and notifies connected sessions
// that the list changed. Broadcast frequency is rate-limited.
func (s *Server) RegisterTool(t tools.Tool) error {
	if err := s.registry.Register(t); err != nil {
		return err
	}
	if s.notifyLimiter.Allow() {
		frame, err := notificationFrame(protocol.NotifToolsListChanged, nil)
		if err != nil {
			return err
		}
		reached := s.sessions.Broadcast(frame)
		log.Printf("[refserver] TOOLS CHANGED  tool=%s  notified=%d", t.Descriptor.Name, reached)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Handshake payload builders
// ---------------------------------------------------------------------------

func (s *Server) serverInfo() protocol.ServerInfo {
	return protocol.ServerInfo{
		Name:    s.cfg.Name,
		Version: s.cfg.Version,
		Title:   "MCP Conformance Reference Server",
	}
}

// capabilities builds the capability object for a negotiated revision.
// The async extension is advertised under experimental only on revisions
// that define it.
func (s *Server) capabilities(rev adapter.Adapter) protocol.ServerCapabilities {
	caps := protocol.ServerCapabilities{
		Tools:     &protocol.ToolsCapability{ListChanged: true},
		Resources: &protocol.ResourcesCapability{},
		Prompts:   &protocol.PromptsCapability{},
		Logging:   map[string]any{},
	}
	if rev.SupportsAsyncTools() {
		caps.Experimental = map[string]any{
			"asyncTools": map[string]any{},
		}
	}
	return caps
}

// notificationFrame marshals a server-initiated notification for the
// push queue.
func notificationFrame(method string, params any) ([]byte, error) {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return nil, err
	}
	return jsonutil.Marshal(n)
}
