package refserver

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/iohelper"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/session"
)

const allowedMethods = "GET, POST, DELETE, OPTIONS"

// HTTPHandler returns the complete streamable-HTTP surface:
//
//   - /mcp      → POST requests, GET push stream, DELETE session teardown
//   - /health   → readiness probe
//   - /metrics  → Prometheus exposition
//   - /         → same as /mcp, for clients that post to the root
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/", s.handleMCP)

	return corsMiddleware(recoveryMiddleware(securityHeaders(mux)))
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleStream(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	case http.MethodOptions:
		// Non-browser OPTIONS (no Origin header) falls through the CORS
		// middleware to here.
		w.Header().Set("Allow", allowedMethods)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", allowedMethods)
		writeError(w, http.StatusMethodNotAllowed, protocol.CodeInvalidRequest, "method not allowed")
	}
}

// ---------------------------------------------------------------------------
// POST — requests and notifications
// ---------------------------------------------------------------------------

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := iohelper.ReadBody(r.Body, iohelper.LargeMaxBodySize)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeParseError, "unreadable body")
		return
	}

	sess, ok := s.resolveSession(w, r, false)
	if !ok {
		return
	}

	payload, created := s.HandleFrame(r.Context(), sess, body)
	if created != nil {
		w.Header().Set(defaults.HeaderSessionID, created.ID())
	}

	if payload == nil {
		// Notification-only input: acknowledge without a body.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// ---------------------------------------------------------------------------
// GET — push stream
// ---------------------------------------------------------------------------

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), defaults.ContentTypeSSE) {
		writeError(w, http.StatusNotAcceptable, protocol.CodeInvalidRequest, "push stream requires Accept: text/event-stream")
		return
	}

	sess, ok := s.resolveSession(w, r, true)
	if !ok {
		return
	}

	if err := sess.AttachStream(); err != nil {
		if errors.Is(err, session.ErrStreamBusy) {
			writeError(w, http.StatusConflict, protocol.CodeInvalidRequest, "session already has a push stream")
			return
		}
		writeError(w, http.StatusInternalServerError, protocol.CodeInternalError, "stream attach failed")
		return
	}
	defer sess.DetachStream()

	rc := http.NewResponseController(w)
	if err := flushSupport(w); errors.Is(err, http.ErrNotSupported) {
		writeError(w, http.StatusInternalServerError, protocol.CodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", defaults.ContentTypeSSE)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	s.metrics.streams.Inc()
	defer s.metrics.streams.Dec()
	log.Printf("[refserver] STREAM ATTACHED  session=%s", sess.ID())
	defer log.Printf("[refserver] STREAM DETACHED  session=%s", sess.ID())

	ticker := time.NewTicker(duration.KeepAlive)
	defer ticker.Stop()

	eventID := 0
	for {
		select {
		case frame := <-sess.Outbound():
			eventID++
			if err := writeSSEEvent(w, rc, eventID, frame); err != nil {
				return
			}
		case <-ticker.C:
			// Comment frames defeat proxy idle timeouts without waking
			// the peer's JSON parser. A failed write or flush means the
			// client is gone, so the stream slot is released right away.
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-sess.Gone():
			return
		case <-r.Context().Done():
			return
		}
	}
}

// flushSupport reports whether w can flush at all, without committing the
// response header the way ResponseController.Flush would.
func flushSupport(w http.ResponseWriter) error {
	for {
		switch f := w.(type) {
		case interface{ FlushError() error }:
			return nil
		case http.Flusher:
			return nil
		case interface{ Unwrap() http.ResponseWriter }:
			w = f.Unwrap()
		default:
			return http.ErrNotSupported
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, rc *http.ResponseController, id int, data []byte) error {
	if _, err := fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", id, data); err != nil {
		return err
	}
	return rc.Flush()
}

// ---------------------------------------------------------------------------
// DELETE — session teardown
// ---------------------------------------------------------------------------

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sid := sessionFromRequest(r)
	if sid == "" {
		writeError(w, http.StatusBadRequest, protocol.CodeInvalidRequest, "session id required")
		return
	}
	if err := s.sessions.Remove(sid); err != nil {
		writeError(w, http.StatusNotFound, protocol.CodeInvalidRequest, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Session plumbing
// ---------------------------------------------------------------------------

// resolveSession maps the request's session id to a live session. With
// require set, a missing id is an error; otherwise a sessionless request
// proceeds (it is either an initialize or about to fail in dispatch).
// The version-header rule for the newest revision is enforced here, once
// per request, before any dispatch work.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request, require bool) (*session.Session, bool) {
	sid := sessionFromRequest(r)
	if sid == "" {
		if require {
			writeError(w, http.StatusBadRequest, protocol.CodeInvalidRequest, "session id required")
			return nil, false
		}
		return nil, true
	}

	sess, err := s.sessions.Get(sid)
	if err != nil {
		writeError(w, http.StatusNotFound, protocol.CodeInvalidRequest, "session not found")
		return nil, false
	}

	if sess.Initialized() && s.adapterForSession(sess).RequiresVersionHeader() {
		if got := r.Header.Get(defaults.HeaderProtocolVersion); got != sess.Revision() {
			writeError(w, http.StatusBadRequest, protocol.CodeInvalidRequest,
				fmt.Sprintf("MCP-Protocol-Version header must be %s", sess.Revision()))
			return nil, false
		}
	}
	return sess, true
}

func sessionFromRequest(r *http.Request) string {
	if sid := r.Header.Get(defaults.HeaderSessionID); sid != "" {
		return sid
	}
	return r.URL.Query().Get(defaults.QuerySessionID)
}

// writeError sends a JSON-RPC error frame with the given HTTP status.
func writeError(w http.ResponseWriter, httpStatus, code int, message string) {
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(httpStatus)
	_, _ = w.Write(encodeResponse(errResponse(protocol.Null, code, message)))
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"mcpconform-refserver"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"mcpconform-refserver"}`))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware adds the permissive CORS surface browser-based clients
// need. Requests without an Origin header pass through untouched:
// setting "*" together with Allow-Credentials would violate the Fetch
// specification.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Vary on Origin so caches keep browser and non-browser
		// responses apart.
		w.Header().Add("Vary", "Origin")

		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers",
			strings.Join([]string{
				"Content-Type",
				"Authorization",
				defaults.HeaderSessionID,
				defaults.HeaderProtocolVersion,
				"Last-Event-ID",
				"Accept",
			}, ", "))
		w.Header().Set("Access-Control-Expose-Headers",
			defaults.HeaderSessionID+", "+defaults.HeaderProtocolVersion)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns handler panics into a 500 instead of a torn
// connection. If headers already went out (mid-stream), WriteHeader is a
// no-op and the client sees the stream end.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[refserver] panic in HTTP handler: %v\n%s", err, debug.Stack())
				w.Header().Set("Content-Type", defaults.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write(internalErrorFrame)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
