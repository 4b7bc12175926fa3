package refserver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/session"
)

// ServeStdio serves line-delimited JSON-RPC on an io pair until r reaches
// EOF or a write fails. The connection holds at most one session, created
// by the initialize request; server-initiated frames are interleaved with
// responses on w.
//
// Cancellation is cooperative: ctx is checked between frames, but a
// blocked read only ends when the peer closes its end.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, defaults.BufferLarge), defaults.BufferMax)

	var (
		sess *session.Session
		wmu  sync.Mutex
	)
	defer func() {
		if sess != nil {
			_ = s.sessions.Remove(sess.ID())
		}
	}()

	log.Printf("[refserver] STDIO SERVING")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frame := bytes.Clone(line)

		payload, created := s.HandleFrame(ctx, sess, frame)
		if created != nil {
			sess = created
			go s.pumpOutbound(ctx, created, w, &wmu)
		}
		if payload != nil {
			if err := writeFrame(w, &wmu, payload); err != nil {
				return fmt.Errorf("refserver: write response: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return fmt.Errorf("refserver: frame exceeds %d bytes", defaults.BufferMax)
		}
		return fmt.Errorf("refserver: read: %w", err)
	}
	log.Printf("[refserver] STDIO EOF")
	return nil
}

// pumpOutbound drains a session's push queue onto the shared writer. It
// claims the session's stream slot so Stats reflect the attachment.
func (s *Server) pumpOutbound(ctx context.Context, sess *session.Session, w io.Writer, wmu *sync.Mutex) {
	if err := sess.AttachStream(); err != nil {
		return
	}
	defer sess.DetachStream()

	for {
		select {
		case frame := <-sess.Outbound():
			if err := writeFrame(w, wmu, frame); err != nil {
				return
			}
		case <-sess.Gone():
			return
		case <-ctx.Done():
			return
		}
	}
}

// writeFrame appends the line terminator and performs a single write, so
// concurrent writers cannot interleave partial frames.
func writeFrame(w io.Writer, wmu *sync.Mutex, frame []byte) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')

	wmu.Lock()
	defer wmu.Unlock()
	_, err := w.Write(buf)
	return err
}
