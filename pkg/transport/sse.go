package transport

import (
	"bufio"
	"bytes"
	"io"

	"github.com/mcpconform/mcpconform/pkg/defaults"
)

// Event is one server-sent event as read off the wire.
type Event struct {
	// ID is the "id:" field, "" when the server sent none.
	ID string

	// Type is the "event:" field, "" meaning the default "message".
	Type string

	// Data is the payload: all "data:" lines joined with a newline.
	Data []byte
}

// EventScanner incrementally parses a text/event-stream body. Comment
// lines (the keepalive idiom) are skipped, field lines accumulate, and a
// blank line completes an event.
type EventScanner struct {
	sc *bufio.Scanner
}

// NewEventScanner wraps r, typically a streaming response body.
func NewEventScanner(r io.Reader) *EventScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, defaults.BufferLarge), defaults.BufferMax)
	return &EventScanner{sc: sc}
}

// Next blocks until a complete event arrives. It returns io.EOF when the
// stream ends cleanly with no partial event pending; a final event the
// server forgot to terminate is still returned.
func (s *EventScanner) Next() (*Event, error) {
	var (
		ev       Event
		data     [][]byte
		sawField bool
	)
	flush := func() *Event {
		ev.Data = bytes.Join(data, []byte("\n"))
		return &ev
	}

	for s.sc.Scan() {
		line := bytes.TrimSuffix(s.sc.Bytes(), []byte("\r"))
		if len(line) == 0 {
			if !sawField {
				continue
			}
			return flush(), nil
		}
		if line[0] == ':' {
			continue
		}
		field, value := splitEventField(line)
		switch field {
		case "data":
			data = append(data, bytes.Clone(value))
			sawField = true
		case "event":
			ev.Type = string(value)
			sawField = true
		case "id":
			ev.ID = string(value)
			sawField = true
		case "retry":
			// Reconnection hints are parsed and ignored; the harness
			// never auto-reconnects a stream under test.
			sawField = true
		}
	}

	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	if sawField {
		return flush(), nil
	}
	return nil, io.EOF
}

// splitEventField cuts "field: value", stripping the single optional
// space after the colon.
func splitEventField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}
