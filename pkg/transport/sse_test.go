package transport

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestEventScanner_SingleEvent(t *testing.T) {
	stream := "data: {\"jsonrpc\":\"2.0\"}\n\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev, err := sc.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(ev.Data) != `{"jsonrpc":"2.0"}` {
		t.Errorf("Unexpected data: %q", ev.Data)
	}

	if _, err := sc.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF, got %v", err)
	}
}

func TestEventScanner_MultiLineData(t *testing.T) {
	stream := "data: line one\ndata: line two\n\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev, err := sc.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(ev.Data) != "line one\nline two" {
		t.Errorf("Expected joined data lines, got %q", ev.Data)
	}
}

func TestEventScanner_FieldsAndComments(t *testing.T) {
	stream := ": keepalive\n" +
		"id: 42\n" +
		"event: message\n" +
		"retry: 3000\n" +
		"data: payload\n" +
		"\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev, err := sc.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.ID != "42" {
		t.Errorf("Expected id 42, got %q", ev.ID)
	}
	if ev.Type != "message" {
		t.Errorf("Expected event type message, got %q", ev.Type)
	}
	if string(ev.Data) != "payload" {
		t.Errorf("Unexpected data: %q", ev.Data)
	}
}

func TestEventScanner_CommentOnlyStream(t *testing.T) {
	stream := ": ping\n\n: ping\n\n"
	sc := NewEventScanner(strings.NewReader(stream))

	if _, err := sc.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Comment-only stream should yield EOF, got %v", err)
	}
}

func TestEventScanner_CRLFLines(t *testing.T) {
	stream := "data: windows\r\n\r\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev, err := sc.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(ev.Data) != "windows" {
		t.Errorf("Expected CR stripped, got %q", ev.Data)
	}
}

func TestEventScanner_UnterminatedFinalEvent(t *testing.T) {
	stream := "data: last words\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev, err := sc.Next()
	if err != nil {
		t.Fatalf("Expected the unterminated event, got error: %v", err)
	}
	if string(ev.Data) != "last words" {
		t.Errorf("Unexpected data: %q", ev.Data)
	}
	if _, err := sc.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF after final event, got %v", err)
	}
}

func TestEventScanner_NoSpaceAfterColon(t *testing.T) {
	stream := "data:tight\n\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev, err := sc.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(ev.Data) != "tight" {
		t.Errorf("Expected value without separator space, got %q", ev.Data)
	}
}

func TestEventScanner_MultipleEvents(t *testing.T) {
	stream := "data: first\n\ndata: second\n\n"
	sc := NewEventScanner(strings.NewReader(stream))

	ev1, err := sc.Next()
	if err != nil {
		t.Fatalf("First Next failed: %v", err)
	}
	ev2, err := sc.Next()
	if err != nil {
		t.Fatalf("Second Next failed: %v", err)
	}
	if string(ev1.Data) != "first" || string(ev2.Data) != "second" {
		t.Errorf("Events out of order: %q, %q", ev1.Data, ev2.Data)
	}
}
