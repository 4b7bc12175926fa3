package protocol

import (
	"strings"
	"testing"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
)

func TestMessageKind(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Kind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, KindRequest},
		{"request string id", `{"jsonrpc":"2.0","id":"a-1","method":"ping"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, KindNotification},
		{"notification null id", `{"jsonrpc":"2.0","id":null,"method":"notifications/progress"}`, KindNotification},
		{"response result", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"response error", `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, KindResponse},
		{"empty object", `{}`, KindInvalid},
		{"id only", `{"jsonrpc":"2.0","id":4}`, KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := jsonutil.Unmarshal([]byte(tt.frame), &m); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.frame, err)
			}
			if got := m.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageHasID(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{"numeric", `{"jsonrpc":"2.0","id":7,"method":"ping"}`, true},
		{"string", `{"jsonrpc":"2.0","id":"x","method":"ping"}`, true},
		{"zero is still an id", `{"jsonrpc":"2.0","id":0,"method":"ping"}`, true},
		{"null", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, false},
		{"absent", `{"jsonrpc":"2.0","method":"ping"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := jsonutil.Unmarshal([]byte(tt.frame), &m); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got := m.HasID(); got != tt.want {
				t.Errorf("HasID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIDKeyCorrelation(t *testing.T) {
	// Keys must match across cosmetic differences so a response correlates
	// with its request regardless of peer whitespace habits.
	var req, resp Message
	if err := jsonutil.Unmarshal([]byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`), &req); err != nil {
		t.Fatal(err)
	}
	if err := jsonutil.Unmarshal([]byte(`{"jsonrpc":"2.0","id": 42 ,"result":{}}`), &resp); err != nil {
		t.Fatal(err)
	}
	if req.IDKey() == "" || req.IDKey() != resp.IDKey() {
		t.Errorf("IDKey mismatch: request %q, response %q", req.IDKey(), resp.IDKey())
	}

	// String and numeric ids must not collide.
	var strID Message
	if err := jsonutil.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"42","method":"ping"}`), &strID); err != nil {
		t.Fatal(err)
	}
	if strID.IDKey() == req.IDKey() {
		t.Errorf("string id %q collides with numeric id %q", strID.IDKey(), req.IDKey())
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(int64(3), MethodToolsCall, CallToolParams{Name: "echo"})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	data, err := jsonutil.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{`"jsonrpc":"2.0"`, `"id":3`, `"method":"tools/call"`, `"name":"echo"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("frame %s missing %s", data, want)
		}
	}
}

func TestNewRequestNilParams(t *testing.T) {
	req, err := NewRequest(int64(1), MethodPing, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	data, err := jsonutil.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"params"`) {
		t.Errorf("nil params serialized: %s", data)
	}
}

func TestNewNotificationHasNoID(t *testing.T) {
	n, err := NewNotification(NotifInitialized, nil)
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	data, err := jsonutil.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"id"`) {
		t.Errorf("notification frame carries an id: %s", data)
	}
}

func TestIsBatch(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{"object", `{"jsonrpc":"2.0"}`, false},
		{"array", `[{"jsonrpc":"2.0"}]`, true},
		{"leading whitespace", "  \t\n[{}]", true},
		{"empty array", `[]`, true},
		{"empty input", ``, false},
		{"whitespace only", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBatch([]byte(tt.frame)); got != tt.want {
				t.Errorf("IsBatch(%q) = %v, want %v", tt.frame, got, tt.want)
			}
		})
	}
}

func TestErrorInReservedRange(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{CodeParseError, true},
		{CodeInvalidRequest, true},
		{CodeResourceNotFound, true},
		{-32000, true},
		{-32769, false},
		{-31999, false},
		{1, false},
	}
	for _, tt := range tests {
		e := NewError(tt.code, "x")
		if got := e.InReservedRange(); got != tt.want {
			t.Errorf("InReservedRange(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	e := NewError(CodeMethodNotFound, "Method not found")
	if got := e.Error(); got != "jsonrpc error -32601: Method not found" {
		t.Errorf("Error() = %q", got)
	}
}
