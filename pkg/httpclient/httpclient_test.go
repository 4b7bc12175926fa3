package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcpconform/mcpconform/pkg/duration"
)

func TestNew_AppliesDefaults(t *testing.T) {
	client := New(Config{})
	if client.Timeout != duration.ContextShort {
		t.Errorf("Expected default timeout %v, got %v", duration.ContextShort, client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("Expected transport to be configured")
	}
}

func TestDefault_SharedInstance(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Error("Expected Default() to return the same client instance")
	}
}

func TestClient_DoesNotFollowRedirects(t *testing.T) {
	var landed atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			landed.Store(true)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := New(Config{})
	resp, err := client.Get(server.URL + "/start")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302, got %d", resp.StatusCode)
	}
	if landed.Load() {
		t.Error("Client should not have followed the redirect")
	}
}

func TestMiddleware_SetsUserAgent(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := Config{UserAgent: "conform-probe/1.0"}
	client := New(cfg)
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if ua, _ := gotUA.Load().(string); ua != "conform-probe/1.0" {
		t.Errorf("Expected custom user agent, got %q", ua)
	}
}

func TestMiddleware_AuthHeadersApplied(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer probe-token")
	client := New(Config{AuthHeaders: headers})

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if auth, _ := gotAuth.Load().(string); auth != "Bearer probe-token" {
		t.Errorf("Expected auth header, got %q", auth)
	}
}

func TestMiddleware_RetriesOn503(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{RetryCount: 2, RetryDelay: time.Millisecond})
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 after retry, got %d", resp.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls.Load())
	}
}

func TestMiddleware_NoRetryExhaustionReturnsLast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{RetryCount: 1, RetryDelay: time.Millisecond})
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 after exhausting retries, got %d", resp.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls.Load())
	}
}
