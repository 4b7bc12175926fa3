// Package httpclient provides a shared, tuned HTTP client factory.
// A conformance run fires many small requests at a single endpoint, so
// connection pooling and keep-alive reuse matter more than per-host
// concurrency. The client never follows redirects: probes need to see
// the redirect response itself, not where it leads.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 30s)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification. Targets
	// under test often run self-signed in CI.
	InsecureSkipVerify bool

	// Proxy is the HTTP/HTTPS proxy URL (optional)
	Proxy string

	// MaxIdleConns is the maximum number of idle connections across all hosts (default: 100)
	MaxIdleConns int

	// MaxConnsPerHost is the maximum connections per host (default: 25)
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay in pool (default: 90s)
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives if true (default: false)
	DisableKeepAlives bool

	// DialTimeout is the timeout for establishing connections (default: 10s)
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for TLS handshake (default: 10s)
	TLSHandshakeTimeout time.Duration

	// UserAgent is sent on every request when non-empty.
	UserAgent string

	// AuthHeaders are added to every request and stripped on
	// cross-origin redirects.
	AuthHeaders http.Header

	// RetryCount retries transport errors and 429/503 responses.
	RetryCount int

	// RetryDelay is the pause between retries.
	RetryDelay time.Duration
}

// DefaultConfig returns defaults tuned for conformance runs: one target,
// sustained keep-alive reuse, and certificate checks relaxed for local
// deployments.
func DefaultConfig() Config {
	return Config{
		Timeout:             duration.ContextShort,
		InsecureSkipVerify:  true,
		MaxIdleConns:        100,
		MaxConnsPerHost:     25,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DisableKeepAlives:   false,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
		UserAgent:           defaults.UAMinimal,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns a shared, pre-configured HTTP client.
// This client is safe for concurrent use and employs connection pooling.
// All packages should prefer Default() over creating their own clients.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// New creates a new HTTP client with the given configuration.
// Use this when you need a client with non-default settings.
func New(cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = duration.ContextShort
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 25
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = duration.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = duration.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = duration.TLSHandshake
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.TCPKeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: duration.StreamFast,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,

		DialContext: dialer.DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err == nil && proxyURL != nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		// Malformed proxy URLs are ignored; the run proceeds direct.
	}

	var rt http.RoundTripper = transport
	if needsMiddleware(cfg) {
		rt = &middlewareTransport{
			base:        transport,
			userAgent:   cfg.UserAgent,
			authHeaders: cfg.AuthHeaders,
			retryCount:  cfg.RetryCount,
			retryDelay:  cfg.RetryDelay,
		}
	}

	checkRedirect := func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if len(cfg.AuthHeaders) > 0 {
		checkRedirect = redirectPolicyWithAuthStrip(cfg.AuthHeaders)
	}

	return &http.Client{
		Transport:     rt,
		Timeout:       cfg.Timeout,
		CheckRedirect: checkRedirect,
	}
}

// WithTimeout returns a new Config based on DefaultConfig with the specified timeout.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}
