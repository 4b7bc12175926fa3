package httpclient

import (
	"net/http"
	"time"

	"github.com/mcpconform/mcpconform/pkg/iohelper"
)

// middlewareTransport wraps a base RoundTripper to add request-level
// middleware: a fixed User-Agent, auth headers, and retry logic.
//
// Features:
//   - User-Agent header per request
//   - Auth headers on initial request (stripped on cross-origin redirects)
//   - Retry on transport errors and HTTP 429/503 responses
type middlewareTransport struct {
	base        http.RoundTripper
	userAgent   string
	authHeaders http.Header
	retryCount  int
	retryDelay  time.Duration
}

// retryableStatusCodes are HTTP status codes that trigger automatic retry.
// 429 = Too Many Requests, 503 = Service Unavailable (peer still booting).
var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

// RoundTrip implements http.RoundTripper with middleware.
func (m *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the caller's request.
	r := req.Clone(req.Context())

	if m.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", m.userAgent)
	}

	for key, vals := range m.authHeaders {
		for _, v := range vals {
			r.Header.Add(key, v)
		}
	}

	attempts := m.retryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var resp *http.Response
	var err error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			if m.retryDelay > 0 {
				time.Sleep(m.retryDelay)
			}
			// Reset body for retry if possible.
			if r.GetBody != nil {
				r.Body, _ = r.GetBody()
			}
		}

		resp, err = m.base.RoundTrip(r)
		if err != nil {
			continue // Transport error, retry.
		}

		if retryableStatusCodes[resp.StatusCode] && i < attempts-1 {
			// Drain and close the body before retry.
			iohelper.DrainAndClose(resp.Body)
			continue
		}

		return resp, nil
	}

	return resp, err
}

// needsMiddleware reports whether the config requires the middleware transport.
func needsMiddleware(cfg Config) bool {
	return cfg.UserAgent != "" ||
		len(cfg.AuthHeaders) > 0 ||
		cfg.RetryCount > 0
}

// redirectPolicyWithAuthStrip returns a CheckRedirect function that strips
// auth headers on cross-origin redirects to prevent credential leakage.
func redirectPolicyWithAuthStrip(authHeaders http.Header) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) == 0 {
			return http.ErrUseLastResponse
		}

		originalHost := via[0].URL.Host
		if req.URL.Host != originalHost {
			for key := range authHeaders {
				req.Header.Del(key)
			}
		}

		return http.ErrUseLastResponse
	}
}
