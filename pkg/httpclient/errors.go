package httpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrProxyConnect indicates the client failed to connect through
	// the configured proxy.
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrDNS indicates a DNS resolution failure for the target host.
	ErrDNS = errors.New("httpclient: DNS resolution failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")
)

// Classify tags err with the matching sentinel so callers can report
// "could not resolve" against "certificate rejected" without string
// matching. Unrecognized errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrDNS, err)
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return fmt.Errorf("%w: %v", ErrTLS, err)
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return fmt.Errorf("%w: %v", ErrTLS, err)
	}

	// net/http tags proxy dial failures with this prefix.
	if strings.Contains(err.Error(), "proxyconnect") {
		return fmt.Errorf("%w: %v", ErrProxyConnect, err)
	}

	return err
}
