package httpclient

import (
	"errors"
	"net"
	"testing"
)

func TestClassify_DNSError(t *testing.T) {
	raw := &net.DNSError{Err: "no such host", Name: "missing.invalid"}
	err := Classify(raw)
	if !errors.Is(err, ErrDNS) {
		t.Errorf("Expected ErrDNS, got %v", err)
	}
}

func TestClassify_ProxyConnect(t *testing.T) {
	raw := errors.New("proxyconnect tcp: dial tcp 127.0.0.1:9999: connection refused")
	err := Classify(raw)
	if !errors.Is(err, ErrProxyConnect) {
		t.Errorf("Expected ErrProxyConnect, got %v", err)
	}
}

func TestClassify_PassthroughUnknown(t *testing.T) {
	raw := errors.New("connection reset by peer")
	err := Classify(raw)
	if err != raw {
		t.Errorf("Expected unknown error to pass through, got %v", err)
	}
}

func TestClassify_Nil(t *testing.T) {
	if err := Classify(nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	if errors.Is(ErrDNS, ErrTLS) || errors.Is(ErrTLS, ErrProxyConnect) {
		t.Error("Sentinel errors must not match each other")
	}
}
