package http

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIP_DirectConnection(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:54321"

	if got := ClientIP(r, false); got != "203.0.113.7" {
		t.Errorf("expected peer address without port, got %q", got)
	}
}

func TestClientIP_IgnoresHeadersWhenNotBehindProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:54321"
	r.Header.Set("X-Forwarded-For", "198.51.100.99")
	r.Header.Set("X-Real-IP", "198.51.100.98")

	// Spoofed headers from an untrusted peer must not change the key.
	if got := ClientIP(r, false); got != "203.0.113.7" {
		t.Errorf("expected literal peer address, got %q", got)
	}
}

func TestClientIP_ForwardedForFirstEntry(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:80"
	r.Header.Set("X-Forwarded-For", "198.51.100.99, 10.0.0.2, 10.0.0.1")

	if got := ClientIP(r, true); got != "198.51.100.99" {
		t.Errorf("expected first forwarded entry, got %q", got)
	}
}

func TestClientIP_RealIPFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:80"
	r.Header.Set("X-Real-IP", " 198.51.100.42 ")

	if got := ClientIP(r, true); got != "198.51.100.42" {
		t.Errorf("expected X-Real-IP value, got %q", got)
	}
}

func TestClientIP_BehindProxyWithoutHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:80"

	if got := ClientIP(r, true); got != "10.0.0.1" {
		t.Errorf("expected peer address fallback, got %q", got)
	}
}

func TestUserAgent_Truncates(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", strings.Repeat("a", 2000))

	if got := UserAgent(r); len(got) != 512 {
		t.Errorf("expected truncation to 512 bytes, got %d", len(got))
	}
}
