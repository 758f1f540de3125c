package http

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client address used as the rate-limit key and stored
// on sessions and login attempts.
//
// When behindProxy is false the literal transport-level peer address is used
// and forwarded headers are ignored entirely; trusting them would let any
// client claim a fresh address per request and bypass rate limiting. When
// behindProxy is true (the process sits behind a trusted reverse proxy that
// sets the headers), the first entry of X-Forwarded-For is used, falling back
// to X-Real-IP, then to the peer address.
func ClientIP(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// X-Forwarded-For may contain: "client, proxy1, proxy2"
			if i := strings.IndexByte(xff, ','); i > 0 {
				return strings.TrimSpace(xff[:i])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	// RemoteAddr is "host:port"; strip the port
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// UserAgent returns the request's User-Agent header, truncated to a sane
// length so hostile clients cannot bloat attempt records.
func UserAgent(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	const maxLen = 512
	if len(ua) > maxLen {
		return ua[:maxLen]
	}
	return ua
}
