package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runSecurityHeaders(env string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	handler(testHandler).ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_AlwaysPresent(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		w := runSecurityHeaders(env, nil)

		tests := []struct {
			header   string
			expected string
		}{
			{"X-Frame-Options", "DENY"},
			{"X-Content-Type-Options", "nosniff"},
			{"X-XSS-Protection", "1; mode=block"},
			{"Referrer-Policy", "strict-origin-when-cross-origin"},
			{"Cache-Control", "no-store"},
		}

		for _, tt := range tests {
			if got := w.Header().Get(tt.header); got != tt.expected {
				t.Errorf("env %s, header %s: got %q, want %q", env, tt.header, got, tt.expected)
			}
		}

		csp := w.Header().Get("Content-Security-Policy")
		if !strings.Contains(csp, "default-src 'none'") {
			t.Errorf("env %s: CSP should forbid all loading for a JSON API, got %q", env, csp)
		}
	}
}

func TestSecurityHeaders_HSTSOnlyForProductionHTTPS(t *testing.T) {
	// Production behind a TLS-terminating proxy: HSTS is sent.
	w := runSecurityHeaders("production", func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing for production HTTPS")
	}

	// Production over plain HTTP: no HSTS.
	w = runSecurityHeaders("production", nil)
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should not be sent over plain HTTP, got %q", got)
	}

	// Development never sends HSTS.
	w = runSecurityHeaders("development", func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should not be sent in development, got %q", got)
	}
}
