package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/calebforth/bastion/internal/auth"
	pkghttp "github.com/calebforth/bastion/pkg/http"
)

// RateLimitByIP enforces the sliding-window limiter per client address.
// Rejected requests do not consume budget, so a flooding client regains
// access one full window after its last accepted request.
func RateLimitByIP(limiter *auth.RateLimiter, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ClientIP(r, limiter.BehindProxy())

			if !limiter.Allow(ip) {
				logger.Warn("rate limit exceeded",
					slog.String("ip_address", ip),
					slog.String("path", r.URL.Path))
				pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralRateLimit is a coarse request ceiling for non-sensitive routes,
// counted per IP with a fixed window.
func GeneralRateLimit(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
