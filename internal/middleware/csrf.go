package middleware

import (
	"log/slog"
	"net/http"

	"github.com/calebforth/bastion/internal/auth"
	pkghttp "github.com/calebforth/bastion/pkg/http"
)

// CSRFProtection validates single-use CSRF tokens on state-changing requests
// (POST, PUT, DELETE, PATCH). The token is read from the X-CSRF-Token header
// first, then from the csrf_token form value. A token that passes validation
// is consumed immediately, so replaying a captured request fails.
func CSRFProtection(store *auth.CSRFTokenStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-CSRF-Token")
			if token == "" {
				token = r.PostFormValue("csrf_token")
			}

			if token == "" {
				logger.Warn("csrf token missing",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token missing")
				return
			}

			if !store.ValidateToken(token) {
				logger.Warn("csrf token invalid",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token invalid")
				return
			}

			// Single use: consume the token before the handler runs.
			store.DeleteToken(token)

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
