package auth

import (
	"context"
	"net/http"

	"github.com/calebforth/bastion/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

// UserContextKey is the key for the authenticated user in the request context
const UserContextKey contextKey = "user"

// SessionValidator resolves a session token to its owning user. A nil user
// with a nil error means the session is absent, expired, or orphaned; only
// infrastructure failures are errors.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*models.User, error)
}

// UserFromContext returns the authenticated user, or nil when the request is
// unauthenticated.
func UserFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// RequireSession validates the session cookie and injects the user into the
// request context. Requests with a missing or invalid session get 401.
func RequireSession(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionTokenFromRequest(r)
			if token == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			user, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				// Missing, expired, or orphaned session: plain unauthenticated,
				// indistinguishable from never having logged in.
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only authenticated users holding the given role.
// Must be mounted inside RequireSession.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if user.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
