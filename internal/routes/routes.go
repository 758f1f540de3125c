package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/calebforth/bastion/internal/auth"
	"github.com/calebforth/bastion/internal/handlers"
	"github.com/calebforth/bastion/internal/middleware"
	"github.com/calebforth/bastion/internal/models"
	"github.com/calebforth/bastion/internal/services"
)

// RegisterRoutes registers all application routes.
//
// Login and registration sit behind the strict sliding-window limiter; other
// routes get the coarse per-minute ceiling. All state-changing routes require
// a single-use CSRF token.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	usersHandler *handlers.UsersHandler,
	authService *services.AuthService,
	authLimiter *auth.RateLimiter,
	csrfStore *auth.CSRFTokenStore,
	generalRateLimit int,
	logger *slog.Logger,
) {
	csrfProtect := middleware.CSRFProtection(csrfStore, logger)
	strictLimit := middleware.RateLimitByIP(authLimiter, logger)
	generalLimit := middleware.GeneralRateLimit(generalRateLimit)

	// Public routes
	router.Group(func(r chi.Router) {
		r.Use(generalLimit)
		r.Get("/auth/csrf", authHandler.CSRFToken)
	})

	// Credential endpoints: strict rate limit plus CSRF.
	router.Group(func(r chi.Router) {
		r.Use(strictLimit)
		r.Use(csrfProtect)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
	})

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(generalLimit)
		r.Use(auth.RequireSession(authService))
		r.Use(csrfProtect)

		r.Get("/me", usersHandler.Me)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/change-password", authHandler.ChangePassword)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/users", usersHandler.List)
			r.Delete("/users/{id}", usersHandler.Delete)
		})
	})
}
