package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calebforth/bastion/internal/auth"
	"github.com/calebforth/bastion/internal/models"
	pkghttp "github.com/calebforth/bastion/pkg/http"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// UserDirectory is the user persistence surface the handler needs
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Delete(ctx context.Context, id string) error
}

// SessionRevoker invalidates all sessions belonging to a user
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// UsersHandler handles user profile and admin user management requests
type UsersHandler struct {
	users    UserDirectory
	sessions SessionRevoker
	logger   *slog.Logger
}

// NewUsersHandler creates a new UsersHandler
func NewUsersHandler(users UserDirectory, sessions SessionRevoker, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// Me returns the authenticated user's profile.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(user)
}

// List returns a page of users. Admin only; enforced by route middleware.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			pkghttp.WriteBadRequest(w, "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list users", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// Delete removes a user account and revokes their sessions. Admin only.
// The session purge is best-effort: a missed session is caught at validation
// time once its owner is gone.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	// Admins cannot delete themselves; that path belongs to account closure.
	if actor := auth.UserFromContext(r.Context()); actor != nil && actor.ID == id {
		pkghttp.WriteBadRequest(w, "Cannot delete your own account")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if err := h.sessions.DeleteByUserID(r.Context(), id); err != nil {
		h.logger.Error("failed to revoke sessions for deleted user",
			slog.String("user_id", id), slog.Any("error", err))
	}

	w.WriteHeader(http.StatusNoContent)
}
