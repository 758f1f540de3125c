package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/calebforth/bastion/internal/auth"
	"github.com/calebforth/bastion/internal/models"
	pkgauth "github.com/calebforth/bastion/pkg/auth"
	pkghttp "github.com/calebforth/bastion/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (string, error)
	Logout(ctx context.Context, token string) error
	RegisterUser(ctx context.Context, firstName, lastName, email, password string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// AuthHandler handles authentication-related HTTP requests. Session and CSRF
// tokens travel in cookies; the CSRF token is additionally returned in the
// body so non-browser clients can echo it in X-CSRF-Token.
type AuthHandler struct {
	service         AuthServiceInterface
	csrfStore       *auth.CSRFTokenStore
	cookieConfig    auth.CookieConfig
	sessionDuration time.Duration
	csrfTokenTTL    time.Duration
	behindProxy     bool
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	csrfStore *auth.CSRFTokenStore,
	cookieConfig auth.CookieConfig,
	sessionDuration time.Duration,
	csrfTokenTTL time.Duration,
	behindProxy bool,
) *AuthHandler {
	return &AuthHandler{
		service:         service,
		csrfStore:       csrfStore,
		cookieConfig:    cookieConfig,
		sessionDuration: sessionDuration,
		csrfTokenTTL:    csrfTokenTTL,
		behindProxy:     behindProxy,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// CSRFTokenResponse carries a freshly issued CSRF token
type CSRFTokenResponse struct {
	Token string `json:"csrf_token"`
}

// Login authenticates a user and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ClientIP(r, h.behindProxy)
	userAgent := pkghttp.UserAgent(r)

	token, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, token, h.sessionDuration, h.cookieConfig)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged in"})
}

// Logout ends the current session. Succeeds even without one.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.SessionTokenFromRequest(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	auth.ClearSessionCookie(w, h.cookieConfig)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}

// Register creates a new account. Failures the caller could probe with are
// collapsed into one generic message.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	user, err := h.service.RegisterUser(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrRegistrationFailed) {
			// Same status and message for duplicate emails to prevent
			// enumeration.
			pkghttp.WriteBadRequest(w, "Registration failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// ChangePassword updates the authenticated user's password and invalidates
// every session they own, including the one making this request.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := pkgauth.ValidatePassword(req.NewPassword); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearSessionCookie(w, h.cookieConfig)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Password changed. Please log in again."})
}

// CSRFToken issues a single-use CSRF token, both as a JS-readable cookie and
// in the response body.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfStore.GenerateToken()
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetCSRFCookie(w, token, h.csrfTokenTTL, h.cookieConfig)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(CSRFTokenResponse{Token: token})
}
