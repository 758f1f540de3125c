package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebforth/bastion/internal/auth"
	"github.com/calebforth/bastion/internal/models"
	pkgauth "github.com/calebforth/bastion/pkg/auth"
	pkglogger "github.com/calebforth/bastion/pkg/logger"
)

// UserRepository defines the user persistence contract consumed by the
// authenticator. Implementations must return models.ErrNotFound for misses
// and models.ErrConflict for unique-constraint violations.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	CreateWithPassword(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// SessionRepository defines the session persistence contract.
// GetByToken returns nil, nil for a missing session.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// LoginAttemptRepository is the append-only attempt ledger.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, email string, window time.Duration) (int, error)
	CountRecentFailuresByIP(ctx context.Context, ipAddress string, window time.Duration) (int, error)
}

// ipFailureAlertThreshold is the per-address failure count within the lockout
// window past which a spraying source is flagged in the audit log. It does
// not block anything; lockout stays keyed by email.
const ipFailureAlertThreshold = 20

// AuthConfig holds the authenticator's policy knobs.
type AuthConfig struct {
	BcryptCost       int
	SessionDuration  time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration
}

// DefaultAuthConfig returns the documented policy: 24h sessions and a
// 5-failure / 15-minute lockout.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		BcryptCost:       pkgauth.DefaultBcryptCost,
		SessionDuration:  24 * time.Hour,
		LockoutThreshold: 5,
		LockoutWindow:    15 * time.Minute,
	}
}

// AuthService orchestrates login, logout, session validation, registration,
// password change, and lockout enforcement over the persistence contracts.
// It holds no in-process lock: conflicting writes are serialized by the
// persistence layer (unique constraints on session token and user email),
// and two concurrent logins for the same user simply produce two sessions.
type AuthService struct {
	users       UserRepository
	sessions    SessionRepository
	attempts    LoginAttemptRepository
	config      AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	sessions SessionRepository,
	attempts LoginAttemptRepository,
	config AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		attempts:    attempts,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// IsAccountLocked reports whether the presented email has reached the lockout
// threshold within the window. Keyed by email, not address: spraying from
// many addresses does not evade it, and callers can short-circuit before the
// expensive credential check.
func (s *AuthService) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	count, err := s.attempts.CountRecentFailures(ctx, email, s.config.LockoutWindow)
	if err != nil {
		return false, fmt.Errorf("failed to count recent failures: %w", err)
	}
	return count >= s.config.LockoutThreshold, nil
}

// Login authenticates a user and creates a session, returning the opaque
// session token. Every failure except lockout collapses to
// models.ErrInvalidCredentials so the caller cannot distinguish an unknown
// email from a wrong password or an inactive account.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// Lockout check comes before any credential work.
	locked, err := s.IsAccountLocked(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to check lockout: %w", err)
	}
	if locked {
		s.logger.Warn("login attempt against locked account",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("ip_address", ipAddress))
		return "", models.ErrAccountLocked
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a bcrypt comparison against the fixed dummy hash so this
			// path costs the same as "user exists, wrong password".
			pkgauth.CompareDummy(password)
			s.recordFailedAttempt(ctx, email, ipAddress, userAgent)
			return "", models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if user.PasswordHash == "" {
		s.recordFailedAttempt(ctx, email, ipAddress, userAgent)
		return "", models.ErrInvalidCredentials
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordFailedAttempt(ctx, email, ipAddress, userAgent)
		return "", models.ErrInvalidCredentials
	}

	// Status is checked after verification and not leaked either.
	if user.Status != models.StatusActive {
		s.recordFailedAttempt(ctx, email, ipAddress, userAgent)
		return "", models.ErrInvalidCredentials
	}

	if err := s.attempts.Record(ctx, &models.LoginAttempt{
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	}); err != nil {
		s.logger.Error("failed to record successful attempt", slog.Any("error", err))
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	session := &models.Session{
		UserID:    user.ID,
		Token:     token,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(s.config.SessionDuration),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return token, nil
}

// recordFailedAttempt appends a failed attempt to the ledger. Ledger write
// failures are logged, not surfaced; the login error the caller sees is
// already decided.
func (s *AuthService) recordFailedAttempt(ctx context.Context, email, ipAddress, userAgent string) {
	if err := s.attempts.Record(ctx, &models.LoginAttempt{
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   false,
	}); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		FailureReason: "invalid_credentials",
		Success:       false,
	})

	// Email-keyed lockout does not see one source spraying many accounts, so
	// flag those separately.
	if count, err := s.attempts.CountRecentFailuresByIP(ctx, ipAddress, s.config.LockoutWindow); err == nil && count >= ipFailureAlertThreshold {
		s.logger.Warn("elevated failure rate from single address",
			slog.String("ip_address", ipAddress),
			slog.Int("recent_failures", count))
	}
}

// ValidateSession resolves a session token to its user. Returns nil, nil for
// anything that is simply "not authenticated": unknown token, expired
// session, or a session whose owning user no longer exists. Expired and
// orphaned sessions are deleted as a side effect.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Expired(time.Now()) {
		if err := s.sessions.DeleteByToken(ctx, token); err != nil {
			s.logger.Error("failed to delete expired session", slog.Any("error", err))
		}
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// User deleted out from under a live session; clean up the orphan.
			if derr := s.sessions.DeleteByToken(ctx, token); derr != nil {
				s.logger.Error("failed to delete orphaned session", slog.Any("error", derr))
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session user: %w", err)
	}

	return user, nil
}

// Logout deletes the session unconditionally. Succeeds even if the token was
// already gone; a logout-and-validate race nets out to "unauthenticated".
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteByToken(ctx, token)
}

// RegisterUser creates a new account with role "user" and status "active".
// Every failure the caller could probe with (duplicate email, hashing
// failure) collapses to models.ErrRegistrationFailed.
func (s *AuthService) RegisterUser(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: email already registered",
			slog.String("email", pkglogger.SanitizedEmail(email)))
		return nil, models.ErrRegistrationFailed
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for existing user", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check for existing user: %w", err)
	}

	hash, err := pkgauth.HashPasswordCost(password, s.config.BcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrRegistrationFailed
	}

	user := &models.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}

	created, err := s.users.CreateWithPassword(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost a race with a concurrent registration for the same email.
			return nil, models.ErrRegistrationFailed
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	s.auditLogger.LogAccountAction("user_registered", created.ID, "", nil)

	return created, nil
}

// ChangePassword verifies the current password, persists the new hash, and
// then deletes every session the user owns so all devices re-authenticate.
// The session purge is best-effort: the password change is not rolled back
// if it fails, since a changed password with stale sessions is safer than
// silently reverting.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(userID, "", false)
		return models.ErrInvalidCredentials
	}

	newHash, err := pkgauth.HashPasswordCost(newPassword, s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Error("failed to invalidate sessions after password change",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}

	s.logger.Info("password changed, sessions invalidated", slog.String("user_id", userID))
	s.auditLogger.LogPasswordChange(userID, "", true)

	return nil
}

// CleanupExpiredSessions removes sessions past their expiry. Called by the
// background reaper; safe to run on every tick.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	if count > 0 {
		s.logger.Info("expired sessions removed", slog.Int64("count", count))
	}
	return count, nil
}
