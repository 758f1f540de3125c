package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calebforth/bastion/internal/models"
	pkgauth "github.com/calebforth/bastion/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIP        = "203.0.113.7"
	testUserAgent = "test-agent/1.0"
)

// seedUser registers a user directly in the repository with a real (cheap)
// bcrypt hash so Login can verify against it.
func seedUser(t *testing.T, users *MemUserRepository, email, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPasswordCost(password, 4)
	require.NoError(t, err)

	user := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	_, err = users.CreateWithPassword(context.Background(), user)
	require.NoError(t, err)
	return user
}

// ============================================================================
// Login Tests
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	attempts := NewMemAttemptLedger()
	svc := newTestAuthService(users, sessions, attempts)

	seedUser(t, users, "user@example.com", "correct horse battery")

	token, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, sessions.Count())

	session, err := sessions.GetByToken(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, testIP, session.IPAddress)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)
}

func TestAuthService_Login_NormalizesEmail(t *testing.T) {
	users := NewMemUserRepository()
	svc := newTestAuthService(users, NewMemSessionRepository(), NewMemAttemptLedger())

	seedUser(t, users, "user@example.com", "correct horse battery")

	token, err := svc.Login(context.Background(), "  USER@Example.COM ", "correct horse battery", testIP, testUserAgent)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestAuthService_Login_UnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	users := NewMemUserRepository()
	attempts := NewMemAttemptLedger()
	svc := newTestAuthService(users, NewMemSessionRepository(), attempts)

	seedUser(t, users, "real@example.com", "correct horse battery")

	_, errUnknown := svc.Login(context.Background(), "ghost@example.com", "whatever", testIP, testUserAgent)
	_, errWrongPw := svc.Login(context.Background(), "real@example.com", "wrong password", testIP, testUserAgent)

	assert.ErrorIs(t, errUnknown, models.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPw, models.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())

	// Both paths land in the attempt ledger.
	assert.Len(t, attempts.Attempts(), 2)
}

func TestAuthService_Login_InactiveUserRejected(t *testing.T) {
	hash, err := pkgauth.HashPasswordCost("correct horse battery", 4)
	require.NoError(t, err)

	mockUsers := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{
				ID:           "user-1",
				Email:        email,
				PasswordHash: hash,
				Status:       models.StatusInactive,
			}, nil
		},
	}
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(mockUsers, sessions, NewMemAttemptLedger())

	_, err = svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, 0, sessions.Count())
}

func TestAuthService_Login_EmptyHashRejected(t *testing.T) {
	mockUsers := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{ID: "user-1", Email: email, Status: models.StatusActive}, nil
		},
	}
	attempts := NewMemAttemptLedger()
	svc := newTestAuthService(mockUsers, NewMemSessionRepository(), attempts)

	_, err := svc.Login(context.Background(), "sso-only@example.com", "any", testIP, testUserAgent)

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Len(t, attempts.Attempts(), 1)
	assert.False(t, attempts.Attempts()[0].Success)
}

func TestAuthService_Login_RecordsSuccessfulAttempt(t *testing.T) {
	users := NewMemUserRepository()
	attempts := NewMemAttemptLedger()
	svc := newTestAuthService(users, NewMemSessionRepository(), attempts)

	seedUser(t, users, "user@example.com", "correct horse battery")

	_, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	require.NoError(t, err)

	recorded := attempts.Attempts()
	require.Len(t, recorded, 1)
	assert.True(t, recorded[0].Success)
	assert.Equal(t, "user@example.com", recorded[0].Email)
}

func TestAuthService_Login_SessionCreateFailure(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	sessions.CreateErr = errors.New("connection refused")
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seedUser(t, users, "user@example.com", "correct horse battery")

	_, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

// ============================================================================
// Lockout Tests
// ============================================================================

func TestAuthService_Lockout_AfterThresholdFailures(t *testing.T) {
	users := NewMemUserRepository()
	attempts := NewMemAttemptLedger()
	svc := newTestAuthService(users, NewMemSessionRepository(), attempts)

	seedUser(t, users, "user@example.com", "correct horse battery")

	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), "user@example.com", "wrong password", testIP, testUserAgent)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	locked, err := svc.IsAccountLocked(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, locked)

	// Correct password is refused while locked, and distinguishably so.
	_, err = svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestAuthService_Lockout_BelowThresholdStillAllowed(t *testing.T) {
	users := NewMemUserRepository()
	svc := newTestAuthService(users, NewMemSessionRepository(), NewMemAttemptLedger())

	seedUser(t, users, "user@example.com", "correct horse battery")

	for i := 0; i < 4; i++ {
		_, err := svc.Login(context.Background(), "user@example.com", "wrong password", testIP, testUserAgent)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	locked, err := svc.IsAccountLocked(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, locked)

	token, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestAuthService_Lockout_OldFailuresOutsideWindowIgnored(t *testing.T) {
	users := NewMemUserRepository()
	attempts := NewMemAttemptLedger()
	svc := newTestAuthService(users, NewMemSessionRepository(), attempts)

	seedUser(t, users, "user@example.com", "correct horse battery")

	// Five failures whose timestamps predate the 15-minute window.
	for i := 0; i < 5; i++ {
		require.NoError(t, attempts.Record(context.Background(), &models.LoginAttempt{
			Email:       "user@example.com",
			IPAddress:   testIP,
			Success:     false,
			AttemptedAt: time.Now().Add(-16 * time.Minute),
		}))
	}

	locked, err := svc.IsAccountLocked(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	assert.NoError(t, err)
}

func TestAuthService_Lockout_UnknownEmailAccruesFailures(t *testing.T) {
	svc := newTestAuthService(NewMemUserRepository(), NewMemSessionRepository(), NewMemAttemptLedger())

	for i := 0; i < 5; i++ {
		_, err := svc.Login(context.Background(), "ghost@example.com", "guess", testIP, testUserAgent)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	_, err := svc.Login(context.Background(), "ghost@example.com", "guess", testIP, testUserAgent)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

// ============================================================================
// ValidateSession Tests
// ============================================================================

func TestAuthService_ValidateSession_Success(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "correct horse battery")

	token, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	require.NoError(t, err)

	user, err := svc.ValidateSession(context.Background(), token)

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, seeded.ID, user.ID)
	assert.Equal(t, "user@example.com", user.Email)
}

func TestAuthService_ValidateSession_EmptyToken(t *testing.T) {
	svc := newTestAuthService(NewMemUserRepository(), NewMemSessionRepository(), NewMemAttemptLedger())

	user, err := svc.ValidateSession(context.Background(), "")

	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthService_ValidateSession_UnknownToken(t *testing.T) {
	svc := newTestAuthService(NewMemUserRepository(), NewMemSessionRepository(), NewMemAttemptLedger())

	user, err := svc.ValidateSession(context.Background(), "no-such-token")

	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthService_ValidateSession_ExpiredSessionDeleted(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "correct horse battery")

	require.NoError(t, sessions.Create(context.Background(), &models.Session{
		UserID:    seeded.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	user, err := svc.ValidateSession(context.Background(), "expired-token")

	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 0, sessions.Count())
}

func TestAuthService_ValidateSession_NearExpiryStillValid(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "correct horse battery")

	require.NoError(t, sessions.Create(context.Background(), &models.Session{
		UserID:    seeded.ID,
		Token:     "almost-expired",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	user, err := svc.ValidateSession(context.Background(), "almost-expired")

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, seeded.ID, user.ID)
}

func TestAuthService_ValidateSession_OrphanedSessionDeleted(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "correct horse battery")

	token, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	require.NoError(t, err)

	// Delete the user out from under the live session.
	require.NoError(t, users.Delete(context.Background(), seeded.ID))

	user, err := svc.ValidateSession(context.Background(), token)

	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 0, sessions.Count())
}

// ============================================================================
// Logout Tests
// ============================================================================

func TestAuthService_Logout_InvalidatesSession(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seedUser(t, users, "user@example.com", "correct horse battery")

	token, err := svc.Login(context.Background(), "user@example.com", "correct horse battery", testIP, testUserAgent)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))

	user, err := svc.ValidateSession(context.Background(), token)
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthService_Logout_UnknownTokenSucceeds(t *testing.T) {
	svc := newTestAuthService(NewMemUserRepository(), NewMemSessionRepository(), NewMemAttemptLedger())

	assert.NoError(t, svc.Logout(context.Background(), "never-issued"))
}

// ============================================================================
// RegisterUser Tests
// ============================================================================

func TestAuthService_RegisterUser_Success(t *testing.T) {
	users := NewMemUserRepository()
	svc := newTestAuthService(users, NewMemSessionRepository(), NewMemAttemptLedger())

	user, err := svc.RegisterUser(context.Background(), "Ada", "Lovelace", "ada@example.com", "first computer 1843")

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.NotEqual(t, "first computer 1843", user.PasswordHash)
}

func TestAuthService_RegisterUser_ThenLogin(t *testing.T) {
	users := NewMemUserRepository()
	svc := newTestAuthService(users, NewMemSessionRepository(), NewMemAttemptLedger())

	_, err := svc.RegisterUser(context.Background(), "Ada", "Lovelace", "ada@example.com", "first computer 1843")
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), "ada@example.com", "first computer 1843", testIP, testUserAgent)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	user, err := svc.ValidateSession(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ada@example.com", user.Email)
}

func TestAuthService_RegisterUser_DuplicateEmail(t *testing.T) {
	users := NewMemUserRepository()
	svc := newTestAuthService(users, NewMemSessionRepository(), NewMemAttemptLedger())

	_, err := svc.RegisterUser(context.Background(), "Ada", "Lovelace", "ada@example.com", "first computer 1843")
	require.NoError(t, err)

	_, err = svc.RegisterUser(context.Background(), "Imposter", "Lovelace", "ADA@example.com", "different password")
	assert.ErrorIs(t, err, models.ErrRegistrationFailed)
}

func TestAuthService_RegisterUser_ConflictRaceCollapsesError(t *testing.T) {
	// GetByEmail sees nothing, but the insert loses a race and conflicts.
	mockUsers := &MockUserRepository{
		CreateWithPasswordFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	svc := newTestAuthService(mockUsers, NewMemSessionRepository(), NewMemAttemptLedger())

	_, err := svc.RegisterUser(context.Background(), "Ada", "Lovelace", "ada@example.com", "first computer 1843")
	assert.ErrorIs(t, err, models.ErrRegistrationFailed)
}

// ============================================================================
// ChangePassword Tests
// ============================================================================

func TestAuthService_ChangePassword_InvalidatesAllSessions(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "old password phrase")

	// Two devices logged in.
	token1, err := svc.Login(context.Background(), "user@example.com", "old password phrase", testIP, testUserAgent)
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), "user@example.com", "old password phrase", "203.0.113.8", testUserAgent)
	require.NoError(t, err)
	require.Equal(t, 2, sessions.Count())

	require.NoError(t, svc.ChangePassword(context.Background(), seeded.ID, "old password phrase", "new password phrase"))

	assert.Equal(t, 0, sessions.Count())

	user, err := svc.ValidateSession(context.Background(), token1)
	assert.NoError(t, err)
	assert.Nil(t, user)

	// Old password no longer works, new one does.
	_, err = svc.Login(context.Background(), "user@example.com", "old password phrase", testIP, testUserAgent)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "user@example.com", "new password phrase", testIP, testUserAgent)
	assert.NoError(t, err)
}

func TestAuthService_ChangePassword_WrongCurrentPassword(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "old password phrase")

	_, err := svc.Login(context.Background(), "user@example.com", "old password phrase", testIP, testUserAgent)
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), seeded.ID, "not the password", "new password phrase")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	// Sessions survive a failed change.
	assert.Equal(t, 1, sessions.Count())

	_, err = svc.Login(context.Background(), "user@example.com", "old password phrase", testIP, testUserAgent)
	assert.NoError(t, err)
}

func TestAuthService_ChangePassword_UnknownUser(t *testing.T) {
	svc := newTestAuthService(NewMemUserRepository(), NewMemSessionRepository(), NewMemAttemptLedger())

	err := svc.ChangePassword(context.Background(), "no-such-user", "a", "b")

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ============================================================================
// Cleanup Tests
// ============================================================================

func TestAuthService_CleanupExpiredSessions(t *testing.T) {
	users := NewMemUserRepository()
	sessions := NewMemSessionRepository()
	svc := newTestAuthService(users, sessions, NewMemAttemptLedger())

	seeded := seedUser(t, users, "user@example.com", "correct horse battery")

	require.NoError(t, sessions.Create(context.Background(), &models.Session{
		UserID: seeded.ID, Token: "live", ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, sessions.Create(context.Background(), &models.Session{
		UserID: seeded.ID, Token: "dead-1", ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, sessions.Create(context.Background(), &models.Session{
		UserID: seeded.ID, Token: "dead-2", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	count, err := svc.CleanupExpiredSessions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 1, sessions.Count())
}
