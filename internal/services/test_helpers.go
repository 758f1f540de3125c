package services

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/calebforth/bastion/internal/models"
	pkglogger "github.com/calebforth/bastion/pkg/logger"
)

// MockUserRepository implements UserRepository with overridable functions
type MockUserRepository struct {
	GetByEmailFunc         func(ctx context.Context, email string) (*models.User, error)
	GetByIDFunc            func(ctx context.Context, id string) (*models.User, error)
	CreateWithPasswordFunc func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordHashFunc func(ctx context.Context, id, passwordHash string) error
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) CreateWithPassword(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateWithPasswordFunc != nil {
		return m.CreateWithPasswordFunc(ctx, user)
	}
	user.ID = "user-1"
	return user, nil
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordHashFunc != nil {
		return m.UpdatePasswordHashFunc(ctx, id, passwordHash)
	}
	return nil
}

// MemUserRepository is an in-memory UserRepository for scenario tests that
// need registration and login to observe each other's writes
type MemUserRepository struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	nextID  int
}

func NewMemUserRepository() *MemUserRepository {
	return &MemUserRepository{byEmail: make(map[string]*models.User)}
}

func (m *MemUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MemUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemUserRepository) CreateWithPassword(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[user.Email]; exists {
		return nil, models.ErrConflict
	}
	m.nextID++
	user.ID = "user-" + strconv.Itoa(m.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	m.byEmail[user.Email] = &copied
	return user, nil
}

func (m *MemUserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = passwordHash
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *MemUserRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.byEmail {
		if u.ID == id {
			delete(m.byEmail, email)
			return nil
		}
	}
	return models.ErrNotFound
}

// MemSessionRepository is an in-memory SessionRepository for tests
type MemSessionRepository struct {
	mu        sync.Mutex
	byToken   map[string]*models.Session
	nextID    int
	CreateErr error
}

func NewMemSessionRepository() *MemSessionRepository {
	return &MemSessionRepository{byToken: make(map[string]*models.Session)}
}

func (m *MemSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byToken[session.Token]; exists {
		return models.ErrConflict
	}
	m.nextID++
	session.CreatedAt = time.Now()
	copied := *session
	m.byToken[session.Token] = &copied
	return nil
}

func (m *MemSessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[token]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *MemSessionRepository) DeleteByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byToken, token)
	return nil
}

func (m *MemSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.byToken {
		if s.UserID == userID {
			delete(m.byToken, token)
		}
	}
	return nil
}

func (m *MemSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var count int64
	for token, s := range m.byToken {
		if now.After(s.ExpiresAt) {
			delete(m.byToken, token)
			count++
		}
	}
	return count, nil
}

func (m *MemSessionRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

// MemAttemptLedger is an in-memory LoginAttemptRepository for tests
type MemAttemptLedger struct {
	mu       sync.Mutex
	attempts []*models.LoginAttempt
}

func NewMemAttemptLedger() *MemAttemptLedger {
	return &MemAttemptLedger{}
}

func (m *MemAttemptLedger) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}
	copied := *attempt
	m.attempts = append(m.attempts, &copied)
	return nil
}

func (m *MemAttemptLedger) CountRecentFailures(ctx context.Context, email string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)
	count := 0
	for _, a := range m.attempts {
		if a.Email == email && !a.Success && a.AttemptedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *MemAttemptLedger) CountRecentFailuresByIP(ctx context.Context, ipAddress string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)
	count := 0
	for _, a := range m.attempts {
		if a.IPAddress == ipAddress && !a.Success && a.AttemptedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *MemAttemptLedger) Attempts() []*models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.LoginAttempt(nil), m.attempts...)
}

// newTestAuthService wires an AuthService over the given fakes with fast
// bcrypt and the default lockout policy.
func newTestAuthService(users UserRepository, sessions SessionRepository, attempts LoginAttemptRepository) *AuthService {
	logger := slog.Default()
	config := DefaultAuthConfig()
	config.BcryptCost = 4 // keep test hashing fast
	return NewAuthService(users, sessions, attempts, config, logger, pkglogger.NewAuditLogger(logger))
}
