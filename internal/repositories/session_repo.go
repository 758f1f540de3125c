package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/calebforth/bastion/internal/database"
	"github.com/calebforth/bastion/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles database operations for sessions
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

// Create inserts a new session. The unique constraint on token surfaces as
// models.ErrConflict.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New().String()
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO sessions (id, user_id, token, ip_address, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID, session.UserID, session.Token,
		session.IPAddress, session.UserAgent,
		session.ExpiresAt, session.CreatedAt,
	)

	return database.MapPostgresError(err)
}

// GetByToken retrieves a session by its token.
// Returns nil, nil when absent; a missing session is not an error condition.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT id, user_id, token, ip_address, user_agent, expires_at, created_at
		FROM sessions WHERE token = $1
	`

	var s models.Session
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&s.ID, &s.UserID, &s.Token,
		&s.IPAddress, &s.UserAgent,
		&s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(database.MapPostgresError(err), models.ErrNotFound) {
			return nil, nil
		}
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// DeleteByToken removes a session (logout). A no-op when the token is absent.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return database.MapPostgresError(err)
}

// DeleteByUserID removes every session a user owns (force logout everywhere).
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return database.MapPostgresError(err)
}

// DeleteExpired removes all sessions past their expiry and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
