package repositories

import (
	"context"
	"time"

	"github.com/calebforth/bastion/internal/database"
	"github.com/calebforth/bastion/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository is the append-only ledger of authentication attempts.
// Rows are never updated; the lockout policy reads them only in aggregate.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Record appends a login attempt.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, success, attempted_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.Email, attempt.IPAddress, attempt.UserAgent,
		attempt.Success, attempt.AttemptedAt,
	)

	return database.MapPostgresError(err)
}

// CountRecentFailures counts failed attempts for an email within the trailing
// window. The lockout policy is keyed by the presented email, not the source
// address, so spraying from many addresses does not evade it.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = FALSE AND attempted_at > $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, email, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// CountRecentFailuresByIP counts failed attempts from an address within the
// trailing window. Not consulted by the lockout policy; exposed for callers
// that want source-based throttling signals.
func (r *LoginAttemptRepository) CountRecentFailuresByIP(ctx context.Context, ipAddress string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = FALSE AND attempted_at > $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, ipAddress, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// DeleteOlderThan prunes attempts past the retention horizon and returns the
// count removed. Retention is an operational concern, not part of the lockout
// policy, which only ever looks back one window.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE attempted_at < $1`,
		time.Now().Add(-retention),
	)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
