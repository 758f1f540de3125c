package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionReaper removes expired sessions; implemented by services.AuthService.
type SessionReaper interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// AttemptPruner trims old login-attempt rows; implemented by
// repositories.LoginAttemptRepository.
type AttemptPruner interface {
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// MaintenanceReaper periodically deletes expired sessions and prunes the
// login-attempt ledger past its retention horizon
type MaintenanceReaper struct {
	sessions         SessionReaper
	attempts         AttemptPruner
	logger           *slog.Logger
	interval         time.Duration
	attemptRetention time.Duration
	stopCh           chan struct{}
}

// NewMaintenanceReaper creates a new maintenance reaper
func NewMaintenanceReaper(
	sessions SessionReaper,
	attempts AttemptPruner,
	logger *slog.Logger,
	interval time.Duration,
	attemptRetention time.Duration,
) *MaintenanceReaper {
	return &MaintenanceReaper{
		sessions:         sessions,
		attempts:         attempts,
		logger:           logger,
		interval:         interval,
		attemptRetention: attemptRetention,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic maintenance task
func (mr *MaintenanceReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(mr.interval)
	defer ticker.Stop()

	// Run immediately on startup
	mr.runMaintenance(ctx)

	for {
		select {
		case <-ticker.C:
			mr.runMaintenance(ctx)
		case <-mr.stopCh:
			mr.logger.Info("maintenance reaper stopped")
			return
		case <-ctx.Done():
			mr.logger.Info("maintenance reaper context cancelled")
			return
		}
	}
}

// runMaintenance performs one sweep. The two deletions are independent; a
// failure in one does not skip the other.
func (mr *MaintenanceReaper) runMaintenance(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessionsDeleted, err := mr.sessions.CleanupExpiredSessions(sweepCtx)
	if err != nil {
		mr.logger.Error("failed to cleanup expired sessions", slog.Any("error", err))
	}

	attemptsDeleted, err := mr.attempts.DeleteOlderThan(sweepCtx, mr.attemptRetention)
	if err != nil {
		mr.logger.Error("failed to prune login attempts", slog.Any("error", err))
	}

	if sessionsDeleted > 0 || attemptsDeleted > 0 {
		mr.logger.Info("maintenance sweep completed",
			slog.Int64("sessions_deleted", sessionsDeleted),
			slog.Int64("attempts_deleted", attemptsDeleted))
	}
}

// Stop signals the maintenance reaper to stop
func (mr *MaintenanceReaper) Stop() {
	close(mr.stopCh)
}
