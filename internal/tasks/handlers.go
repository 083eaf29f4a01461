package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-tracker/internal/database/models"
	"github.com/hugh/go-tracker/internal/ratelimit"
	"gorm.io/gorm"
)

// Counters older than this cannot influence any window and are safe to drop.
const rateLimitPruneHorizon = 24 * time.Hour

type Handler struct {
	db        *gorm.DB
	logger    *slog.Logger
	store     *ratelimit.GormStore
	retention time.Duration
}

func NewHandler(db *gorm.DB, logger *slog.Logger, retention time.Duration) *Handler {
	return &Handler{
		db:        db,
		logger:    logger,
		store:     ratelimit.NewGormStore(db),
		retention: retention,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePruneRateLimits, h.HandlePruneRateLimits)
	mux.HandleFunc(TypePurgeInvitations, h.HandlePurgeInvitations)
}

func (h *Handler) HandlePruneRateLimits(ctx context.Context, t *asynq.Task) error {
	pruned, err := h.store.Prune(ctx, rateLimitPruneHorizon)
	if err != nil {
		h.logger.Error("rate limit prune failed", "error", err)
		return err
	}

	h.logger.Info("pruned rate limit counters", "count", pruned)
	return nil
}

// HandlePurgeInvitations hard-deletes invitations nobody can act on anymore:
// accepted and declined rows past the retention window, and pending rows whose
// expiry is that far behind. Recently expired invitations stay visible so a
// workspace admin can see what went unanswered.
func (h *Handler) HandlePurgeInvitations(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-h.retention)

	processed := h.db.WithContext(ctx).Unscoped().
		Where("status IN ? AND updated_at < ?",
			[]models.InvitationStatus{models.InvitationStatusAccepted, models.InvitationStatusDeclined}, cutoff).
		Delete(&models.WorkspaceInvitation{})
	if processed.Error != nil {
		h.logger.Error("invitation purge failed", "error", processed.Error)
		return processed.Error
	}

	expired := h.db.WithContext(ctx).Unscoped().
		Where("status = ? AND expires_at < ?", models.InvitationStatusPending, cutoff).
		Delete(&models.WorkspaceInvitation{})
	if expired.Error != nil {
		h.logger.Error("invitation purge failed", "error", expired.Error)
		return expired.Error
	}

	h.logger.Info("purged invitations",
		"processed", processed.RowsAffected,
		"expired", expired.RowsAffected,
	)
	return nil
}
