package repository

import (
	"context"
	"sync/atomic"
	"time"

	"shefixes/internal/domain"
	"shefixes/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStateRepository serves drafts from the primary store until it
// errors, then falls back and retries the primary after a minute.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverStateRepository) GetDraft(ctx context.Context, clientID string) (*models.BookingDraft, error) {
	if !r.isDown.Load() {
		draft, err := r.primary.GetDraft(ctx, clientID)
		if err == nil {
			return draft, nil
		}
		r.markDown(err)
	}

	// Retry the primary after a minute of downtime.
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		draft, err := r.primary.GetDraft(ctx, clientID)
		if err == nil {
			r.isDown.Store(false)
			return draft, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetDraft(ctx, clientID)
}

func (r *FailoverStateRepository) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	if !r.isDown.Load() {
		err := r.primary.SetDraft(ctx, draft)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetDraft(ctx, draft)
}

func (r *FailoverStateRepository) ClearDraft(ctx context.Context, clientID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearDraft(ctx, clientID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearDraft(ctx, clientID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, clientID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, clientID, limit, window)
}
