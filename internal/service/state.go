package service

import (
	"context"
	"time"

	"shefixes/internal/domain"
	"shefixes/internal/models"

	"github.com/rs/zerolog"
)

// StateService wraps the draft store behind the API's booking flow.
type StateService struct {
	stateRepo domain.StateRepository
	logger    *zerolog.Logger
}

func NewStateService(stateRepo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

func (s *StateService) GetDraft(ctx context.Context, clientID string) (*models.BookingDraft, error) {
	draft, err := s.stateRepo.GetDraft(ctx, clientID)
	if err != nil {
		s.logger.Error().Err(err).Str("client_id", clientID).Msg("failed to get booking draft")
		return nil, err
	}
	return draft, nil
}

func (s *StateService) SetDraft(ctx context.Context, clientID, step string, data map[string]interface{}) error {
	draft := &models.BookingDraft{
		ClientID:    clientID,
		CurrentStep: step,
		TempData:    data,
	}
	return s.stateRepo.SetDraft(ctx, draft)
}

func (s *StateService) ClearDraft(ctx context.Context, clientID string) error {
	return s.stateRepo.ClearDraft(ctx, clientID)
}

func (s *StateService) CheckRateLimit(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	return s.stateRepo.CheckRateLimit(ctx, clientID, limit, window)
}
