package service

import (
	"context"
	"errors"

	"shefixes/internal/database"
	"shefixes/internal/domain"
	"shefixes/internal/events"
	"shefixes/internal/models"
	"shefixes/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TechnicianService manages technician profiles and the verification flow.
type TechnicianService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewTechnicianService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *TechnicianService {
	return &TechnicianService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Register creates a technician profile, pending admin verification.
func (s *TechnicianService) Register(ctx context.Context, req *models.RegisterTechnicianRequest) (*models.Technician, error) {
	if err := validation.RegisterTechnician(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetTechnicianByEmail(ctx, req.Email); err == nil {
		return nil, database.ErrDuplicateEmail
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	tech := &models.Technician{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		City:            req.City,
		Categories:      req.Categories,
		HourlyRateCents: req.HourlyRateCents,
		Verification:    models.VerificationPending,
	}
	if err := s.repo.CreateTechnician(ctx, tech); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("technician_id", tech.ID).
		Str("city", tech.City).
		Msg("technician registered")
	return tech, nil
}

func (s *TechnicianService) Get(ctx context.Context, id string) (*models.Technician, error) {
	return s.repo.GetTechnician(ctx, id)
}

func (s *TechnicianService) List(ctx context.Context) ([]*models.Technician, error) {
	return s.repo.ListTechnicians(ctx)
}

// SetVerification records an admin's verification decision.
func (s *TechnicianService) SetVerification(ctx context.Context, session models.Session, id, status string) (*models.Technician, error) {
	if !session.IsAdmin() {
		return nil, database.ErrForbidden
	}
	switch status {
	case models.VerificationApproved, models.VerificationRejected, models.VerificationPending:
	default:
		return nil, &validation.Error{Field: "verification", Reason: "unknown verification status"}
	}

	if err := s.repo.UpdateTechnicianVerification(ctx, id, status); err != nil {
		return nil, err
	}
	tech, err := s.repo.GetTechnician(ctx, id)
	if err != nil {
		return nil, err
	}

	if status == models.VerificationApproved && s.eventBus != nil {
		payload := events.TechnicianEventPayload{
			TechnicianID: tech.ID,
			Name:         tech.Name,
			City:         tech.City,
			Verification: tech.Verification,
		}
		if err := s.eventBus.PublishJSON(events.EventTechnicianApproved, payload); err != nil {
			s.logger.Error().Err(err).Str("technician_id", tech.ID).Msg("publish event error")
		}
	}

	s.logger.Info().
		Str("technician_id", id).
		Str("verification", status).
		Msg("technician verification updated")
	return tech, nil
}
