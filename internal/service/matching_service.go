package service

import (
	"context"

	"shefixes/internal/domain"
	"shefixes/internal/models"
	"shefixes/internal/validation"

	"github.com/rs/zerolog"
)

// MatchingService ranks approved technicians for a client request.
type MatchingService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewMatchingService(repo domain.Repository, logger *zerolog.Logger) *MatchingService {
	return &MatchingService{
		repo:   repo,
		logger: logger,
	}
}

// FindTechnicians returns approved technicians in the city offering the
// category, in the store's rating order. With a date set, each match is
// annotated with its free slot count for that date. Zero-count matches stay
// in the result; presenting "no slots" is the caller's call.
func (s *MatchingService) FindTechnicians(ctx context.Context, query *models.MatchQuery) ([]*models.MatchResult, error) {
	if err := validation.City(query.City); err != nil {
		return nil, err
	}
	if err := validation.Category(query.Category); err != nil {
		return nil, err
	}

	techs, err := s.repo.FindApprovedTechnicians(ctx, query.City)
	if err != nil {
		return nil, err
	}

	results := make([]*models.MatchResult, 0, len(techs))
	for _, tech := range techs {
		if !tech.HasCategory(query.Category) {
			continue
		}
		match := &models.MatchResult{Technician: tech}
		if query.HasDate {
			count, err := s.repo.CountAvailableSlots(ctx, tech.ID, query.Date)
			if err != nil {
				return nil, err
			}
			match.AvailableSlotCount = count
		}
		results = append(results, match)
	}

	s.logger.Debug().
		Str("city", query.City).
		Str("category", query.Category).
		Int("matches", len(results)).
		Msg("technician matching done")
	return results, nil
}
