package service

import (
	"context"

	"shefixes/internal/database"
	"shefixes/internal/domain"
	"shefixes/internal/events"
	"shefixes/internal/metrics"
	"shefixes/internal/models"
	"shefixes/internal/validation"

	"github.com/rs/zerolog"
)

// ReviewService records one client review per completed booking and keeps
// the technician rating folded up to date.
type ReviewService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewReviewService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReviewService {
	return &ReviewService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *ReviewService) SubmitReview(ctx context.Context, session models.Session, req *models.ReviewRequest) (*models.Review, error) {
	if err := validation.ReviewRequest(req); err != nil {
		return nil, err
	}

	booking, err := s.repo.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	// Only the booking's client rates, and only the technician is rated.
	if session.UserID != booking.ClientID && !session.IsAdmin() {
		return nil, database.ErrForbidden
	}

	review := &models.Review{
		BookingID: req.BookingID,
		RaterID:   booking.ClientID,
		RatedID:   booking.TechnicianID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	metrics.IncReviewSubmitted()
	if s.eventBus != nil {
		payload := events.ReviewEventPayload{
			BookingID:    review.BookingID,
			TechnicianID: review.RatedID,
			Rating:       review.Rating,
		}
		if tech, err := s.repo.GetTechnician(ctx, review.RatedID); err == nil {
			payload.NewAverage = tech.Rating
		}
		if err := s.eventBus.PublishJSON(events.EventReviewSubmitted, payload); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", review.BookingID).Msg("publish event error")
		}
	}

	s.logger.Info().
		Int64("booking_id", review.BookingID).
		Str("technician_id", review.RatedID).
		Int("rating", review.Rating).
		Msg("review submitted")
	return review, nil
}

// GetBookingReview returns the booking's review, readable by the booking's
// participants and admins.
func (s *ReviewService) GetBookingReview(ctx context.Context, session models.Session, bookingID int64) (*models.Review, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if session.UserID != booking.ClientID && session.UserID != booking.TechnicianID && !session.IsAdmin() {
		return nil, database.ErrForbidden
	}
	return s.repo.GetReviewByBooking(ctx, bookingID)
}

func (s *ReviewService) GetTechnicianReviews(ctx context.Context, technicianID string) ([]*models.Review, error) {
	if _, err := s.repo.GetTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	return s.repo.GetTechnicianReviews(ctx, technicianID)
}
