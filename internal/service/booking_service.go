package service

import (
	"context"
	"errors"
	"time"

	"shefixes/internal/database"
	"shefixes/internal/domain"
	"shefixes/internal/events"
	"shefixes/internal/metrics"
	"shefixes/internal/models"
	"shefixes/internal/validation"

	"github.com/rs/zerolog"
)

// BookingService owns the booking lifecycle from slot reservation to
// terminal status.
type BookingService struct {
	repo           domain.Repository
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

// validateBookingDate accepts today through the booking horizon. Slot dates
// are calendar days in UTC, same as slot generation.
func (s *BookingService) validateBookingDate(date time.Time) error {
	today := dateOnly(time.Now())
	if date.Before(today) {
		return database.ErrPastDate
	}
	if date.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return database.ErrDateTooFar
	}
	return nil
}

// BookSlot reserves the requested slot for the session's client. Booking a
// published slot confirms it immediately; there is no pending handshake.
func (s *BookingService) BookSlot(ctx context.Context, session models.Session, req *models.BookingRequest) (*models.Booking, error) {
	if err := validation.BookingRequest(req); err != nil {
		return nil, err
	}

	tech, err := s.repo.GetTechnician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	if !tech.IsApproved() {
		return nil, database.ErrNotApproved
	}
	if !tech.HasCategory(req.Category) {
		return nil, &validation.Error{Field: "category", Reason: "technician does not offer this category"}
	}

	slot, err := s.repo.GetSlot(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.TechnicianID != req.TechnicianID {
		return nil, database.ErrNotFound
	}
	if err := s.validateBookingDate(slot.Date); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ClientID:     session.UserID,
		TechnicianID: req.TechnicianID,
		SlotID:       req.SlotID,
		Category:     req.Category,
		Address:      req.Address,
		Description:  req.Description,
		Phone:        req.Phone,
		Status:       models.StatusConfirmed,
	}
	if err := s.repo.BookSlotWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotUnavailable) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.publishEvent(events.EventBookingConfirmed, booking, "")
	s.enqueueSync(ctx, booking, models.TaskSheetAppend)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("client_id", booking.ClientID).
		Str("technician_id", booking.TechnicianID).
		Msg("booking created")
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, session models.Session, id int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessBooking(session, booking) {
		return nil, database.ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) ListClientBookings(ctx context.Context, session models.Session, clientID string) ([]*models.Booking, error) {
	if session.UserID != clientID && !session.IsAdmin() {
		return nil, database.ErrForbidden
	}
	return s.repo.GetClientBookings(ctx, clientID)
}

// ListTechnicianBookings is the technician's side of the schedule, visible
// to the technician themself and admins.
func (s *BookingService) ListTechnicianBookings(ctx context.Context, session models.Session, technicianID string) ([]*models.Booking, error) {
	if session.UserID != technicianID && !session.IsAdmin() {
		return nil, database.ErrForbidden
	}
	return s.repo.GetTechnicianBookings(ctx, technicianID)
}

// TransitionBooking applies one lifecycle step under the optimistic version
// check. Who may move a booking where depends on the session role.
func (s *BookingService) TransitionBooking(ctx context.Context, session models.Session, id, version int64, status string) (*models.Booking, error) {
	if !models.ValidBookingStatus(status) {
		return nil, database.ErrInvalidTransition
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(session, booking, status) {
		return nil, database.ErrForbidden
	}
	if !booking.CanTransitionTo(status) {
		return nil, database.ErrInvalidTransition
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, id, version, status); err != nil {
		return nil, err
	}

	previous := booking.Status
	updated, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publishEvent(transitionEvent(status), updated, previous)
	s.enqueueSync(ctx, updated, models.TaskSheetUpdate)
	s.enqueueStatusNotice(ctx, updated, previous)

	s.logger.Info().
		Int64("booking_id", id).
		Str("from", previous).
		Str("to", status).
		Msg("booking status changed")
	return updated, nil
}

func canAccessBooking(session models.Session, booking *models.Booking) bool {
	if session.IsAdmin() {
		return true
	}
	return session.UserID == booking.ClientID || session.UserID == booking.TechnicianID
}

func canTransition(session models.Session, booking *models.Booking, status string) bool {
	if session.IsAdmin() {
		return true
	}
	switch session.UserID {
	case booking.ClientID:
		// Clients may only cancel their own bookings.
		return status == models.StatusCancelled
	case booking.TechnicianID:
		return status == models.StatusInProgress ||
			status == models.StatusCompleted ||
			status == models.StatusCancelled
	}
	return false
}

func transitionEvent(status string) string {
	switch status {
	case models.StatusInProgress:
		return events.EventBookingInProgress
	case models.StatusCompleted:
		return events.EventBookingCompleted
	case models.StatusCancelled:
		return events.EventBookingCancelled
	default:
		return events.EventBookingConfirmed
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previous string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:    booking.ID,
		ClientID:     booking.ClientID,
		TechnicianID: booking.TechnicianID,
		Category:     booking.Category,
		Status:       booking.Status,
		Previous:     previous,
		Address:      booking.Address,
		Date:         booking.Date,
		StartMinute:  booking.StartMinute,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == models.TaskSheetUpdate {
		status = booking.Status
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

// enqueueStatusNotice queues a durable operator notification carrying the
// status the booking moved away from.
func (s *BookingService) enqueueStatusNotice(ctx context.Context, booking *models.Booking, previous string) {
	if s.sheetsWorker == nil {
		return
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, models.TaskNotifyStatus, booking.ID, booking, previous); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", models.TaskNotifyStatus).Msg("notify enqueue error")
	}
}
