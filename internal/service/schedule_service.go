package service

import (
	"context"
	"time"

	"shefixes/internal/config"
	"shefixes/internal/database"
	"shefixes/internal/domain"
	"shefixes/internal/events"
	"shefixes/internal/metrics"
	"shefixes/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleService generates availability slots and serves day schedules.
type ScheduleService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	cfg      config.MarketplaceConfig
	logger   *zerolog.Logger
}

func NewScheduleService(repo domain.Repository, eventBus domain.EventPublisher, cfg config.MarketplaceConfig, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		repo:     repo,
		eventBus: eventBus,
		cfg:      cfg,
		logger:   logger,
	}
}

// GenerateSlots partitions each day of the requested range into fixed slots
// and replaces the technician's availability day by day. Booked slots always
// survive regeneration.
func (s *ScheduleService) GenerateSlots(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error) {
	tech, err := s.repo.GetTechnician(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	if !tech.IsApproved() {
		return nil, database.ErrNotApproved
	}

	startClock := req.StartClock
	if startClock == "" {
		startClock = s.cfg.SlotStartClock
	}
	endClock := req.EndClock
	if endClock == "" {
		endClock = s.cfg.SlotEndClock
	}
	duration := req.DurationMin
	if duration == 0 {
		duration = s.cfg.SlotDurationMin
	}

	startMin, err := models.ParseClock(startClock)
	if err != nil {
		return nil, database.ErrInvalidRange
	}
	endMin, err := models.ParseClock(endClock)
	if err != nil {
		return nil, database.ErrInvalidRange
	}
	if duration <= 0 || endMin <= startMin {
		return nil, database.ErrInvalidRange
	}

	start := dateOnly(req.StartDate)
	end := dateOnly(req.EndDate)
	if end.Before(start) {
		return nil, database.ErrInvalidRange
	}
	today := dateOnly(time.Now())
	if start.Before(today) {
		return nil, database.ErrPastDate
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.cfg.MaxGenerateDays {
		return nil, database.ErrInvalidRange
	}

	windows := buildDayWindows(startMin, endMin, duration)
	if len(windows) == 0 {
		return nil, database.ErrInvalidRange
	}

	result := &models.GenerateResult{TechnicianID: req.TechnicianID}
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if req.SkipWeekends && isWeekend(date) {
			continue
		}
		candidates := make([]*models.Slot, len(windows))
		for i, w := range windows {
			slot := *w
			candidates[i] = &slot
		}
		inserted, err := s.repo.ReplaceDaySlots(ctx, req.TechnicianID, date, candidates)
		if err != nil {
			return nil, err
		}
		result.DaysCovered++
		result.SlotsCreated += len(inserted)
		result.Slots = append(result.Slots, inserted...)
	}

	metrics.AddSlotsGenerated(result.SlotsCreated)
	if s.eventBus != nil {
		payload := events.SlotsEventPayload{
			TechnicianID: req.TechnicianID,
			DaysCovered:  result.DaysCovered,
			SlotsCreated: result.SlotsCreated,
		}
		if err := s.eventBus.PublishJSON(events.EventSlotsGenerated, payload); err != nil {
			s.logger.Error().Err(err).Str("technician_id", req.TechnicianID).Msg("publish event error")
		}
	}

	s.logger.Info().
		Str("technician_id", req.TechnicianID).
		Int("days", result.DaysCovered).
		Int("slots", result.SlotsCreated).
		Msg("slots generated")
	return result, nil
}

// buildDayWindows cuts [startMin, endMin) into duration-sized slots,
// dropping a partial tail window.
func buildDayWindows(startMin, endMin, duration int) []*models.Slot {
	var windows []*models.Slot
	for at := startMin; at+duration <= endMin; at += duration {
		windows = append(windows, &models.Slot{StartMinute: at, DurationMin: duration})
	}
	return windows
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetDaySlots returns the whole day schedule, booked slots included.
func (s *ScheduleService) GetDaySlots(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error) {
	if _, err := s.repo.GetTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	return s.repo.GetSlotsByDate(ctx, technicianID, date)
}

// GetAvailableSlots returns only the slots a client can still book.
func (s *ScheduleService) GetAvailableSlots(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error) {
	if _, err := s.repo.GetTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	return s.repo.GetAvailableSlots(ctx, technicianID, date)
}

// AddSlot inserts one extra slot outside the generated grid.
func (s *ScheduleService) AddSlot(ctx context.Context, slot *models.Slot) error {
	tech, err := s.repo.GetTechnician(ctx, slot.TechnicianID)
	if err != nil {
		return err
	}
	if !tech.IsApproved() {
		return database.ErrNotApproved
	}
	if slot.DurationMin <= 0 || slot.StartMinute < 0 || slot.EndMinute() > 24*60 {
		return database.ErrInvalidRange
	}
	if dateOnly(slot.Date).Before(dateOnly(time.Now())) {
		return database.ErrPastDate
	}
	return s.repo.CreateSlot(ctx, slot)
}

// RemoveSlot deletes an unbooked slot owned by the technician.
func (s *ScheduleService) RemoveSlot(ctx context.Context, technicianID string, slotID int64) error {
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.TechnicianID != technicianID {
		return database.ErrForbidden
	}
	return s.repo.DeleteSlot(ctx, slotID)
}
