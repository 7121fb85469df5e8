package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shefixes/internal/models"

	"github.com/rs/zerolog"
)

// DefaultReminderHour is the local hour at which next-day summaries go out.
const DefaultReminderHour = 9

// BookingSource lists bookings for the reminder window.
type BookingSource interface {
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

// ReminderService sends a daily summary of tomorrow's confirmed bookings
// to the operations chat.
type ReminderService struct {
	source   BookingSource
	notifier *TelegramNotifier
	hour     int
	logger   *zerolog.Logger
}

func NewReminderService(source BookingSource, notifier *TelegramNotifier, hour int, logger *zerolog.Logger) *ReminderService {
	if hour < 0 || hour > 23 {
		hour = DefaultReminderHour
	}
	return &ReminderService{
		source:   source,
		notifier: notifier,
		hour:     hour,
		logger:   logger,
	}
}

// Start waits until the next reminder hour, then fires every 24h until ctx
// is done.
func (r *ReminderService) Start(ctx context.Context) {
	go func() {
		timer := time.NewTimer(timeUntilNextHour(r.hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				r.SendTomorrowSummary(ctx)
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

// SendTomorrowSummary pushes one message covering all of tomorrow's
// non-terminal bookings.
func (r *ReminderService) SendTomorrowSummary(ctx context.Context) {
	tomorrow := time.Now().AddDate(0, 0, 1)
	day := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)

	bookings, err := r.source.GetBookingsByDateRange(ctx, day, day)
	if err != nil {
		r.logger.Error().Err(err).Msg("reminder: fetch bookings")
		return
	}

	lines := summarizeBookings(bookings)
	if len(lines) == 0 {
		return
	}

	text := fmt.Sprintf("Tomorrow (%s): %d visits\n%s",
		day.Format(models.DateLayout), len(lines), strings.Join(lines, "\n"))
	if err := r.notifier.send(text); err != nil {
		r.logger.Error().Err(err).Msg("reminder: send summary")
	}
}

func summarizeBookings(bookings []*models.Booking) []string {
	var lines []string
	for _, b := range bookings {
		if b.Status != models.StatusConfirmed && b.Status != models.StatusInProgress {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s, technician %s, booking #%d",
			minuteClock(b.StartMinute), b.Category, b.TechnicianID, b.ID))
	}
	return lines
}

func timeUntilNextHour(hour int) time.Duration {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
