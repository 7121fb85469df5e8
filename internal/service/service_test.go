package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shefixes/internal/config"
	"shefixes/internal/database"
	"shefixes/internal/events"
	"shefixes/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeSyncWorker records enqueued tasks instead of syncing anything.
type fakeSyncWorker struct {
	mu    sync.Mutex
	tasks []string
}

func (w *fakeSyncWorker) EnqueueTask(_ context.Context, taskType string, _ int64, _ *models.Booking, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tasks = append(w.tasks, taskType)
	return nil
}

func (w *fakeSyncWorker) taskTypes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.tasks...)
}

type testEnv struct {
	db     *database.DB
	bus    *events.EventBus
	worker *fakeSyncWorker
	logger *zerolog.Logger
	cfg    config.MarketplaceConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:     db,
		bus:    events.NewEventBus(),
		worker: &fakeSyncWorker{},
		logger: &logger,
		cfg: config.MarketplaceConfig{
			SlotStartClock:    "09:00",
			SlotEndClock:      "17:00",
			SlotDurationMin:   60,
			MaxGenerateDays:   92,
			MaxBookingDays:    365,
			RateLimitRequests: 20,
			RateLimitWindow:   60,
		},
	}
}

func (e *testEnv) scheduleService() *ScheduleService {
	return NewScheduleService(e.db, e.bus, e.cfg, e.logger)
}

func (e *testEnv) matchingService() *MatchingService {
	return NewMatchingService(e.db, e.logger)
}

func (e *testEnv) bookingService() *BookingService {
	return NewBookingService(e.db, e.bus, e.worker, e.cfg.MaxBookingDays, e.logger)
}

func (e *testEnv) reviewService() *ReviewService {
	return NewReviewService(e.db, e.bus, e.logger)
}

func (e *testEnv) technicianService() *TechnicianService {
	return NewTechnicianService(e.db, e.bus, e.logger)
}

func (e *testEnv) createTechnician(t *testing.T, city, verification string, categories ...string) *models.Technician {
	t.Helper()
	if len(categories) == 0 {
		categories = []string{models.CategoryPlumbing}
	}
	id := uuid.NewString()
	tech := &models.Technician{
		ID:              id,
		Name:            "Test Technician",
		Email:           id + "@example.com",
		Phone:           "+15550001234",
		City:            city,
		Categories:      categories,
		HourlyRateCents: 8000,
		Verification:    verification,
	}
	require.NoError(t, e.db.CreateTechnician(context.Background(), tech))
	return tech
}

func futureDate(t *testing.T, daysAhead int) time.Time {
	t.Helper()
	d := time.Now().AddDate(0, 0, daysAhead)
	parsed, err := time.Parse(models.DateLayout, d.Format(models.DateLayout))
	require.NoError(t, err)
	return parsed
}

// futureWeekday returns the first weekday at least daysAhead out.
func futureWeekday(t *testing.T, daysAhead int) time.Time {
	t.Helper()
	d := futureDate(t, daysAhead)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
