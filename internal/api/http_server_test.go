package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shefixes/internal/config"
	"shefixes/internal/database"
	"shefixes/internal/events"
	"shefixes/internal/models"
	"shefixes/internal/repository"
	"shefixes/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopSyncWorker struct{}

func (noopSyncWorker) EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error {
	return nil
}

type fakeSyncManager struct {
	requeued int
	rows     int
	err      error
}

func (f *fakeSyncManager) RequeueFailedTasks(ctx context.Context) (int, error) {
	return f.requeued, f.err
}

func (f *fakeSyncManager) RebuildSheet(ctx context.Context) (int, error) {
	return f.rows, f.err
}

type fakeExporter struct {
	path string
	err  error
}

func (f *fakeExporter) BookingsReport(ctx context.Context, start, end time.Time) (string, error) {
	return f.path, f.err
}

type apiTestEnv struct {
	srv  *HTTPServer
	db   *database.DB
	sync *fakeSyncManager
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	marketplace := config.MarketplaceConfig{
		SlotStartClock:    "09:00",
		SlotEndClock:      "17:00",
		SlotDurationMin:   60,
		MaxGenerateDays:   92,
		MaxBookingDays:    365,
		RateLimitRequests: 100,
		RateLimitWindow:   60,
	}

	stateRepo := repository.NewMemoryStateRepository(time.Hour)
	syncManager := &fakeSyncManager{}
	svcs := Services{
		Technicians: service.NewTechnicianService(db, bus, &logger),
		Schedule:    service.NewScheduleService(db, bus, marketplace, &logger),
		Matching:    service.NewMatchingService(db, &logger),
		Bookings:    service.NewBookingService(db, bus, noopSyncWorker{}, marketplace.MaxBookingDays, &logger),
		Reviews:     service.NewReviewService(db, bus, &logger),
		State:       service.NewStateService(stateRepo, &logger),
		Exporter:    &fakeExporter{path: "/tmp/bookings.xlsx"},
		Pinger:      db,
		Sync:        syncManager,
	}

	cfg := config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}
	srv := NewHTTPServer(cfg, marketplace, svcs, &logger)
	return &apiTestEnv{srv: srv, db: db, sync: syncManager}
}

func (e *apiTestEnv) do(t *testing.T, method, path string, body any, session *models.Session) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if session != nil {
		req.Header.Set(clientIDHeader, session.UserID)
		req.Header.Set(clientRoleHeader, session.Role)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *apiTestEnv) registerTechnician(t *testing.T, approve bool) *models.Technician {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/technicians", models.RegisterTechnicianRequest{
		Name:       "Rosa Diaz",
		Email:      uuid.NewString() + "@example.com",
		Phone:      "+15550001234",
		City:       "Portland",
		Categories: []string{models.CategoryPlumbing},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tech := decodeResponse[*models.Technician](t, rec)

	if approve {
		admin := models.Session{UserID: "ops", Role: models.RoleAdmin}
		rec = e.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/verification",
			map[string]string{"status": models.VerificationApproved}, &admin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return tech
}

func futureWeekday(daysAhead int) string {
	d := time.Now().AddDate(0, 0, daysAhead)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(models.DateLayout)
}

func (e *apiTestEnv) seedSlot(t *testing.T, techID, date string) int64 {
	t.Helper()
	session := models.Session{UserID: techID, Role: models.RoleTechnician}
	rec := e.do(t, http.MethodPost, "/api/v1/technicians/"+techID+"/slots",
		map[string]any{"date": date, "start_minute": 540, "duration_min": 60}, &session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slot := decodeResponse[*models.Slot](t, rec)
	return slot.ID
}

func TestRegisterAndGetTechnician(t *testing.T) {
	env := newAPITestEnv(t)

	tech := env.registerTechnician(t, false)
	assert.Equal(t, models.VerificationPending, tech.Verification)

	rec := env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerificationPermissions(t *testing.T) {
	env := newAPITestEnv(t)
	tech := env.registerTechnician(t, false)

	client := models.Session{UserID: "client-1", Role: models.RoleClient}
	rec := env.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/verification",
		map[string]string{"status": models.VerificationApproved}, &client)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Missing session headers fail before the service is reached.
	rec = env.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/verification",
		map[string]string{"status": models.VerificationApproved}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenerateAndListSlots(t *testing.T) {
	env := newAPITestEnv(t)
	tech := env.registerTechnician(t, true)
	session := models.Session{UserID: tech.ID, Role: models.RoleTechnician}
	date := futureWeekday(3)

	rec := env.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/slots/generate",
		map[string]any{"start_date": date, "end_date": date}, &session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeResponse[*models.GenerateResult](t, rec)
	assert.Equal(t, 8, result.SlotsCreated)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/slots?date="+date, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decodeResponse[map[string][]*models.Slot](t, rec)
	assert.Len(t, slots["slots"], 8)

	// A date in the past is rejected.
	rec = env.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/slots/generate",
		map[string]any{"start_date": "2020-01-01", "end_date": "2020-01-02"}, &session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Only the technician or an admin can generate.
	stranger := models.Session{UserID: "client-1", Role: models.RoleClient}
	rec = env.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/slots/generate",
		map[string]any{"start_date": date, "end_date": date}, &stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/slots", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSlotsFiltersBooked(t *testing.T) {
	env := newAPITestEnv(t)
	tech := env.registerTechnician(t, true)
	date := futureWeekday(3)
	bookedID := env.seedSlot(t, tech.ID, date)

	techSession := models.Session{UserID: tech.ID, Role: models.RoleTechnician}
	rec := env.do(t, http.MethodPost, "/api/v1/technicians/"+tech.ID+"/slots",
		map[string]any{"date": date, "start_minute": 600, "duration_min": 60}, &techSession)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	client := models.Session{UserID: "client-1", Role: models.RoleClient}
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", models.BookingRequest{
		TechnicianID: tech.ID,
		SlotID:       bookedID,
		Category:     models.CategoryPlumbing,
		Address:      "12 Main St",
	}, &client)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Clients only see what they can still book.
	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/slots?date="+date, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	free := decodeResponse[map[string][]*models.Slot](t, rec)
	require.Len(t, free["slots"], 1)
	assert.Equal(t, models.SlotAvailable, free["slots"][0].State)

	// The technician sees the whole day, booked slot included.
	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/slots?date="+date+"&all=true", nil, &techSession)
	require.Equal(t, http.StatusOK, rec.Code)
	full := decodeResponse[map[string][]*models.Slot](t, rec)
	assert.Len(t, full["slots"], 2)

	// Strangers do not get the full schedule.
	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/slots?date="+date+"&all=true", nil, &client)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMatchesEndpoint(t *testing.T) {
	env := newAPITestEnv(t)
	tech := env.registerTechnician(t, true)
	env.registerTechnician(t, false) // pending, never matched

	rec := env.do(t, http.MethodGet, "/api/v1/matches?city=Portland&category=plumbing", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decodeResponse[map[string][]*models.MatchResult](t, rec)
	require.Len(t, matches["matches"], 1)
	assert.Equal(t, tech.ID, matches["matches"][0].Technician.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/matches?category=plumbing", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/matches?city=Portland&category=plumbing&date=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	env := newAPITestEnv(t)
	tech := env.registerTechnician(t, true)
	date := futureWeekday(3)
	slotID := env.seedSlot(t, tech.ID, date)

	client := models.Session{UserID: "client-1", Role: models.RoleClient}
	techSession := models.Session{UserID: tech.ID, Role: models.RoleTechnician}

	body := models.BookingRequest{
		TechnicianID: tech.ID,
		SlotID:       slotID,
		Category:     models.CategoryPlumbing,
		Address:      "12 Main St",
	}
	rec := env.do(t, http.MethodPost, "/api/v1/bookings", body, &client)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeResponse[*models.Booking](t, rec)
	assert.Equal(t, models.StatusConfirmed, booking.Status)

	// The slot is taken now.
	other := models.Session{UserID: "client-2", Role: models.RoleClient}
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", body, &other)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Strangers cannot read the booking; participants can.
	path := fmt.Sprintf("/api/v1/bookings/%d", booking.ID)
	rec = env.do(t, http.MethodGet, path, nil, &other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodGet, path, nil, &client)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Technician walks the lifecycle.
	rec = env.do(t, http.MethodPost, path+"/status",
		map[string]any{"status": models.StatusInProgress, "version": booking.Version}, &techSession)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeResponse[*models.Booking](t, rec)

	// Replaying the old version conflicts.
	rec = env.do(t, http.MethodPost, path+"/status",
		map[string]any{"status": models.StatusCompleted, "version": booking.Version}, &techSession)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/status",
		map[string]any{"status": models.StatusCompleted, "version": updated.Version}, &techSession)
	require.Equal(t, http.StatusOK, rec.Code)

	// Review after completion.
	rec = env.do(t, http.MethodPost, path+"/review",
		map[string]any{"rating": 5, "comment": "great work"}, &client)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, path+"/review", map[string]any{"rating": 1}, &client)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/reviews", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decodeResponse[map[string][]*models.Review](t, rec)
	assert.Len(t, reviews["reviews"], 1)

	// Participants can read the review back; strangers cannot.
	rec = env.do(t, http.MethodGet, path+"/review", nil, &client)
	require.Equal(t, http.StatusOK, rec.Code)
	review := decodeResponse[*models.Review](t, rec)
	assert.Equal(t, 5, review.Rating)
	rec = env.do(t, http.MethodGet, path+"/review", nil, &other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/clients/client-1/bookings", nil, &client)
	require.Equal(t, http.StatusOK, rec.Code)
	bookings := decodeResponse[map[string][]*models.Booking](t, rec)
	assert.Len(t, bookings["bookings"], 1)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/bookings", nil, &techSession)
	require.Equal(t, http.StatusOK, rec.Code)
	bookings = decodeResponse[map[string][]*models.Booking](t, rec)
	assert.Len(t, bookings["bookings"], 1)

	rec = env.do(t, http.MethodGet, "/api/v1/technicians/"+tech.ID+"/bookings", nil, &other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookingValidationErrors(t *testing.T) {
	env := newAPITestEnv(t)
	tech := env.registerTechnician(t, true)
	slotID := env.seedSlot(t, tech.ID, futureWeekday(3))

	client := models.Session{UserID: "client-1", Role: models.RoleClient}

	// Missing address maps to 400.
	rec := env.do(t, http.MethodPost, "/api/v1/bookings", models.BookingRequest{
		TechnicianID: tech.ID,
		SlotID:       slotID,
		Category:     models.CategoryPlumbing,
	}, &client)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown slot maps to 404.
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", models.BookingRequest{
		TechnicianID: tech.ID,
		SlotID:       9999,
		Category:     models.CategoryPlumbing,
		Address:      "12 Main St",
	}, &client)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Garbage JSON maps to 400.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{nope"))
	req.Header.Set(clientIDHeader, "client-1")
	recorder := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDraftEndpoints(t *testing.T) {
	env := newAPITestEnv(t)
	client := models.Session{UserID: "client-1", Role: models.RoleClient}

	rec := env.do(t, http.MethodGet, "/api/v1/clients/client-1/draft", nil, &client)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/clients/client-1/draft",
		map[string]any{"step": "awaiting_slot", "data": map[string]any{"slot_id": 7}}, &client)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/clients/client-1/draft", nil, &client)
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decodeResponse[*models.BookingDraft](t, rec)
	assert.Equal(t, "awaiting_slot", draft.CurrentStep)

	// Another client cannot touch the draft.
	other := models.Session{UserID: "client-2", Role: models.RoleClient}
	rec = env.do(t, http.MethodGet, "/api/v1/clients/client-1/draft", nil, &other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/clients/client-1/draft", nil, &client)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/clients/client-1/draft", nil, &client)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportEndpoint(t *testing.T) {
	env := newAPITestEnv(t)

	admin := models.Session{UserID: "ops", Role: models.RoleAdmin}
	rec := env.do(t, http.MethodGet, "/api/v1/reports/bookings", nil, &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse[map[string]string](t, rec)
	assert.Equal(t, "/tmp/bookings.xlsx", resp["file"])

	client := models.Session{UserID: "client-1", Role: models.RoleClient}
	rec = env.do(t, http.MethodGet, "/api/v1/reports/bookings", nil, &client)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/bookings?start=bogus", nil, &admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSyncEndpoints(t *testing.T) {
	env := newAPITestEnv(t)
	env.sync.requeued = 3
	env.sync.rows = 42

	admin := models.Session{UserID: "ops", Role: models.RoleAdmin}
	rec := env.do(t, http.MethodPost, "/api/v1/admin/sync/requeue", nil, &admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeResponse[map[string]int](t, rec)
	assert.Equal(t, 3, resp["requeued"])

	rec = env.do(t, http.MethodPost, "/api/v1/admin/sync/rebuild", nil, &admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decodeResponse[map[string]int](t, rec)
	assert.Equal(t, 42, resp["rows"])

	client := models.Session{UserID: "client-1", Role: models.RoleClient}
	rec = env.do(t, http.MethodPost, "/api/v1/admin/sync/requeue", nil, &client)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/sync/rebuild", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// No worker wired means the endpoints degrade, not panic.
	env.srv.sync = nil
	rec = env.do(t, http.MethodPost, "/api/v1/admin/sync/requeue", nil, &admin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPITestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse[map[string]string](t, rec)
	assert.Equal(t, "ok", resp["status"])
}
