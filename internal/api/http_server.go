package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shefixes/internal/config"
	"shefixes/internal/domain"
	"shefixes/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-Id"

// Pinger is the health-check view of the database.
type Pinger interface {
	Ping() error
}

// ReportExporter renders bookings reports to disk.
type ReportExporter interface {
	BookingsReport(ctx context.Context, start, end time.Time) (string, error)
}

// SyncManager exposes the sync worker's admin operations.
type SyncManager interface {
	RequeueFailedTasks(ctx context.Context) (int, error)
	RebuildSheet(ctx context.Context) (int, error)
}

// HTTPServer exposes the marketplace REST API.
type HTTPServer struct {
	cfg         config.APIConfig
	marketplace config.MarketplaceConfig

	technicians domain.TechnicianService
	schedule    domain.ScheduleService
	matching    domain.MatchingService
	bookings    domain.BookingService
	reviews     domain.ReviewService
	state       domain.StateManager
	exporter    ReportExporter
	pinger      Pinger
	sync        SyncManager

	auth   *HTTPAuth
	server *http.Server
	logger zerolog.Logger
}

// Services bundles the dependencies of the HTTP layer.
type Services struct {
	Technicians domain.TechnicianService
	Schedule    domain.ScheduleService
	Matching    domain.MatchingService
	Bookings    domain.BookingService
	Reviews     domain.ReviewService
	State       domain.StateManager
	Exporter    ReportExporter
	Pinger      Pinger
	Sync        SyncManager
}

func NewHTTPServer(cfg config.APIConfig, marketplace config.MarketplaceConfig, svcs Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:         cfg,
		marketplace: marketplace,
		technicians: svcs.Technicians,
		schedule:    svcs.Schedule,
		matching:    svcs.Matching,
		bookings:    svcs.Bookings,
		reviews:     svcs.Reviews,
		state:       svcs.State,
		exporter:    svcs.Exporter,
		pinger:      svcs.Pinger,
		sync:        svcs.Sync,
		logger:      logger.With().Str("component", "http").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/technicians", srv.handleRegisterTechnician)
	mux.HandleFunc("GET /api/v1/technicians", srv.handleListTechnicians)
	mux.HandleFunc("GET /api/v1/technicians/{id}", srv.handleGetTechnician)
	mux.HandleFunc("POST /api/v1/technicians/{id}/verification", srv.handleSetVerification)
	mux.HandleFunc("POST /api/v1/technicians/{id}/slots/generate", srv.handleGenerateSlots)
	mux.HandleFunc("GET /api/v1/technicians/{id}/slots", srv.handleGetSlots)
	mux.HandleFunc("POST /api/v1/technicians/{id}/slots", srv.handleAddSlot)
	mux.HandleFunc("DELETE /api/v1/technicians/{id}/slots/{slotID}", srv.handleRemoveSlot)
	mux.HandleFunc("GET /api/v1/technicians/{id}/reviews", srv.handleGetReviews)
	mux.HandleFunc("GET /api/v1/technicians/{id}/bookings", srv.handleTechnicianBookings)
	mux.HandleFunc("GET /api/v1/matches", srv.handleMatches)
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/status", srv.handleBookingStatus)
	mux.HandleFunc("POST /api/v1/bookings/{id}/review", srv.handleBookingReview)
	mux.HandleFunc("GET /api/v1/bookings/{id}/review", srv.handleGetBookingReview)
	mux.HandleFunc("GET /api/v1/clients/{id}/bookings", srv.handleClientBookings)
	mux.HandleFunc("GET /api/v1/clients/{id}/draft", srv.handleGetDraft)
	mux.HandleFunc("PUT /api/v1/clients/{id}/draft", srv.handleSetDraft)
	mux.HandleFunc("DELETE /api/v1/clients/{id}/draft", srv.handleClearDraft)
	mux.HandleFunc("GET /api/v1/reports/bookings", srv.handleBookingsReport)
	mux.HandleFunc("POST /api/v1/admin/sync/requeue", srv.handleSyncRequeue)
	mux.HandleFunc("POST /api/v1/admin/sync/rebuild", srv.handleSyncRebuild)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler exposes the full middleware chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		// Route patterns keep metric cardinality bounded.
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = r.Method + " unmatched"
		}
		metrics.IncHTTP(endpoint)
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
