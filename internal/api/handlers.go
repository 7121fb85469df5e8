package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shefixes/internal/database"
	"shefixes/internal/models"
	"shefixes/internal/validation"
)

const (
	clientIDHeader   = "X-Client-ID"
	clientRoleHeader = "X-Client-Role"
)

// sessionFromRequest builds the acting user's session from the identity
// headers. The role defaults to client.
func sessionFromRequest(r *http.Request) (models.Session, error) {
	userID := strings.TrimSpace(r.Header.Get(clientIDHeader))
	if userID == "" {
		return models.Session{}, errors.New("missing " + clientIDHeader + " header")
	}

	role := strings.TrimSpace(r.Header.Get(clientRoleHeader))
	if role == "" {
		role = models.RoleClient
	}
	switch role {
	case models.RoleClient, models.RoleTechnician, models.RoleAdmin:
	default:
		return models.Session{}, errors.New("unknown role: " + role)
	}

	return models.Session{UserID: userID, Role: role}, nil
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return models.Session{}, false
	}
	return session, true
}

func (s *HTTPServer) handleRegisterTechnician(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterTechnicianRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tech, err := s.technicians.Register(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tech)
}

func (s *HTTPServer) handleListTechnicians(w http.ResponseWriter, r *http.Request) {
	technicians, err := s.technicians.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"technicians": technicians})
}

func (s *HTTPServer) handleGetTechnician(w http.ResponseWriter, r *http.Request) {
	tech, err := s.technicians.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

func (s *HTTPServer) handleSetVerification(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	tech, err := s.technicians.SetVerification(r.Context(), session, r.PathValue("id"), req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

func (s *HTTPServer) handleGenerateSlots(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	technicianID := r.PathValue("id")
	if !s.requireSelfOrAdmin(w, session, technicianID) {
		return
	}

	var req struct {
		StartDate    string `json:"start_date"`
		EndDate      string `json:"end_date"`
		StartClock   string `json:"start_clock"`
		EndClock     string `json:"end_clock"`
		DurationMin  int    `json:"duration_min"`
		SkipWeekends bool   `json:"skip_weekends"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	startDate, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	endDate, err := time.Parse(models.DateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
		return
	}

	result, err := s.schedule.GenerateSlots(r.Context(), &models.GenerateRequest{
		TechnicianID: technicianID,
		StartDate:    startDate,
		EndDate:      endDate,
		StartClock:   req.StartClock,
		EndClock:     req.EndClock,
		DurationMin:  req.DurationMin,
		SkipWeekends: req.SkipWeekends,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleGetSlots serves the bookable slots for a date. The full day schedule,
// booked slots included, is available to the technician themself or an admin
// via ?all=true.
func (s *HTTPServer) handleGetSlots(w http.ResponseWriter, r *http.Request) {
	date, ok := dateQuery(w, r, "date")
	if !ok {
		return
	}
	technicianID := r.PathValue("id")

	if r.URL.Query().Get("all") == "true" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if !s.requireSelfOrAdmin(w, session, technicianID) {
			return
		}
		slots, err := s.schedule.GetDaySlots(r.Context(), technicianID, date)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
		return
	}

	slots, err := s.schedule.GetAvailableSlots(r.Context(), technicianID, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *HTTPServer) handleAddSlot(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	technicianID := r.PathValue("id")
	if !s.requireSelfOrAdmin(w, session, technicianID) {
		return
	}

	var req struct {
		Date        string `json:"date"`
		StartMinute int    `json:"start_minute"`
		DurationMin int    `json:"duration_min"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	slot := &models.Slot{
		TechnicianID: technicianID,
		Date:         date,
		StartMinute:  req.StartMinute,
		DurationMin:  req.DurationMin,
	}
	if err := s.schedule.AddSlot(r.Context(), slot); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *HTTPServer) handleRemoveSlot(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	technicianID := r.PathValue("id")
	if !s.requireSelfOrAdmin(w, session, technicianID) {
		return
	}

	slotID, err := strconv.ParseInt(r.PathValue("slotID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	if err := s.schedule.RemoveSlot(r.Context(), technicianID, slotID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGetReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reviews.GetTechnicianReviews(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (s *HTTPServer) handleTechnicianBookings(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	bookings, err := s.bookings.ListTechnicianBookings(r.Context(), session, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleMatches(w http.ResponseWriter, r *http.Request) {
	query := &models.MatchQuery{
		City:     strings.TrimSpace(r.URL.Query().Get("city")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}

	if dateStr := strings.TrimSpace(r.URL.Query().Get("date")); dateStr != "" {
		date, err := time.Parse(models.DateLayout, dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		query.Date = date
		query.HasDate = true
	}

	results, err := s.matching.FindTechnicians(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if s.state != nil && s.marketplace.RateLimitRequests > 0 {
		window := time.Duration(s.marketplace.RateLimitWindow) * time.Second
		allowed, err := s.state.CheckRateLimit(r.Context(), session.UserID, s.marketplace.RateLimitRequests, window)
		if err != nil {
			s.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "too many booking attempts")
			return
		}
	}

	var req models.BookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := s.bookings.BookSlot(r.Context(), session, &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if s.state != nil {
		if err := s.state.ClearDraft(r.Context(), session.UserID); err != nil {
			s.logger.Warn().Err(err).Str("client_id", session.UserID).Msg("clear draft after booking")
		}
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	id, ok := int64Path(w, r, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), session, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	id, ok := int64Path(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Status  string `json:"status"`
		Version int64  `json:"version"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := s.bookings.TransitionBooking(r.Context(), session, id, req.Version, req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingReview(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	id, ok := int64Path(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	review, err := s.reviews.SubmitReview(r.Context(), session, &models.ReviewRequest{
		BookingID: id,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *HTTPServer) handleGetBookingReview(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	id, ok := int64Path(w, r, "id")
	if !ok {
		return
	}

	review, err := s.reviews.GetBookingReview(r.Context(), session, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *HTTPServer) handleClientBookings(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	bookings, err := s.bookings.ListClientBookings(r.Context(), session, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	clientID := r.PathValue("id")
	if !s.requireSelfOrAdmin(w, session, clientID) {
		return
	}

	draft, err := s.state.GetDraft(r.Context(), clientID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if draft == nil {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *HTTPServer) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	clientID := r.PathValue("id")
	if !s.requireSelfOrAdmin(w, session, clientID) {
		return
	}

	var req struct {
		Step string                 `json:"step"`
		Data map[string]interface{} `json:"data"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Step == "" {
		writeError(w, http.StatusBadRequest, "step is required")
		return
	}

	if err := s.state.SetDraft(r.Context(), clientID, req.Step, req.Data); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	clientID := r.PathValue("id")
	if !s.requireSelfOrAdmin(w, session, clientID) {
		return
	}

	if err := s.state.ClearDraft(r.Context(), clientID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleBookingsReport(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if !session.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	var start, end time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date")
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date")
			return
		}
		end = parsed
	}

	path, err := s.exporter.BookingsReport(r.Context(), start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (s *HTTPServer) requireAdminSync(w http.ResponseWriter, r *http.Request) bool {
	session, ok := s.requireSession(w, r)
	if !ok {
		return false
	}
	if !session.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return false
	}
	if s.sync == nil {
		writeError(w, http.StatusServiceUnavailable, "sync worker not running")
		return false
	}
	return true
}

func (s *HTTPServer) handleSyncRequeue(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminSync(w, r) {
		return
	}

	count, err := s.sync.RequeueFailedTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"requeued": count})
}

func (s *HTTPServer) handleSyncRebuild(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminSync(w, r) {
		return
	}

	rows, err := s.sync.RebuildSheet(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rows": rows})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) requireSelfOrAdmin(w http.ResponseWriter, session models.Session, ownerID string) bool {
	if session.UserID == ownerID || session.IsAdmin() {
		return true
	}
	writeError(w, http.StatusForbidden, "not allowed for this caller")
	return false
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrSlotUnavailable),
		errors.Is(err, database.ErrSlotBooked),
		errors.Is(err, database.ErrSlotOverlap),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrDuplicateReview),
		errors.Is(err, database.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrNotApproved),
		errors.Is(err, database.ErrBookingNotCompleted):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrInvalidRange),
		errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func int64Path(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func dateQuery(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return time.Time{}, false
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
