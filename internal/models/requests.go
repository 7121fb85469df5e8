package models

import "time"

// GenerateRequest describes one slot generation run for a technician.
// Zero StartClock/EndClock/DurationMin fall back to the configured defaults.
type GenerateRequest struct {
	TechnicianID string    `json:"technician_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	StartClock   string    `json:"start_clock,omitempty"`
	EndClock     string    `json:"end_clock,omitempty"`
	DurationMin  int       `json:"duration_min,omitempty"`
	SkipWeekends bool      `json:"skip_weekends"`
}

// GenerateResult reports what one generation run produced.
type GenerateResult struct {
	TechnicianID string  `json:"technician_id"`
	DaysCovered  int     `json:"days_covered"`
	SlotsCreated int     `json:"slots_created"`
	Slots        []*Slot `json:"slots,omitempty"`
}

// MatchQuery filters technicians for a client request.
type MatchQuery struct {
	City     string
	Category string
	// Date, when set, annotates each match with its free slot count and
	// drops technicians with none.
	Date    time.Time
	HasDate bool
}

// BookingRequest is a client's request to book one slot.
type BookingRequest struct {
	TechnicianID string `json:"technician_id"`
	SlotID       int64  `json:"slot_id"`
	Category     string `json:"category"`
	Address      string `json:"address"`
	Description  string `json:"description,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// ReviewRequest is a client's review of a completed booking.
type ReviewRequest struct {
	BookingID int64  `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// RegisterTechnicianRequest creates a technician profile, pending verification.
type RegisterTechnicianRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	City            string   `json:"city"`
	Categories      []string `json:"categories"`
	HourlyRateCents int64    `json:"hourly_rate_cents"`
}
