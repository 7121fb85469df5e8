package models

import (
	"fmt"
	"time"
)

// Slot is one bookable time window owned by a technician on one date.
// Times are minutes since midnight to keep date math timezone-free.
type Slot struct {
	ID           int64     `json:"id"`
	TechnicianID string    `json:"technician_id"`
	Date         time.Time `json:"date"`
	StartMinute  int       `json:"start_minute"`
	DurationMin  int       `json:"duration_min"`
	State        string    `json:"state"` // available, booked
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EndMinute returns the exclusive end of the slot window.
func (s *Slot) EndMinute() int {
	return s.StartMinute + s.DurationMin
}

// Overlaps reports whether two slots on the same date intersect in time.
func (s *Slot) Overlaps(other *Slot) bool {
	return s.StartMinute < other.EndMinute() && other.StartMinute < s.EndMinute()
}

// StartClock renders the start as HH:MM for API responses and reports.
func (s *Slot) StartClock() string {
	return fmt.Sprintf("%02d:%02d", s.StartMinute/60, s.StartMinute%60)
}

// EndClock renders the exclusive end as HH:MM.
func (s *Slot) EndClock() string {
	end := s.EndMinute()
	return fmt.Sprintf("%02d:%02d", end/60, end%60)
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", clock)
	}
	return h*60 + m, nil
}
