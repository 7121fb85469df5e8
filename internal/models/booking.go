package models

import "time"

// Booking is a client's reservation of one slot.
// Version backs optimistic-concurrency checks on status transitions.
type Booking struct {
	ID           int64     `json:"id"`
	ClientID     string    `json:"client_id"`
	TechnicianID string    `json:"technician_id"`
	SlotID       int64     `json:"slot_id"`
	Category     string    `json:"category"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	Phone        string    `json:"phone"`
	Status       string    `json:"status"` // pending, confirmed, in_progress, completed, cancelled
	HasReview    bool      `json:"has_review"`
	Date         time.Time `json:"date"`
	StartMinute  int       `json:"start_minute"`
	DurationMin  int       `json:"duration_min"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int64     `json:"version"`
}

// Terminal reports whether the booking reached a final status.
func (b *Booking) Terminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// CanTransitionTo validates the booking lifecycle:
// pending -> confirmed -> in_progress -> completed, cancelled from any
// non-terminal status. Terminal statuses accept nothing.
func (b *Booking) CanTransitionTo(next string) bool {
	if b.Terminal() {
		return false
	}
	switch next {
	case StatusCancelled:
		return true
	case StatusConfirmed:
		return b.Status == StatusPending
	case StatusInProgress:
		return b.Status == StatusConfirmed
	case StatusCompleted:
		return b.Status == StatusInProgress
	}
	return false
}
