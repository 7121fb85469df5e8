package database

import "errors"

var (
	// ErrNotFound is returned when a technician, slot or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable is returned when a booking race is lost or the slot
	// is already booked. A legitimate outcome, not a transient fault.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrSlotBooked guards booked slots against deletion or regeneration.
	ErrSlotBooked = errors.New("slot is booked and cannot be removed")

	// ErrSlotOverlap is returned when a new slot would overlap an existing one.
	ErrSlotOverlap = errors.New("slot overlaps an existing slot")

	// ErrInvalidRange is returned for bad slot generation parameters.
	ErrInvalidRange = errors.New("invalid generation range")

	// ErrInvalidTransition is returned for illegal booking status changes.
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrConcurrentModification is returned when an optimistic version check fails.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrBookingNotCompleted rejects reviews on bookings that are not completed.
	ErrBookingNotCompleted = errors.New("booking is not completed")

	// ErrDuplicateReview rejects a second review for the same booking.
	ErrDuplicateReview = errors.New("booking already has a review")

	// ErrNotApproved is returned when acting on a technician that is not approved.
	ErrNotApproved = errors.New("technician is not approved")

	// ErrDuplicateEmail is returned when registering an already-known email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrForbidden is returned when the caller may not act on the resource.
	ErrForbidden = errors.New("operation not permitted for this caller")

	// ErrPastDate rejects operations on dates in the past.
	ErrPastDate = errors.New("date is in the past")

	// ErrDateTooFar rejects dates beyond the booking horizon.
	ErrDateTooFar = errors.New("date is too far in the future")
)
