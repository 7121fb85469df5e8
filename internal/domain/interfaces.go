package domain

import (
	"context"
	"time"

	"shefixes/internal/models"
)

// Repository is the persistence surface of the marketplace store.
type Repository interface {
	CreateTechnician(ctx context.Context, tech *models.Technician) error
	GetTechnician(ctx context.Context, id string) (*models.Technician, error)
	GetTechnicianByEmail(ctx context.Context, email string) (*models.Technician, error)
	UpdateTechnicianVerification(ctx context.Context, id, status string) error
	FindApprovedTechnicians(ctx context.Context, city string) ([]*models.Technician, error)
	ListTechnicians(ctx context.Context) ([]*models.Technician, error)

	ReplaceDaySlots(ctx context.Context, technicianID string, date time.Time, candidates []*models.Slot) ([]*models.Slot, error)
	CreateSlot(ctx context.Context, slot *models.Slot) error
	DeleteSlot(ctx context.Context, id int64) error
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	GetSlotsByDate(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error)
	GetAvailableSlots(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error)
	CountAvailableSlots(ctx context.Context, technicianID string, date time.Time) (int, error)

	BookSlotWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) error
	GetClientBookings(ctx context.Context, clientID string) ([]*models.Booking, error)
	GetTechnicianBookings(ctx context.Context, technicianID string) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)

	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error)
	GetTechnicianReviews(ctx context.Context, technicianID string) ([]*models.Review, error)

	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
	RequeueSyncTask(ctx context.Context, id int64) error
}

// StateRepository stores booking drafts and rate limit counters, keyed by
// client ID.
type StateRepository interface {
	GetDraft(ctx context.Context, clientID string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, draft *models.BookingDraft) error
	ClearDraft(ctx context.Context, clientID string) error
	CheckRateLimit(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error)
}

// StateManager is the draft flow surface used by the API layer.
type StateManager interface {
	GetDraft(ctx context.Context, clientID string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, clientID, step string, data map[string]interface{}) error
	ClearDraft(ctx context.Context, clientID string) error
	CheckRateLimit(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier delivers booking lifecycle messages to operators.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error
	NotifyBookingStatusChanged(ctx context.Context, booking *models.Booking, previous string) error
	NotifyTechnicianApproved(ctx context.Context, tech *models.Technician) error
}

// SheetsWriter mirrors bookings into the operations spreadsheet.
type SheetsWriter interface {
	AppendBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
	ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error
}

// SyncWorker accepts durable side-effect tasks for a booking.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

// ScheduleService generates and serves availability slots.
type ScheduleService interface {
	GenerateSlots(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResult, error)
	GetDaySlots(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error)
	GetAvailableSlots(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error)
	AddSlot(ctx context.Context, slot *models.Slot) error
	RemoveSlot(ctx context.Context, technicianID string, slotID int64) error
}

// MatchingService finds bookable technicians for a client request.
type MatchingService interface {
	FindTechnicians(ctx context.Context, query *models.MatchQuery) ([]*models.MatchResult, error)
}

// BookingService owns the booking lifecycle.
type BookingService interface {
	BookSlot(ctx context.Context, session models.Session, req *models.BookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, session models.Session, id int64) (*models.Booking, error)
	ListClientBookings(ctx context.Context, session models.Session, clientID string) ([]*models.Booking, error)
	ListTechnicianBookings(ctx context.Context, session models.Session, technicianID string) ([]*models.Booking, error)
	TransitionBooking(ctx context.Context, session models.Session, id, version int64, status string) (*models.Booking, error)
}

// ReviewService records post-completion reviews.
type ReviewService interface {
	SubmitReview(ctx context.Context, session models.Session, req *models.ReviewRequest) (*models.Review, error)
	GetBookingReview(ctx context.Context, session models.Session, bookingID int64) (*models.Review, error)
	GetTechnicianReviews(ctx context.Context, technicianID string) ([]*models.Review, error)
}

// TechnicianService manages technician profiles and verification.
type TechnicianService interface {
	Register(ctx context.Context, req *models.RegisterTechnicianRequest) (*models.Technician, error)
	Get(ctx context.Context, id string) (*models.Technician, error)
	SetVerification(ctx context.Context, session models.Session, id, status string) (*models.Technician, error)
	List(ctx context.Context) ([]*models.Technician, error)
}
