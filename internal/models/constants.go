package models

// Booking lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Availability slot states.
const (
	SlotAvailable = "available"
	SlotBooked    = "booked"
)

// Technician verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Sync queue task statuses.
const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// Sync queue task types.
const (
	TaskSheetAppend  = "sheet_append"
	TaskSheetUpdate  = "sheet_update"
	TaskNotifyStatus = "notify_status"
)

// Session roles accepted from the identity provider.
const (
	RoleClient     = "client"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// Service categories offered on the marketplace.
const (
	CategoryPlumbing   = "plumbing"
	CategoryElectrical = "electrical"
	CategoryAppliance  = "appliance"
	CategoryCarpentry  = "carpentry"
	CategoryPainting   = "painting"
	CategoryLocksmith  = "locksmith"
	CategoryDrain      = "drain"
	CategoryAssembly   = "assembly"
	CategoryOther      = "other"
)

// ServiceCategories lists every bookable category in catalogue order.
var ServiceCategories = []string{
	CategoryPlumbing,
	CategoryElectrical,
	CategoryAppliance,
	CategoryCarpentry,
	CategoryPainting,
	CategoryLocksmith,
	CategoryDrain,
	CategoryAssembly,
	CategoryOther,
}

const (
	// DefaultStateTTL lifetime of a booking draft in Redis, in seconds
	DefaultStateTTL = 24 * 60 * 60

	// ReminderHour hour of day for next-day booking reminders
	ReminderHour = 9

	// DefaultMaxGenerateDays maximum date span of one slot generation call
	DefaultMaxGenerateDays = 92

	// DefaultMaxBookingDays maximum booking horizon
	DefaultMaxBookingDays = 365

	// WorkerQueueSize size of the sync worker queue
	WorkerQueueSize = 1000

	// RateLimitRequests requests per client per window by default
	RateLimitRequests = 20

	// RateLimitWindow rate limit window in seconds
	RateLimitWindow = 60

	// DefaultExportRangeMonths default report export range
	DefaultExportRangeMonthsBefore = 1
	DefaultExportRangeMonthsAfter  = 2
)

// DateLayout is the canonical wire/storage format for slot and booking dates.
const DateLayout = "2006-01-02"

// ValidBookingStatus reports whether s is a known booking status.
func ValidBookingStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known service category.
func ValidCategory(c string) bool {
	for _, known := range ServiceCategories {
		if c == known {
			return true
		}
	}
	return false
}
