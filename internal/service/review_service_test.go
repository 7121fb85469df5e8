package service

import (
	"context"
	"encoding/json"
	"testing"

	"shefixes/internal/database"
	"shefixes/internal/events"
	"shefixes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedCompletedBooking(t *testing.T, tech *models.Technician, clientID string, daysAhead int) *models.Booking {
	t.Helper()
	ctx := context.Background()
	slot := e.seedAvailableSlot(t, tech, daysAhead)
	booking := &models.Booking{
		ClientID:     clientID,
		TechnicianID: tech.ID,
		SlotID:       slot.ID,
		Category:     models.CategoryPlumbing,
		Address:      "12 Main St",
		Status:       models.StatusConfirmed,
	}
	require.NoError(t, e.db.BookSlotWithLock(ctx, booking))
	require.NoError(t, e.db.UpdateBookingStatusWithVersion(ctx, booking.ID, 1, models.StatusInProgress))
	require.NoError(t, e.db.UpdateBookingStatusWithVersion(ctx, booking.ID, 2, models.StatusCompleted))
	return booking
}

func TestSubmitReview(t *testing.T) {
	env := newTestEnv(t)
	svc := env.reviewService()
	ctx := context.Background()

	var published events.ReviewEventPayload
	env.bus.Subscribe(events.EventReviewSubmitted, func(event *events.Event) error {
		return json.Unmarshal(event.Payload, &published)
	})

	tech := env.createTechnician(t, "Portland", models.VerificationApproved)
	booking := env.seedCompletedBooking(t, tech, "client-1", 3)

	session := models.Session{UserID: "client-1", Role: models.RoleClient}
	review, err := svc.SubmitReview(ctx, session, &models.ReviewRequest{
		BookingID: booking.ID,
		Rating:    4,
		Comment:   "quick and tidy",
	})
	require.NoError(t, err)
	assert.Equal(t, "client-1", review.RaterID)
	assert.Equal(t, tech.ID, review.RatedID)

	got, err := env.db.GetTechnician(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Rating)
	assert.Equal(t, int64(1), got.JobsCompleted)

	assert.Equal(t, booking.ID, published.BookingID)
	assert.Equal(t, 4.0, published.NewAverage)
}

func TestSubmitReview_Rejections(t *testing.T) {
	env := newTestEnv(t)
	svc := env.reviewService()
	ctx := context.Background()

	tech := env.createTechnician(t, "Portland", models.VerificationApproved)
	booking := env.seedCompletedBooking(t, tech, "client-1", 3)

	// Only the booking's client may review it.
	_, err := svc.SubmitReview(ctx, models.Session{UserID: "client-9", Role: models.RoleClient}, &models.ReviewRequest{
		BookingID: booking.ID,
		Rating:    5,
	})
	assert.ErrorIs(t, err, database.ErrForbidden)

	// Out-of-range ratings never reach the store.
	_, err = svc.SubmitReview(ctx, models.Session{UserID: "client-1", Role: models.RoleClient}, &models.ReviewRequest{
		BookingID: booking.ID,
		Rating:    6,
	})
	assert.Error(t, err)

	// One review per booking.
	session := models.Session{UserID: "client-1", Role: models.RoleClient}
	_, err = svc.SubmitReview(ctx, session, &models.ReviewRequest{BookingID: booking.ID, Rating: 5})
	require.NoError(t, err)
	_, err = svc.SubmitReview(ctx, session, &models.ReviewRequest{BookingID: booking.ID, Rating: 1})
	assert.ErrorIs(t, err, database.ErrDuplicateReview)
}

func TestGetBookingReview(t *testing.T) {
	env := newTestEnv(t)
	svc := env.reviewService()
	ctx := context.Background()

	tech := env.createTechnician(t, "Portland", models.VerificationApproved)
	booking := env.seedCompletedBooking(t, tech, "client-1", 3)

	clientSession := models.Session{UserID: "client-1", Role: models.RoleClient}

	// No review yet.
	_, err := svc.GetBookingReview(ctx, clientSession, booking.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	submitted, err := svc.SubmitReview(ctx, clientSession, &models.ReviewRequest{
		BookingID: booking.ID,
		Rating:    5,
		Comment:   "showed up early",
	})
	require.NoError(t, err)

	// Both participants and admins can read it.
	for _, session := range []models.Session{
		clientSession,
		{UserID: tech.ID, Role: models.RoleTechnician},
		{UserID: "ops-1", Role: models.RoleAdmin},
	} {
		review, err := svc.GetBookingReview(ctx, session, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, submitted.ID, review.ID)
		assert.Equal(t, 5, review.Rating)
	}

	// Strangers cannot.
	_, err = svc.GetBookingReview(ctx, models.Session{UserID: "client-9", Role: models.RoleClient}, booking.ID)
	assert.ErrorIs(t, err, database.ErrForbidden)

	_, err = svc.GetBookingReview(ctx, clientSession, 9999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGetTechnicianReviews(t *testing.T) {
	env := newTestEnv(t)
	svc := env.reviewService()
	ctx := context.Background()

	tech := env.createTechnician(t, "Portland", models.VerificationApproved)
	booking := env.seedCompletedBooking(t, tech, "client-1", 3)

	_, err := svc.SubmitReview(ctx, models.Session{UserID: "client-1", Role: models.RoleClient}, &models.ReviewRequest{
		BookingID: booking.ID,
		Rating:    5,
	})
	require.NoError(t, err)

	reviews, err := svc.GetTechnicianReviews(ctx, tech.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	_, err = svc.GetTechnicianReviews(ctx, "nope")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
