package database

import (
	"context"
	"testing"

	"shefixes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCompletedBooking(t *testing.T, db *DB, date string) (*models.Technician, *models.Booking) {
	t.Helper()
	ctx := context.Background()
	tech, slot := seedBookableSlot(t, db, date)
	booking := &models.Booking{
		ClientID:     "client-1",
		TechnicianID: tech.ID,
		SlotID:       slot.ID,
		Category:     models.CategoryAppliance,
		Address:      "12 Main St",
		Status:       models.StatusConfirmed,
	}
	require.NoError(t, db.BookSlotWithLock(ctx, booking))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, booking.ID, 1, models.StatusInProgress))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, booking.ID, 2, models.StatusCompleted))
	booking.Status = models.StatusCompleted
	booking.Version = 3
	return tech, booking
}

func TestCreateReview_FoldsRating(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tech, booking := seedCompletedBooking(t, db, "2026-11-02")

	review := &models.Review{
		BookingID: booking.ID,
		RaterID:   booking.ClientID,
		RatedID:   tech.ID,
		Rating:    4,
		Comment:   "fixed it fast",
	}
	require.NoError(t, db.CreateReview(ctx, review))
	assert.NotZero(t, review.ID)

	got, err := db.GetTechnician(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Rating)
	assert.Equal(t, int64(1), got.JobsCompleted)

	stored, err := db.GetReviewByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed it fast", stored.Comment)

	updated, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasReview)
}

func TestCreateReview_RunningAverage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tech := newTestTechnician("Portland")
	require.NoError(t, db.CreateTechnician(ctx, tech))

	scores := []int{5, 3, 4}
	want := []float64{5.0, 4.0, 4.0}

	for i, score := range scores {
		date := testDate(t, "2026-11-03").AddDate(0, 0, i)
		inserted, err := db.ReplaceDaySlots(ctx, tech.ID, date, daySlots([]int{540}, 60))
		require.NoError(t, err)

		booking := &models.Booking{
			ClientID:     "client-1",
			TechnicianID: tech.ID,
			SlotID:       inserted[0].ID,
			Category:     models.CategoryAppliance,
			Address:      "12 Main St",
			Status:       models.StatusConfirmed,
		}
		require.NoError(t, db.BookSlotWithLock(ctx, booking))
		require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, booking.ID, 1, models.StatusInProgress))
		require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, booking.ID, 2, models.StatusCompleted))

		review := &models.Review{
			BookingID: booking.ID,
			RaterID:   booking.ClientID,
			RatedID:   tech.ID,
			Rating:    score,
		}
		require.NoError(t, db.CreateReview(ctx, review))

		got, err := db.GetTechnician(ctx, tech.ID)
		require.NoError(t, err)
		assert.InDelta(t, want[i], got.Rating, 1e-9)
		assert.Equal(t, int64(i+1), got.JobsCompleted)
	}
}

func TestCreateReview_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tech, booking := seedCompletedBooking(t, db, "2026-11-04")

	review := &models.Review{BookingID: booking.ID, RaterID: booking.ClientID, RatedID: tech.ID, Rating: 5}
	require.NoError(t, db.CreateReview(ctx, review))

	again := &models.Review{BookingID: booking.ID, RaterID: booking.ClientID, RatedID: tech.ID, Rating: 1}
	err := db.CreateReview(ctx, again)
	assert.ErrorIs(t, err, ErrDuplicateReview)

	// The rating must not have moved.
	got, err := db.GetTechnician(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Rating)
	assert.Equal(t, int64(1), got.JobsCompleted)
}

func TestCreateReview_BookingNotCompleted(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tech, slot := seedBookableSlot(t, db, "2026-11-05")
	booking := &models.Booking{
		ClientID:     "client-1",
		TechnicianID: tech.ID,
		SlotID:       slot.ID,
		Category:     models.CategoryPainting,
		Address:      "12 Main St",
		Status:       models.StatusConfirmed,
	}
	require.NoError(t, db.BookSlotWithLock(ctx, booking))

	review := &models.Review{BookingID: booking.ID, RaterID: "client-1", RatedID: tech.ID, Rating: 5}
	err := db.CreateReview(ctx, review)
	assert.ErrorIs(t, err, ErrBookingNotCompleted)
}

func TestCreateReview_BookingNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	review := &models.Review{BookingID: 99999, RaterID: "client-1", RatedID: "tech-1", Rating: 5}
	err := db.CreateReview(context.Background(), review)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTechnicianReviews(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tech, booking := seedCompletedBooking(t, db, "2026-11-06")

	review := &models.Review{BookingID: booking.ID, RaterID: booking.ClientID, RatedID: tech.ID, Rating: 4}
	require.NoError(t, db.CreateReview(ctx, review))

	reviews, err := db.GetTechnicianReviews(ctx, tech.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, booking.ID, reviews[0].BookingID)

	_, err = db.GetReviewByBooking(ctx, 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}
