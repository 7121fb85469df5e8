package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shefixes/internal/models"
)

// CreateReview inserts a review and folds the score into the technician's
// running rating in one transaction. The has_review flip guarded on
// has_review = 0 makes the at-most-once rule atomic under concurrency.
func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET has_review = 1, version = version + 1, updated_at = ?
         WHERE id = ? AND status = ? AND has_review = 0`,
		now, review.BookingID, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark booking reviewed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var status string
		var hasReview bool
		err := tx.QueryRowContext(ctx,
			`SELECT status, has_review FROM bookings WHERE id = ?`, review.BookingID).
			Scan(&status, &hasReview)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to inspect booking: %w", err)
		}
		if hasReview {
			return ErrDuplicateReview
		}
		return ErrBookingNotCompleted
	}

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO reviews (booking_id, rater_id, rated_id, rating, comment, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		review.BookingID, review.RaterID, review.RatedID, review.Rating, review.Comment, now)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	var oldRating float64
	var jobsCompleted int64
	err = tx.QueryRowContext(ctx,
		`SELECT rating, jobs_completed FROM technicians WHERE id = ?`, review.RatedID).
		Scan(&oldRating, &jobsCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load technician rating: %w", err)
	}

	newRating := models.FoldRating(oldRating, jobsCompleted, review.Rating)
	_, err = tx.ExecContext(ctx,
		`UPDATE technicians SET rating = ?, jobs_completed = jobs_completed + 1, updated_at = ? WHERE id = ?`,
		newRating, now, review.RatedID)
	if err != nil {
		return fmt.Errorf("failed to update technician rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}

	review.ID = id
	review.CreatedAt = now
	return nil
}

func (db *DB) GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error) {
	var review models.Review
	var comment sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, booking_id, rater_id, rated_id, rating, comment, created_at
         FROM reviews WHERE booking_id = ?`, bookingID).Scan(
		&review.ID, &review.BookingID, &review.RaterID, &review.RatedID,
		&review.Rating, &comment, &review.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	review.Comment = comment.String
	return &review, nil
}

func (db *DB) GetTechnicianReviews(ctx context.Context, technicianID string) ([]*models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, booking_id, rater_id, rated_id, rating, comment, created_at
         FROM reviews WHERE rated_id = ? ORDER BY created_at DESC`, technicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to get technician reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		review := &models.Review{}
		var comment sql.NullString
		err := rows.Scan(
			&review.ID, &review.BookingID, &review.RaterID, &review.RatedID,
			&review.Rating, &comment, &review.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		review.Comment = comment.String
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}
