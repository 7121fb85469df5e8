package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shefixes/internal/models"
)

const bookingColumns = `id, client_id, technician_id, slot_id, category, address,
                 description, phone, status, has_review, date(date), start_minute,
                 duration_min, created_at, updated_at, version`

// BookSlotWithLock reserves one slot for one client atomically. The slot
// state flip is the lock: exactly one caller can move it from available to
// booked, everyone else gets ErrSlotUnavailable.
func (db *DB) BookSlotWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE availability_slots SET state = ?, updated_at = ?
         WHERE id = ? AND technician_id = ? AND state = ?`,
		models.SlotBooked, time.Now(), booking.SlotID, booking.TechnicianID, models.SlotAvailable)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var state string
		err := tx.QueryRowContext(ctx,
			`SELECT state FROM availability_slots WHERE id = ? AND technician_id = ?`,
			booking.SlotID, booking.TechnicianID).Scan(&state)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to inspect slot: %w", err)
		}
		return ErrSlotUnavailable
	}

	var dateStr string
	err = tx.QueryRowContext(ctx,
		`SELECT date(date), start_minute, duration_min FROM availability_slots WHERE id = ?`,
		booking.SlotID).Scan(&dateStr, &booking.StartMinute, &booking.DurationMin)
	if err != nil {
		return fmt.Errorf("failed to read reserved slot: %w", err)
	}
	booking.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return fmt.Errorf("failed to parse slot date %s: %w", dateStr, err)
	}

	now := time.Now()
	insert, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (
            client_id, technician_id, slot_id, category, address, description,
            phone, status, has_review, date, start_minute, duration_min,
            created_at, updated_at, version
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, 1)`,
		booking.ClientID, booking.TechnicianID, booking.SlotID, booking.Category,
		booking.Address, booking.Description, booking.Phone, booking.Status,
		dateStr, booking.StartMinute, booking.DurationMin, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBookingRow(row)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion applies a status change guarded by an
// optimistic version check.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) GetClientBookings(ctx context.Context, clientID string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE client_id = ? ORDER BY date DESC, start_minute DESC`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) GetTechnicianBookings(ctx context.Context, technicianID string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE technician_id = ? ORDER BY date DESC, start_minute DESC`,
		technicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to get technician bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE date(date) >= ? AND date(date) <= ?
         ORDER BY date ASC, start_minute ASC`,
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// GetDailyBookings groups a date range of bookings by their date key.
func (db *DB) GetDailyBookings(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		dateKey := b.Date.Format(models.DateLayout)
		daily[dateKey] = append(daily[dateKey], b)
	}
	return daily, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookingInto(s rowScanner, b *models.Booking) error {
	var dateStr string
	var description, phone sql.NullString
	err := s.Scan(
		&b.ID, &b.ClientID, &b.TechnicianID, &b.SlotID, &b.Category,
		&b.Address, &description, &phone, &b.Status, &b.HasReview,
		&dateStr, &b.StartMinute, &b.DurationMin,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return err
	}
	b.Description = description.String
	b.Phone = phone.String
	b.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return nil
}

func scanBookingRow(row *sql.Row) (*models.Booking, error) {
	b := &models.Booking{}
	err := scanBookingInto(row, b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		if err := scanBookingInto(rows, b); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}
