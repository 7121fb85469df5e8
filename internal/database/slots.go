package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shefixes/internal/models"
)

const slotColumns = `id, technician_id, date(date), start_minute, duration_min, state, created_at, updated_at`

// ReplaceDaySlots atomically replaces one technician day with candidate
// slots. Existing booked slots survive; candidates overlapping them are
// skipped silently. Non-booked slots for the date are deleted first, all
// inside one transaction so regeneration cannot erase a concurrent booking.
func (db *DB) ReplaceDaySlots(ctx context.Context, technicianID string, date time.Time, candidates []*models.Slot) ([]*models.Slot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	dateStr := date.Format(models.DateLayout)

	booked, err := bookedSlotsTx(ctx, tx, technicianID, dateStr)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM availability_slots WHERE technician_id = ? AND date = ? AND state != ?`,
		technicianID, dateStr, models.SlotBooked)
	if err != nil {
		return nil, fmt.Errorf("failed to clear day slots: %w", err)
	}

	now := time.Now()
	var inserted []*models.Slot
	for _, candidate := range candidates {
		if overlapsAny(candidate, booked) {
			continue
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO availability_slots (technician_id, date, start_minute, duration_min, state, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			technicianID, dateStr, candidate.StartMinute, candidate.DurationMin, models.SlotAvailable, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert slot: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
		slot := *candidate
		slot.ID = id
		slot.TechnicianID = technicianID
		slot.Date = date
		slot.State = models.SlotAvailable
		slot.CreatedAt = now
		slot.UpdatedAt = now
		inserted = append(inserted, &slot)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit day slots: %w", err)
	}
	return inserted, nil
}

func bookedSlotsTx(ctx context.Context, tx *sql.Tx, technicianID, dateStr string) ([]*models.Slot, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE technician_id = ? AND date = ? AND state = ?`,
		technicianID, dateStr, models.SlotBooked)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func overlapsAny(slot *models.Slot, others []*models.Slot) bool {
	for _, other := range others {
		if slot.Overlaps(other) {
			return true
		}
	}
	return false
}

// CreateSlot inserts one manually added slot, refusing overlaps with any
// existing slot of that technician and date.
func (db *DB) CreateSlot(ctx context.Context, slot *models.Slot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	dateStr := slot.Date.Format(models.DateLayout)
	rows, err := tx.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE technician_id = ? AND date = ?`,
		slot.TechnicianID, dateStr)
	if err != nil {
		return fmt.Errorf("failed to load day slots: %w", err)
	}
	existing, err := scanSlots(rows)
	rows.Close()
	if err != nil {
		return err
	}
	if overlapsAny(slot, existing) {
		return ErrSlotOverlap
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO availability_slots (technician_id, date, start_minute, duration_min, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		slot.TechnicianID, dateStr, slot.StartMinute, slot.DurationMin, models.SlotAvailable, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert slot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit slot: %w", err)
	}

	slot.ID = id
	slot.State = models.SlotAvailable
	slot.CreatedAt = now
	slot.UpdatedAt = now
	return nil
}

// DeleteSlot removes one slot unless it is booked.
func (db *DB) DeleteSlot(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM availability_slots WHERE id = ? AND state != ?`, id, models.SlotBooked)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetSlot(ctx, id); err != nil {
			return err
		}
		return ErrSlotBooked
	}
	return nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	var slot models.Slot
	var dateStr string
	err := db.QueryRowContext(ctx,
		`SELECT id, technician_id, date(date), start_minute, duration_min, state, created_at, updated_at
         FROM availability_slots WHERE id = ?`, id).Scan(
		&slot.ID, &slot.TechnicianID, &dateStr, &slot.StartMinute,
		&slot.DurationMin, &slot.State, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	slot.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse slot date %s: %w", dateStr, err)
	}
	return &slot, nil
}

// GetSlotsByDate returns all slots of a technician on a date, ordered by start.
func (db *DB) GetSlotsByDate(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots
         WHERE technician_id = ? AND date = ? ORDER BY start_minute ASC`,
		technicianID, date.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get day slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

// GetAvailableSlots returns the free slots of a technician on a date.
func (db *DB) GetAvailableSlots(ctx context.Context, technicianID string, date time.Time) ([]*models.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots
         WHERE technician_id = ? AND date = ? AND state = ? ORDER BY start_minute ASC`,
		technicianID, date.Format(models.DateLayout), models.SlotAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to get available slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

// CountAvailableSlots returns how many free slots a technician has on a date.
func (db *DB) CountAvailableSlots(ctx context.Context, technicianID string, date time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM availability_slots WHERE technician_id = ? AND date = ? AND state = ?`,
		technicianID, date.Format(models.DateLayout), models.SlotAvailable).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count available slots: %w", err)
	}
	return count, nil
}

func scanSlots(rows *sql.Rows) ([]*models.Slot, error) {
	var slots []*models.Slot
	for rows.Next() {
		slot := &models.Slot{}
		var dateStr string
		err := rows.Scan(
			&slot.ID, &slot.TechnicianID, &dateStr, &slot.StartMinute,
			&slot.DurationMin, &slot.State, &slot.CreatedAt, &slot.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slot.Date, err = time.Parse(models.DateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse slot date %s: %w", dateStr, err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}
