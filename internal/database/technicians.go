package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shefixes/internal/models"
)

const technicianColumns = `id, name, email, phone, city, categories, hourly_rate_cents,
                 rating, jobs_completed, verification, client_preference,
                 created_at, updated_at`

func (db *DB) CreateTechnician(ctx context.Context, tech *models.Technician) error {
	query := `INSERT INTO technicians (
				id, name, email, phone, city, categories, hourly_rate_cents,
				rating, jobs_completed, verification, client_preference,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		tech.ID,
		tech.Name,
		tech.Email,
		tech.Phone,
		tech.City,
		tech.CategoriesCSV(),
		tech.HourlyRateCents,
		tech.Rating,
		tech.JobsCompleted,
		tech.Verification,
		tech.ClientPreference,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: technicians.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create technician: %w", err)
	}
	tech.CreatedAt = now
	tech.UpdatedAt = now
	return nil
}

func (db *DB) GetTechnician(ctx context.Context, id string) (*models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE id = ?`
	return db.queryTechnician(ctx, query, id)
}

func (db *DB) GetTechnicianByEmail(ctx context.Context, email string) (*models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE email = ?`
	return db.queryTechnician(ctx, query, email)
}

func (db *DB) queryTechnician(ctx context.Context, query string, arg any) (*models.Technician, error) {
	var tech models.Technician
	var categories string
	var preference sql.NullString
	err := db.QueryRowContext(ctx, query, arg).Scan(
		&tech.ID, &tech.Name, &tech.Email, &tech.Phone, &tech.City,
		&categories, &tech.HourlyRateCents, &tech.Rating, &tech.JobsCompleted,
		&tech.Verification, &preference, &tech.CreatedAt, &tech.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	tech.Categories = models.CategoriesFromCSV(categories)
	tech.ClientPreference = preference.String
	return &tech, nil
}

func (db *DB) UpdateTechnicianVerification(ctx context.Context, id, status string) error {
	query := `UPDATE technicians SET verification = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// FindApprovedTechnicians returns approved technicians whose city contains
// the requested city (case-insensitive), ranked by rating then jobs
// completed, ties broken by id for a deterministic order.
func (db *DB) FindApprovedTechnicians(ctx context.Context, city string) ([]*models.Technician, error) {
	query := `SELECT ` + technicianColumns + `
              FROM technicians
              WHERE verification = ? AND instr(lower(city), lower(?)) > 0
              ORDER BY rating DESC, jobs_completed DESC, id ASC`
	rows, err := db.QueryContext(ctx, query, models.VerificationApproved, city)
	if err != nil {
		return nil, fmt.Errorf("failed to find technicians: %w", err)
	}
	defer rows.Close()
	return scanTechnicians(rows)
}

func (db *DB) ListTechnicians(ctx context.Context) ([]*models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()
	return scanTechnicians(rows)
}

func scanTechnicians(rows *sql.Rows) ([]*models.Technician, error) {
	var techs []*models.Technician
	for rows.Next() {
		tech := &models.Technician{}
		var categories string
		var preference sql.NullString
		err := rows.Scan(
			&tech.ID, &tech.Name, &tech.Email, &tech.Phone, &tech.City,
			&categories, &tech.HourlyRateCents, &tech.Rating, &tech.JobsCompleted,
			&tech.Verification, &preference, &tech.CreatedAt, &tech.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		tech.Categories = models.CategoriesFromCSV(categories)
		tech.ClientPreference = preference.String
		techs = append(techs, tech)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return techs, nil
}
