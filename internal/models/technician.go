package models

import (
	"strings"
	"time"
)

// Technician is a verified service provider on the marketplace.
// Rating and JobsCompleted are maintained by the review aggregator.
type Technician struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Email            string    `json:"email" yaml:"email"`
	Phone            string    `json:"phone" yaml:"phone"`
	City             string    `json:"city" yaml:"city"`
	Categories       []string  `json:"categories" yaml:"categories"`
	HourlyRateCents  int64     `json:"hourly_rate_cents" yaml:"hourly_rate_cents"`
	Rating           float64   `json:"rating" yaml:"rating"`
	JobsCompleted    int64     `json:"jobs_completed" yaml:"jobs_completed"`
	Verification     string    `json:"verification" yaml:"verification"`
	ClientPreference string    `json:"client_preference,omitempty" yaml:"client_preference"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

// HasCategory reports whether the technician offers the given category.
func (t *Technician) HasCategory(category string) bool {
	for _, c := range t.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// IsApproved reports whether the technician is visible on the marketplace.
func (t *Technician) IsApproved() bool {
	return t.Verification == VerificationApproved
}

// CategoriesCSV renders categories for CSV storage.
func (t *Technician) CategoriesCSV() string {
	return strings.Join(t.Categories, ",")
}

// CategoriesFromCSV parses the stored CSV form back into a slice.
func CategoriesFromCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// MatchResult is one ranked matching-engine row.
type MatchResult struct {
	Technician         *Technician `json:"technician"`
	AvailableSlotCount int         `json:"available_slot_count"`
}
