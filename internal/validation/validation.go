package validation

import (
	"fmt"
	"regexp"
	"strings"

	"shefixes/internal/models"
)

// Error reports one invalid request field.
type Error struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func Email(email string) error {
	if email == "" {
		return invalid("email", "required")
	}
	if !emailRe.MatchString(email) {
		return invalid("email", "malformed address")
	}
	return nil
}

// NormalizePhone strips separators and checks a rough 10 to 15 digit length,
// keeping a leading plus.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid("phone", "required")
	}
	repl := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
	s = repl.Replace(s)
	if strings.HasPrefix(s, "+") {
		s = "+" + filterDigits(s[1:])
	} else {
		s = filterDigits(s)
	}
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", invalid("phone", "expected 10 to 15 digits")
	}
	if s[0] != '+' {
		return digits, nil
	}
	return s, nil
}

func filterDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func City(city string) error {
	if strings.TrimSpace(city) == "" {
		return invalid("city", "required")
	}
	return nil
}

func Category(category string) error {
	if category == "" {
		return invalid("category", "required")
	}
	if !models.ValidCategory(category) {
		return invalid("category", "unknown service category")
	}
	return nil
}

func Rating(rating int) error {
	if rating < 1 || rating > 5 {
		return invalid("rating", "must be between 1 and 5")
	}
	return nil
}

// RegisterTechnician checks a registration request and normalizes its phone
// in place.
func RegisterTechnician(req *models.RegisterTechnicianRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("name", "required")
	}
	if err := Email(req.Email); err != nil {
		return err
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return err
	}
	req.Phone = phone
	if err := City(req.City); err != nil {
		return err
	}
	if len(req.Categories) == 0 {
		return invalid("categories", "at least one required")
	}
	for _, c := range req.Categories {
		if err := Category(c); err != nil {
			return err
		}
	}
	if req.HourlyRateCents < 0 {
		return invalid("hourly_rate_cents", "must not be negative")
	}
	return nil
}

// BookingRequest checks a booking request and normalizes its phone in place.
// The phone is optional; the client profile already carries one.
func BookingRequest(req *models.BookingRequest) error {
	if req.TechnicianID == "" {
		return invalid("technician_id", "required")
	}
	if req.SlotID <= 0 {
		return invalid("slot_id", "required")
	}
	if err := Category(req.Category); err != nil {
		return err
	}
	if strings.TrimSpace(req.Address) == "" {
		return invalid("address", "required")
	}
	if req.Phone != "" {
		phone, err := NormalizePhone(req.Phone)
		if err != nil {
			return err
		}
		req.Phone = phone
	}
	return nil
}

func ReviewRequest(req *models.ReviewRequest) error {
	if req.BookingID <= 0 {
		return invalid("booking_id", "required")
	}
	return Rating(req.Rating)
}
