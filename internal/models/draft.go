package models

import "time"

// Session identifies the caller of an API request.
type Session struct {
	UserID string
	Role   string
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// BookingDraft tracks a client's in-progress booking flow between requests.
type BookingDraft struct {
	ClientID    string
	CurrentStep string
	TempData    map[string]interface{}
}

func (d *BookingDraft) GetInt64(key string) int64 {
	if d.TempData == nil {
		return 0
	}
	val, ok := d.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		// JSON round trips numbers as float64.
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (d *BookingDraft) GetString(key string) string {
	if d.TempData == nil {
		return ""
	}
	if str, ok := d.TempData[key].(string); ok {
		return str
	}
	return ""
}

func (d *BookingDraft) GetDate(key string) time.Time {
	if d.TempData == nil {
		return time.Time{}
	}
	val, ok := d.TempData[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(DateLayout, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
