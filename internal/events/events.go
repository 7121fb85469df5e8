package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingInProgress  = "booking_in_progress"
	EventBookingCompleted   = "booking_completed"
	EventBookingCancelled   = "booking_cancelled"
	EventReviewSubmitted    = "review_submitted"
	EventTechnicianApproved = "technician_approved"
	EventSlotsGenerated     = "slots_generated"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID    int64     `json:"booking_id"`
	ClientID     string    `json:"client_id"`
	TechnicianID string    `json:"technician_id"`
	Category     string    `json:"category"`
	Status       string    `json:"status"`
	Previous     string    `json:"previous,omitempty"`
	Address      string    `json:"address,omitempty"`
	Date         time.Time `json:"date"`
	StartMinute  int       `json:"start_minute"`
}

// ReviewEventPayload announces a submitted review and the new rating.
type ReviewEventPayload struct {
	BookingID    int64   `json:"booking_id"`
	TechnicianID string  `json:"technician_id"`
	Rating       int     `json:"rating"`
	NewAverage   float64 `json:"new_average"`
}

// SlotsEventPayload announces a finished slot generation run.
type SlotsEventPayload struct {
	TechnicianID string `json:"technician_id"`
	DaysCovered  int    `json:"days_covered"`
	SlotsCreated int    `json:"slots_created"`
}

// TechnicianEventPayload announces a verification decision.
type TechnicianEventPayload struct {
	TechnicianID string `json:"technician_id"`
	Name         string `json:"name,omitempty"`
	City         string `json:"city,omitempty"`
	Verification string `json:"verification"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
