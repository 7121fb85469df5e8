package repository

import (
	"context"
	"sync"
	"time"

	"shefixes/internal/models"
)

type MemoryStateRepository struct {
	drafts     sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		ttl: ttl,
	}
}

func (r *MemoryStateRepository) GetDraft(_ context.Context, clientID string) (*models.BookingDraft, error) {
	val, ok := r.drafts.Load(clientID)
	if !ok {
		return nil, nil
	}
	return val.(*models.BookingDraft), nil
}

func (r *MemoryStateRepository) SetDraft(_ context.Context, draft *models.BookingDraft) error {
	r.drafts.Store(draft.ClientID, draft)
	return nil
}

func (r *MemoryStateRepository) ClearDraft(_ context.Context, clientID string) error {
	r.drafts.Delete(clientID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(clientID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(clientID, entry)
	return entry.count <= limit, nil
}
