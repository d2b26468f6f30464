package repository

import (
	"context"
	"sort"
	"sync"

	"eviction-tracker/efiling/internal/telemetry/domain"
)

// MemoryRepository keeps events in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]*domain.Event)}
}

func (r *MemoryRepository) Save(ctx context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ID]; ok {
		return nil
	}
	cp := *e
	r.events[e.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListByEnvelope(ctx context.Context, envelopeID string, limit int32) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if e.EnvelopeID == envelopeID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Emit lets the repository sit behind telemetry.Multi as a synchronous event sink.
func (r *MemoryRepository) Emit(ctx context.Context, e *domain.Event) error {
	return r.Save(ctx, e)
}
