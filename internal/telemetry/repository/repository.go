package repository

import (
	"context"

	"eviction-tracker/efiling/internal/telemetry/domain"
)

// Repository persists engine events so a filing's history can be replayed.
type Repository interface {
	// Save stores e. Saving an event id twice is a no-op.
	Save(ctx context.Context, e *domain.Event) error
	// ListByEnvelope returns the events of envelopeID oldest first, at most limit.
	ListByEnvelope(ctx context.Context, envelopeID string, limit int32) ([]*domain.Event, error)
}
