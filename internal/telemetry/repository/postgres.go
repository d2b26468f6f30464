package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"eviction-tracker/efiling/internal/telemetry/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts e into filing_events. Redelivered events are ignored.
func (r *PostgresRepository) Save(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO filing_events
		(id, event_type, source, reference_id, envelope_id, from_state, to_state, error_class, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Type, e.Source, nullString(e.ReferenceID), nullString(e.EnvelopeID), nullString(e.From), nullString(e.To),
		nullString(e.ErrorClass), nullString(e.Message), metadata(e.Metadata), e.CreatedAt)
	return err
}

// ListByEnvelope returns events for envelopeID ordered by creation. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByEnvelope(ctx context.Context, envelopeID string, limit int32) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, event_type, source, reference_id, envelope_id, from_state, to_state,
		error_class, message, metadata, created_at
		FROM filing_events WHERE envelope_id = $1 ORDER BY created_at, id LIMIT $2`, envelopeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var ref, env, from, to, class, msg sql.NullString
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &ref, &env, &from, &to, &class, &msg, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ReferenceID, e.EnvelopeID, e.From, e.To = ref.String, env.String, from.String, to.String
		e.ErrorClass, e.Message = class.String, msg.String
		if len(meta) > 0 && string(meta) != "{}" {
			e.Metadata = json.RawMessage(meta)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func metadata(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
