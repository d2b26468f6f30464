package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the filing engine.
const (
	TypeTransition    = "filing.transition"
	TypeSubmitted     = "filing.submitted"
	TypeSubmitFailed  = "filing.submit_failed"
	TypeStatusChecked = "filing.status_checked"
	TypeRecordFailed  = "filing.record_failed"
	TypeHTTPRequest   = "http.request"
)

// Event is one structured engine event. It is the Kafka message body and the source of OTel log records.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"event_type"`
	Source      string          `json:"source"`
	ReferenceID string          `json:"reference_id,omitempty"`
	EnvelopeID  string          `json:"envelope_id,omitempty"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	ErrorClass  string          `json:"error_class,omitempty"`
	Message     string          `json:"message,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewEvent returns an Event with a fresh ID and the current UTC time.
func NewEvent(eventType, source string) *Event {
	return &Event{ID: uuid.NewString(), Type: eventType, Source: source, CreatedAt: time.Now().UTC()}
}

// Key is the partition key: the envelope when known, otherwise the reference id.
func (e *Event) Key() string {
	if e.EnvelopeID != "" {
		return e.EnvelopeID
	}
	return e.ReferenceID
}
