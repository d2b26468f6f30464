package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"eviction-tracker/efiling/internal/telemetry/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attrs(rec otellog.Record) map[string]string {
	out := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), domain.NewEvent(domain.TypeSubmitted, "test")); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestNewEventEmitter_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), domain.NewEvent(domain.TypeSubmitted, "test")); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestEmit_NilEvent(t *testing.T) {
	cap := &recordCapture{}
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
	if cap.calls != 0 {
		t.Error("logger called for nil event")
	}
}

func TestEmit_TransitionMapping(t *testing.T) {
	cap := &recordCapture{}
	created := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	ev := &domain.Event{
		ID: "e1", Type: domain.TypeTransition, Source: "service",
		ReferenceID: "EFILE-1", EnvelopeID: "env-1", From: "submitting", To: "submitted",
		Metadata: json.RawMessage(`{"attempts":2}`), CreatedAt: created,
	}
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	if rec.EventName() != domain.TypeTransition {
		t.Errorf("event name = %q", rec.EventName())
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", rec.Severity())
	}
	if got := string(rec.Body().AsBytes()); got != `{"attempts":2}` {
		t.Errorf("body = %q", got)
	}
	want := map[string]string{
		"event.id": "e1", "event_type": domain.TypeTransition, "source": "service",
		"efile.reference_id": "EFILE-1", "efile.envelope_id": "env-1",
		"efile.state.from": "submitting", "efile.state.to": "submitted",
	}
	got := attrs(rec)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %s = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["error.class"]; ok {
		t.Error("empty error.class should be omitted")
	}
}

func TestEmit_FailureSeverityAndMessageBody(t *testing.T) {
	cap := &recordCapture{}
	ev := &domain.Event{Type: domain.TypeSubmitFailed, ErrorClass: "retry-later", Message: "server error 503"}
	_ = NewEventEmitterWithLogger(cap).Emit(context.Background(), ev)
	if cap.rec.Severity() != otellog.SeverityError {
		t.Errorf("severity = %v, want ERROR", cap.rec.Severity())
	}
	if cap.rec.Body().AsString() != "server error 503" {
		t.Errorf("body = %q", cap.rec.Body().AsString())
	}
	if cap.rec.Timestamp().IsZero() {
		t.Error("zero CreatedAt should default to now")
	}
}
