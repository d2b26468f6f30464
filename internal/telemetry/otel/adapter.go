package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"eviction-tracker/efiling/internal/telemetry"
	"eviction-tracker/efiling/internal/telemetry/domain"
)

const loggerName = "eviction-tracker/efiling/events"

// recordEmitter is the part of otellog.Logger the adapter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger wraps any record emitter. Tests pass a capture.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to a log record. Failures carry ERROR severity so they surface in log search.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetEventName(event.Type)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetSeverityText("INFO")
	if event.ErrorClass != "" {
		rec.SetSeverity(otellog.SeverityError)
		rec.SetSeverityText("ERROR")
	}
	switch {
	case len(event.Metadata) > 0:
		rec.SetBody(otellog.BytesValue(event.Metadata))
	case event.Message != "":
		rec.SetBody(otellog.StringValue(event.Message))
	}

	attrs := []struct{ k, v string }{
		{"event.id", event.ID},
		{"event_type", event.Type},
		{"source", event.Source},
		{"efile.reference_id", event.ReferenceID},
		{"efile.envelope_id", event.EnvelopeID},
		{"efile.state.from", event.From},
		{"efile.state.to", event.To},
		{"error.class", event.ErrorClass},
	}
	for _, a := range attrs {
		if a.v != "" {
			rec.AddAttributes(otellog.String(a.k, a.v))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
