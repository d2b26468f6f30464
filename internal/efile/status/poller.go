// Package status reads the current state of a submitted envelope.
package status

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/resilience/breaker"
)

// Fetcher performs the envelope lookup.
type Fetcher interface {
	Envelope(ctx context.Context, token, envelopeID string) (domain.Envelope, error)
}

// Poller makes one status lookup per call. It shares the submission breaker and never retries;
// the caller decides when to ask again.
type Poller struct {
	api     Fetcher
	breaker *breaker.Breaker
	nowF    func() time.Time
	tracer  trace.Tracer
}

// New returns a Poller.
func New(api Fetcher, br *breaker.Breaker) *Poller {
	return &Poller{
		api:     api,
		breaker: br,
		nowF:    time.Now,
		tracer:  otel.Tracer("eviction-tracker/efiling/status"),
	}
}

// GetStatus returns the envelope's status report. Every failure is a *domain.StatusError
// carrying envelopeID and wrapping the cause.
func (p *Poller) GetStatus(ctx context.Context, envelopeID string, token domain.AuthToken) (domain.StatusReport, error) {
	ctx, span := p.tracer.Start(ctx, "efile.status", trace.WithAttributes(attribute.String("efile.envelope_id", envelopeID)))
	defer span.End()

	fail := func(err error) (domain.StatusReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.StatusReport{}, &domain.StatusError{EnvelopeID: envelopeID, Err: err}
	}
	if envelopeID == "" {
		return fail(domain.ValidationErrors{{Field: "envelope_id", Reason: "is required"}})
	}
	if domain.IsTokenExpired(p.nowF(), token.ExpiresAt) {
		return fail(domain.ErrTokenExpired)
	}

	env, err := breaker.Do(ctx, p.breaker, func(ctx context.Context) (domain.Envelope, error) {
		return p.api.Envelope(ctx, token.Value, envelopeID)
	})
	if err != nil {
		return fail(err)
	}
	report := domain.NewStatusReport(env, p.nowF())
	span.SetAttributes(attribute.String("efile.status", string(report.Status)))
	return report, nil
}
