// Package submission sends a validated filing to the e-filing service exactly once.
package submission

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/resilience/breaker"
	"eviction-tracker/efiling/internal/resilience/retry"
)

const instrumentation = "eviction-tracker/efiling/submission"

// Filer performs the raw submission call.
type Filer interface {
	File(ctx context.Context, token string, sub domain.FilingSubmission) (domain.Envelope, error)
}

// Invalidator drops a cached token the service has stopped accepting.
type Invalidator interface {
	Invalidate(token string)
}

// Client submits filings through the shared circuit breaker and the retry policy.
type Client struct {
	api     Filer
	breaker *breaker.Breaker
	policy  retry.Policy
	tokens  Invalidator
	nowF    func() time.Time

	tracer   trace.Tracer
	attempts metric.Int64Counter
	outcomes metric.Int64Counter
}

// New returns a Client. tokens may be nil.
func New(api Filer, br *breaker.Breaker, policy retry.Policy, tokens Invalidator) *Client {
	meter := otel.Meter(instrumentation)
	attempts, _ := meter.Int64Counter("efile.submission.attempts", metric.WithDescription("Submission HTTP attempts"))
	outcomes, _ := meter.Int64Counter("efile.submission.outcomes", metric.WithDescription("Submission results by outcome"))
	return &Client{
		api:      api,
		breaker:  br,
		policy:   policy,
		tokens:   tokens,
		nowF:     time.Now,
		tracer:   otel.Tracer(instrumentation),
		attempts: attempts,
		outcomes: outcomes,
	}
}

// Submit sends sub with token and returns the envelope. A returned envelope means the service has
// accepted the filing; callers must never submit the same filing again after that.
// An expired token is never sent; ErrTokenExpired is returned instead.
func (c *Client) Submit(ctx context.Context, sub domain.FilingSubmission, token domain.AuthToken) (domain.Envelope, error) {
	ctx, span := c.tracer.Start(ctx, "efile.submit", trace.WithAttributes(
		attribute.String("efile.reference_id", sub.ReferenceID),
		attribute.String("efile.case_type", sub.CaseType),
	))
	defer span.End()

	p := c.policy
	onRetry := p.OnRetry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("submission: %s attempt %d failed, retrying in %v: %v", sub.ReferenceID, attempt, delay, err)
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	env, err := breaker.Do(ctx, c.breaker, func(ctx context.Context) (domain.Envelope, error) {
		return retry.DoValue(ctx, p, func(ctx context.Context) (domain.Envelope, error) {
			if domain.IsTokenExpired(c.nowF(), token.ExpiresAt) {
				return domain.Envelope{}, domain.ErrTokenExpired
			}
			if c.attempts != nil {
				c.attempts.Add(ctx, 1)
			}
			return c.api.File(ctx, token.Value, sub)
		})
	})
	if err != nil {
		if domain.IsTokenExpiredError(err) && c.tokens != nil {
			c.tokens.Invalidate(token.Value)
		}
		c.record(ctx, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Envelope{}, err
	}
	c.record(ctx, "envelope", nil)
	span.SetAttributes(attribute.String("efile.envelope_id", env.ID))
	return env, nil
}

func (c *Client) record(ctx context.Context, outcome string, err error) {
	if c.outcomes == nil {
		return
	}
	class := string(domain.Classify(err))
	if errors.Is(err, breaker.ErrCircuitOpen) {
		class = "circuit-open"
	}
	c.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome), attribute.String("class", class)))
}
