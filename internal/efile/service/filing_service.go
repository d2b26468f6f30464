// Package service is the filing facade the HTTP handler and the CLI call: it builds, gates, submits
// and records filings and checks their status.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	casedomain "eviction-tracker/efiling/internal/casefile/domain"
	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/policy/engine"
	"eviction-tracker/efiling/internal/resilience/breaker"
	"eviction-tracker/efiling/internal/telemetry"
	teldomain "eviction-tracker/efiling/internal/telemetry/domain"
)

const eventSource = "efile.service"

// ErrEnvelopeIDRequired is returned by CheckStatus and Events for an empty envelope id.
var ErrEnvelopeIDRequired = errors.New("envelope id is required")

// Builder assembles and validates the submission for a form.
type Builder interface {
	Build(form domain.FormInput) (domain.FilingSubmission, domain.ValidationErrors)
}

// TokenSource hands out the bearer token and drops it once the service rejects it.
type TokenSource interface {
	GetValidToken(ctx context.Context) (domain.AuthToken, error)
	Invalidate(token string)
}

// Submitter sends one submission.
type Submitter interface {
	Submit(ctx context.Context, sub domain.FilingSubmission, token domain.AuthToken) (domain.Envelope, error)
}

// StatusChecker fetches the status of one envelope.
type StatusChecker interface {
	GetStatus(ctx context.Context, envelopeID string, token domain.AuthToken) (domain.StatusReport, error)
}

// CaseRepo is the minimal case repository needed by the filing service.
type CaseRepo interface {
	CreateCase(ctx context.Context, c *casedomain.Case) error
	CreateDocument(ctx context.Context, envelopeID, filingID string, d *casedomain.Document) error
	GetCaseByEnvelope(ctx context.Context, envelopeID string) (*casedomain.Case, error)
	UpdateStatus(ctx context.Context, report domain.StatusReport) error
}

// EventHistory reads back recorded filing events.
type EventHistory interface {
	ListByEnvelope(ctx context.Context, envelopeID string, limit int32) ([]*teldomain.Event, error)
}

// SubmitResult is the outcome of a submission the service accepted.
type SubmitResult struct {
	Envelope    domain.Envelope    `json:"envelope"`
	ReferenceID string             `json:"reference_id"`
	CaseID      string             `json:"case_id,omitempty"`
	State       domain.FilingState `json:"state"`
	// RecordError describes a local bookkeeping failure after the envelope was received.
	// The filing itself is accepted and must not be resubmitted.
	RecordError string `json:"record_error,omitempty"`
}

// FilingService implements BuildAndSubmit and CheckStatus.
type FilingService struct {
	builder   Builder
	policy    engine.Evaluator
	tokens    TokenSource
	submitter Submitter
	status    StatusChecker
	cases     CaseRepo
	history   EventHistory
	events    telemetry.EventEmitter
	breaker   *breaker.Breaker
	nowF      func() time.Time
}

// NewFilingService returns a FilingService. policy, cases, history, events and br may be nil.
func NewFilingService(
	builder Builder,
	policy engine.Evaluator,
	tokens TokenSource,
	submitter Submitter,
	status StatusChecker,
	cases CaseRepo,
	history EventHistory,
	events telemetry.EventEmitter,
	br *breaker.Breaker,
) *FilingService {
	return &FilingService{
		builder:   builder,
		policy:    policy,
		tokens:    tokens,
		submitter: submitter,
		status:    status,
		cases:     cases,
		history:   history,
		events:    events,
		breaker:   br,
		nowF:      time.Now,
	}
}

// BuildAndSubmit validates form, runs the filing policy and submits the result.
// The error is domain.ValidationErrors for bad input, otherwise an error of the domain taxonomy.
// A non-nil result means the service holds an envelope for the filing; local recording failures are
// reported in SubmitResult.RecordError and never cause a resubmission.
func (s *FilingService) BuildAndSubmit(ctx context.Context, form domain.FormInput) (*SubmitResult, error) {
	f := &filing{svc: s, ref: form.ReferenceID, state: domain.StateDraft}
	f.move(ctx, domain.StateValidating, nil)

	sub, verrs := s.builder.Build(form)
	f.ref = sub.ReferenceID
	if len(verrs) > 0 {
		f.move(ctx, domain.StateDraft, verrs)
		return nil, verrs
	}
	if s.policy != nil {
		decision, err := s.policy.EvaluateFiling(ctx, sub)
		if err != nil {
			err = fmt.Errorf("filing policy: %w", err)
			f.move(ctx, domain.StateDraft, err)
			return nil, err
		}
		if v := engine.Violations(decision); len(v) > 0 {
			f.move(ctx, domain.StateDraft, v)
			return nil, v
		}
	}

	f.move(ctx, domain.StateSubmitting, nil)
	env, err := s.submit(ctx, sub)
	if err != nil {
		s.emit(ctx, f.event(teldomain.TypeSubmitFailed, err))
		f.move(ctx, domain.StateDraft, err)
		return nil, err
	}
	f.env = env.ID
	f.move(ctx, domain.StateSubmitted, nil)
	submitted := f.event(teldomain.TypeSubmitted, nil)
	submitted.Metadata = metadata(map[string]any{"case_tracking_id": env.CaseTrackingID, "filings": len(env.Filings)})
	s.emit(ctx, submitted)

	res := &SubmitResult{Envelope: env, ReferenceID: sub.ReferenceID, State: domain.StateSubmitted}
	caseID, err := s.record(ctx, form, sub, env)
	res.CaseID = caseID
	if err != nil {
		log.Printf("efile: envelope %s accepted but recording failed: %v", env.ID, err)
		s.emit(ctx, f.event(teldomain.TypeRecordFailed, err))
		res.RecordError = err.Error()
	}
	return res, nil
}

// submit sends sub, re-authenticating once when the service reports the token expired.
func (s *FilingService) submit(ctx context.Context, sub domain.FilingSubmission) (domain.Envelope, error) {
	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		return domain.Envelope{}, err
	}
	env, err := s.submitter.Submit(ctx, sub, token)
	if !domain.IsTokenExpiredError(err) {
		return env, err
	}
	s.tokens.Invalidate(token.Value)
	if token, err = s.tokens.GetValidToken(ctx); err != nil {
		return domain.Envelope{}, err
	}
	return s.submitter.Submit(ctx, sub, token)
}

// record stores the case and one document per returned filing.
func (s *FilingService) record(ctx context.Context, form domain.FormInput, sub domain.FilingSubmission, env domain.Envelope) (string, error) {
	if s.cases == nil {
		return form.CaseID, nil
	}
	// Bookkeeping must finish even if the caller goes away now that the envelope exists.
	ctx = context.WithoutCancel(ctx)
	c := &casedomain.Case{
		ID:             form.CaseID,
		ReferenceID:    sub.ReferenceID,
		EnvelopeID:     env.ID,
		CaseTrackingID: env.CaseTrackingID,
		CaseNumber:     env.CaseNumber,
		Jurisdiction:   sub.Jurisdiction,
		CaseType:       sub.CaseType,
		State:          domain.StateSubmitted,
	}
	if err := s.cases.CreateCase(ctx, c); err != nil {
		return c.ID, fmt.Errorf("record case: %w", err)
	}
	var errs []error
	for i, ef := range env.Filings {
		d := &casedomain.Document{
			CaseID: c.ID,
			Code:   ef.Code,
			Status: domain.MapUpstreamStatus(ef.Status),
		}
		if i < len(sub.Filings) && sub.Filings[i].Code == ef.Code {
			d.Type = sub.Filings[i].Kind.String()
			d.FileName = sub.Filings[i].FileName
		}
		if err := s.cases.CreateDocument(ctx, env.ID, ef.ID, d); err != nil {
			errs = append(errs, fmt.Errorf("record filing %s: %w", ef.ID, err))
		}
	}
	return c.ID, errors.Join(errs...)
}

// CheckStatus fetches the envelope's status once and records it. Status failures are
// *domain.StatusError; the caller decides when to check again.
func (s *FilingService) CheckStatus(ctx context.Context, envelopeID string) (domain.StatusReport, error) {
	envelopeID = strings.TrimSpace(envelopeID)
	if envelopeID == "" {
		return domain.StatusReport{}, ErrEnvelopeIDRequired
	}
	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		return domain.StatusReport{}, err
	}
	report, err := s.status.GetStatus(ctx, envelopeID, token)
	if domain.IsTokenExpiredError(err) {
		s.tokens.Invalidate(token.Value)
		if token, err = s.tokens.GetValidToken(ctx); err != nil {
			return domain.StatusReport{}, err
		}
		report, err = s.status.GetStatus(ctx, envelopeID, token)
	}
	if err != nil {
		checked := teldomain.NewEvent(teldomain.TypeStatusChecked, eventSource)
		checked.EnvelopeID = envelopeID
		checked.ErrorClass = string(domain.Classify(err))
		checked.Message = err.Error()
		s.emit(ctx, checked)
		return domain.StatusReport{}, err
	}

	f := &filing{svc: s, env: envelopeID, state: domain.StateSubmitted}
	if s.cases != nil {
		if c, err := s.cases.GetCaseByEnvelope(ctx, envelopeID); err != nil {
			log.Printf("efile: load case for envelope %s: %v", envelopeID, err)
		} else if c != nil {
			f.ref, f.state = c.ReferenceID, c.State
		}
		if err := s.cases.UpdateStatus(ctx, report); err != nil && !isCaseNotFound(err) {
			log.Printf("efile: record status for envelope %s: %v", envelopeID, err)
		}
	}
	checked := f.event(teldomain.TypeStatusChecked, nil)
	checked.Metadata = metadata(report)
	s.emit(ctx, checked)
	if next := domain.StateFromStatus(report.Status); next != f.state || next == domain.StateStillProcessing {
		f.move(ctx, next, nil)
	}
	return report, nil
}

// Events returns the recorded events of envelopeID, oldest first.
func (s *FilingService) Events(ctx context.Context, envelopeID string, limit int32) ([]*teldomain.Event, error) {
	if strings.TrimSpace(envelopeID) == "" {
		return nil, ErrEnvelopeIDRequired
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListByEnvelope(ctx, envelopeID, limit)
}

// ResetCircuit closes the shared circuit breaker. It is a no-op without one.
func (s *FilingService) ResetCircuit() {
	if s.breaker != nil {
		s.breaker.Reset()
		log.Printf("efile: circuit breaker reset by operator")
	}
}

// CircuitRetryAfter reports how long the open circuit keeps rejecting calls.
func (s *FilingService) CircuitRetryAfter() time.Duration {
	if s.breaker == nil {
		return 0
	}
	return s.breaker.RetryAfter()
}

// CircuitState reports the shared breaker state, "closed" when there is none.
func (s *FilingService) CircuitState() breaker.State {
	if s.breaker == nil {
		return breaker.StateClosed
	}
	return s.breaker.State()
}

func (s *FilingService) emit(ctx context.Context, e *teldomain.Event) {
	telemetry.EmitAsync(s.events, ctx, e)
}

// filing tracks one filing's lifecycle state and emits an event per legal transition.
type filing struct {
	svc   *FilingService
	ref   string
	env   string
	state domain.FilingState
}

func (f *filing) move(ctx context.Context, to domain.FilingState, cause error) {
	if !domain.CanTransition(f.state, to) {
		log.Printf("efile: ignoring illegal transition %s -> %s for %s", f.state, to, f.key())
		return
	}
	e := f.event(teldomain.TypeTransition, cause)
	e.From, e.To = string(f.state), string(to)
	f.state = to
	f.svc.emit(ctx, e)
}

func (f *filing) event(eventType string, cause error) *teldomain.Event {
	e := teldomain.NewEvent(eventType, eventSource)
	e.ReferenceID, e.EnvelopeID = f.ref, f.env
	e.To = string(f.state)
	if cause != nil {
		e.ErrorClass = string(domain.Classify(cause))
		e.Message = cause.Error()
	}
	return e
}

func (f *filing) key() string {
	if f.env != "" {
		return f.env
	}
	return f.ref
}

// isCaseNotFound reports an envelope filed outside this service; its status is still returned.
func isCaseNotFound(err error) bool {
	var subErr *domain.SubmissionError
	return errors.As(err, &subErr) && subErr.Code == domain.CodeCaseNotFound
}

func metadata(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
