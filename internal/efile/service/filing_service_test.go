package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	casedomain "eviction-tracker/efiling/internal/casefile/domain"
	caserepo "eviction-tracker/efiling/internal/casefile/repository"
	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/efile/payload"
	"eviction-tracker/efiling/internal/policy/engine"
	"eviction-tracker/efiling/internal/resilience/breaker"
	teldomain "eviction-tracker/efiling/internal/telemetry/domain"
	telrepo "eviction-tracker/efiling/internal/telemetry/repository"
)

type fakeTokens struct {
	mu          sync.Mutex
	issued      int
	invalidated []string
}

func (f *fakeTokens) GetValidToken(ctx context.Context) (domain.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return domain.AuthToken{Value: "tok-" + string(rune('0'+f.issued)), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeTokens) Invalidate(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, token)
}

type fakeSubmitter struct {
	mu     sync.Mutex
	tokens []string
	fn     func(n int) (domain.Envelope, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub domain.FilingSubmission, token domain.AuthToken) (domain.Envelope, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token.Value)
	n := len(f.tokens)
	f.mu.Unlock()
	return f.fn(n)
}

func (f *fakeSubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeStatus struct {
	fn func(envelopeID string) (domain.StatusReport, error)
}

func (f *fakeStatus) GetStatus(ctx context.Context, envelopeID string, token domain.AuthToken) (domain.StatusReport, error) {
	return f.fn(envelopeID)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*teldomain.Event
}

func (r *recordingEmitter) Emit(ctx context.Context, e *teldomain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// waitFor returns the recorded events once at least n have arrived.
func (r *recordingEmitter) waitFor(t *testing.T, n int) []*teldomain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		got := append([]*teldomain.Event(nil), r.events...)
		r.mu.Unlock()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d events, want %d", len(got), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func transitions(events []*teldomain.Event) map[string]bool {
	out := make(map[string]bool)
	for _, e := range events {
		if e.Type == teldomain.TypeTransition {
			out[e.From+"->"+e.To] = true
		}
	}
	return out
}

func validForm() domain.FormInput {
	return domain.FormInput{
		Jurisdiction: "cook:cvd1",
		CaseType:     "237041",
		Petitioner: domain.PartyInput{
			IsBusiness: true, BusinessName: "Wolf Properties LLC",
			AddressLine1: "123 Main St", City: "Chicago", State: "IL", ZipCode: "60601",
		},
		Defendants: []domain.PartyInput{
			{FirstName: "John", LastName: "Doe", AddressLine1: "456 Oak St", City: "Chicago", State: "IL", ZipCode: "60602"},
		},
		PaymentAccountID: "ACCT-001",
		FilingAttorneyID: "448c583f-aaf7-43d2-8053-2b49c810b66f",
		IsInitialFiling:  true,
		Complaint:        &domain.Attachment{FileName: "complaint.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")},
	}
}

func envelope() domain.Envelope {
	return domain.Envelope{
		ID:             "env-1",
		CaseTrackingID: "ct-1",
		Filings:        []domain.EnvelopeFiling{{ID: "f-1", Code: "174402", Status: "submitting"}},
	}
}

type fixture struct {
	svc       *FilingService
	tokens    *fakeTokens
	submitter *fakeSubmitter
	cases     *caserepo.MemoryRepository
	events    *recordingEmitter
}

func newFixture(policy engine.Evaluator, submit func(n int) (domain.Envelope, error), status func(string) (domain.StatusReport, error)) *fixture {
	f := &fixture{
		tokens:    &fakeTokens{},
		submitter: &fakeSubmitter{fn: submit},
		cases:     caserepo.NewMemoryRepository(),
		events:    &recordingEmitter{},
	}
	builder := payload.New(payload.Options{NewReferenceID: func() string { return "REF-1" }})
	f.svc = NewFilingService(builder, policy, f.tokens, f.submitter, &fakeStatus{fn: status}, f.cases, nil, f.events, nil)
	return f
}

func TestBuildAndSubmit_RecordsCase(t *testing.T) {
	f := newFixture(nil, func(int) (domain.Envelope, error) { return envelope(), nil }, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("BuildAndSubmit: %v", err)
	}
	if res.Envelope.ID != "env-1" || res.ReferenceID != "REF-1" || res.State != domain.StateSubmitted {
		t.Errorf("result = %+v", res)
	}
	if res.RecordError != "" {
		t.Errorf("RecordError = %q", res.RecordError)
	}
	c, err := f.cases.GetCaseByEnvelope(context.Background(), "env-1")
	if err != nil || c == nil {
		t.Fatalf("GetCaseByEnvelope = %v, %v", c, err)
	}
	if c.ID != res.CaseID || c.State != domain.StateSubmitted || c.Jurisdiction != "cook:cvd1" {
		t.Errorf("case = %+v", c)
	}
	docs, _ := f.cases.ListDocuments(context.Background(), c.ID)
	if len(docs) != 1 || docs[0].FilingID != "f-1" || docs[0].Type != "complaint" || docs[0].FileName != "complaint.pdf" {
		t.Errorf("documents = %+v", docs)
	}

	events := f.events.waitFor(t, 4)
	got := transitions(events)
	for _, want := range []string{"draft->validating", "validating->submitting", "submitting->submitted"} {
		if !got[want] {
			t.Errorf("missing transition %s in %v", want, got)
		}
	}
}

func TestBuildAndSubmit_ValidationErrors(t *testing.T) {
	f := newFixture(nil, func(int) (domain.Envelope, error) { return envelope(), nil }, nil)
	form := validForm()
	form.Complaint = nil

	_, err := f.svc.BuildAndSubmit(context.Background(), form)
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	if f.submitter.calls() != 0 {
		t.Errorf("submit calls = %d, want 0", f.submitter.calls())
	}
	if got := transitions(f.events.waitFor(t, 2)); !got["validating->draft"] {
		t.Errorf("transitions = %v, want validating->draft", got)
	}
}

func TestBuildAndSubmit_PolicyRefusal(t *testing.T) {
	policy := engine.NewOPAEvaluator(nil, engine.Settings{Jurisdictions: []string{"dupage"}})
	f := newFixture(policy, func(int) (domain.Envelope, error) { return envelope(), nil }, nil)

	_, err := f.svc.BuildAndSubmit(context.Background(), validForm())
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("jurisdiction") {
		t.Fatalf("err = %v, want jurisdiction violation", err)
	}
	if f.submitter.calls() != 0 {
		t.Errorf("submit calls = %d, want 0", f.submitter.calls())
	}
}

func TestBuildAndSubmit_TokenExpiredRetriesOnce(t *testing.T) {
	f := newFixture(nil, func(n int) (domain.Envelope, error) {
		if n == 1 {
			return domain.Envelope{}, domain.ErrTokenExpired
		}
		return envelope(), nil
	}, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("BuildAndSubmit: %v", err)
	}
	if res.Envelope.ID != "env-1" {
		t.Errorf("envelope = %+v", res.Envelope)
	}
	if len(f.submitter.tokens) != 2 || f.submitter.tokens[0] == f.submitter.tokens[1] {
		t.Errorf("submit tokens = %v, want two distinct", f.submitter.tokens)
	}
	if len(f.tokens.invalidated) != 1 || f.tokens.invalidated[0] != f.submitter.tokens[0] {
		t.Errorf("invalidated = %v", f.tokens.invalidated)
	}
}

func TestBuildAndSubmit_TokenExpiredTwiceFails(t *testing.T) {
	f := newFixture(nil, func(int) (domain.Envelope, error) { return domain.Envelope{}, domain.ErrTokenExpired }, nil)

	if _, err := f.svc.BuildAndSubmit(context.Background(), validForm()); !domain.IsTokenExpiredError(err) {
		t.Fatalf("err = %v, want token expired", err)
	}
	if f.submitter.calls() != 2 {
		t.Errorf("submit calls = %d, want 2", f.submitter.calls())
	}
}

func TestBuildAndSubmit_SubmitFailure(t *testing.T) {
	srvErr := &domain.ServerError{StatusCode: 503}
	f := newFixture(nil, func(int) (domain.Envelope, error) { return domain.Envelope{}, srvErr }, nil)

	res, err := f.svc.BuildAndSubmit(context.Background(), validForm())
	if res != nil || !errors.Is(err, srvErr) {
		t.Fatalf("BuildAndSubmit = %v, %v", res, err)
	}
	if c, _ := f.cases.GetCaseByEnvelope(context.Background(), ""); c != nil {
		t.Errorf("case recorded for failed submission: %+v", c)
	}
	events := f.events.waitFor(t, 4)
	var failed *teldomain.Event
	for _, e := range events {
		if e.Type == teldomain.TypeSubmitFailed {
			failed = e
		}
	}
	if failed == nil || failed.ErrorClass != string(domain.ClassRetryLater) {
		t.Errorf("submit_failed event = %+v", failed)
	}
}

func TestBuildAndSubmit_RecordFailureKeepsEnvelope(t *testing.T) {
	f := newFixture(nil, func(int) (domain.Envelope, error) { return envelope(), nil }, nil)
	if err := f.cases.CreateCase(context.Background(), &casedomain.Case{ID: "other", EnvelopeID: "env-1"}); err != nil {
		t.Fatalf("CreateCase: %v", err)
	}

	res, err := f.svc.BuildAndSubmit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("BuildAndSubmit: %v", err)
	}
	if res.Envelope.ID != "env-1" || res.RecordError == "" {
		t.Errorf("result = %+v, want envelope and record error", res)
	}
	if f.submitter.calls() != 1 {
		t.Errorf("submit calls = %d, want 1", f.submitter.calls())
	}
}

func TestCheckStatus_UpdatesCase(t *testing.T) {
	report := domain.StatusReport{
		EnvelopeID: "env-1",
		CaseNumber: "2026-EV-000123",
		Status:     domain.StatusAccepted,
		Filings:    []domain.FilingReport{{ID: "f-1", Code: "174402", Status: domain.StatusAccepted, StampedDocument: "https://example.com/stamped.pdf"}},
	}
	f := newFixture(nil, func(int) (domain.Envelope, error) { return envelope(), nil }, func(string) (domain.StatusReport, error) { return report, nil })
	res, err := f.svc.BuildAndSubmit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("BuildAndSubmit: %v", err)
	}

	got, err := f.svc.CheckStatus(context.Background(), " env-1 ")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if got.Status != domain.StatusAccepted {
		t.Errorf("Status = %s, want accepted", got.Status)
	}
	c, _ := f.cases.GetCaseByEnvelope(context.Background(), "env-1")
	if c.State != domain.StateAccepted || c.CaseNumber != "2026-EV-000123" {
		t.Errorf("case = %+v", c)
	}
	docs, _ := f.cases.ListDocuments(context.Background(), res.CaseID)
	if len(docs) != 1 || docs[0].StampedDocument == "" {
		t.Errorf("documents = %+v", docs)
	}
	if got := transitions(f.events.waitFor(t, 6)); !got["submitted->accepted"] {
		t.Errorf("transitions = %v, want submitted->accepted", got)
	}
}

func TestCheckStatus_UnknownCaseStillReports(t *testing.T) {
	report := domain.StatusReport{EnvelopeID: "env-x", Status: domain.StatusSubmitted}
	f := newFixture(nil, nil, func(string) (domain.StatusReport, error) { return report, nil })

	got, err := f.svc.CheckStatus(context.Background(), "env-x")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if got.EnvelopeID != "env-x" {
		t.Errorf("report = %+v", got)
	}
	if tr := transitions(f.events.waitFor(t, 2)); !tr["submitted->still_processing"] {
		t.Errorf("transitions = %v, want submitted->still_processing", tr)
	}
}

func TestCheckStatus_Errors(t *testing.T) {
	statusErr := &domain.StatusError{EnvelopeID: "env-1", Err: &domain.ServerError{StatusCode: 502}}
	f := newFixture(nil, nil, func(string) (domain.StatusReport, error) { return domain.StatusReport{}, statusErr })

	if _, err := f.svc.CheckStatus(context.Background(), " "); !errors.Is(err, ErrEnvelopeIDRequired) {
		t.Errorf("empty id err = %v, want ErrEnvelopeIDRequired", err)
	}
	_, err := f.svc.CheckStatus(context.Background(), "env-1")
	var se *domain.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
}

func TestEvents(t *testing.T) {
	history := telrepo.NewMemoryRepository()
	e := teldomain.NewEvent(teldomain.TypeSubmitted, eventSource)
	e.EnvelopeID = "env-1"
	if err := history.Save(context.Background(), e); err != nil {
		t.Fatalf("Save: %v", err)
	}
	svc := NewFilingService(nil, nil, nil, nil, nil, nil, history, nil, nil)

	got, err := svc.Events(context.Background(), "env-1", 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 1 || got[0].ID != e.ID {
		t.Errorf("events = %+v", got)
	}
	if _, err := svc.Events(context.Background(), "", 10); !errors.Is(err, ErrEnvelopeIDRequired) {
		t.Errorf("err = %v, want ErrEnvelopeIDRequired", err)
	}
}

func TestResetCircuit(t *testing.T) {
	br := breaker.New(breaker.Settings{Name: "efile", Threshold: 1, Cooldown: time.Hour})
	_ = br.Execute(context.Background(), func(context.Context) error { return errors.New("boom") })
	svc := NewFilingService(nil, nil, nil, nil, nil, nil, nil, nil, br)
	if svc.CircuitState() != breaker.StateOpen {
		t.Fatalf("state = %s, want open", svc.CircuitState())
	}
	if got := svc.CircuitRetryAfter(); got <= 59*time.Minute || got > time.Hour {
		t.Errorf("CircuitRetryAfter = %v, want just under 1h", got)
	}
	svc.ResetCircuit()
	if svc.CircuitState() != breaker.StateClosed {
		t.Errorf("state = %s, want closed", svc.CircuitState())
	}
	if got := svc.CircuitRetryAfter(); got != 0 {
		t.Errorf("CircuitRetryAfter after reset = %v, want 0", got)
	}
}
