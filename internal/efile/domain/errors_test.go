package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestMessageText(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Success"},
		{1001, "Invalid credentials"},
		{1002, "Token expired"},
		{2001, "Invalid filing data"},
		{3001, "Envelope not found"},
		{9999, "Unexpected error"},
	}
	for _, tt := range tests {
		if got := MessageText(tt.code); got != tt.want {
			t.Errorf("MessageText(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestRetryClassifier_Permanent(t *testing.T) {
	c := NewRetryClassifier([]string{" 4290 ", ""})
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"auth", &AuthenticationError{MessageCode: CodeInvalidCredentials}, true},
		{"wrapped auth", fmt.Errorf("login: %w", &AuthenticationError{}), true},
		{"submission", &SubmissionError{StatusCode: 400, Code: "2003"}, true},
		{"submission allow-listed", &SubmissionError{StatusCode: 423, Code: "4290"}, false},
		{"submission transient", &SubmissionError{StatusCode: 429, Code: "http_429", Transient: true}, false},
		{"validation", ValidationErrors{{Field: "case_type", Reason: "unknown"}}, true},
		{"server", &ServerError{StatusCode: 502}, false},
		{"network", &NetworkError{Op: "post", Err: errors.New("reset")}, false},
		{"canceled", context.Canceled, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Permanent(tt.err); got != tt.want {
				t.Errorf("Permanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailureWeight(t *testing.T) {
	if got := FailureWeight(&ServerError{StatusCode: 500}); got != 2 {
		t.Errorf("FailureWeight(ServerError) = %d, want 2", got)
	}
	if got := FailureWeight(fmt.Errorf("x: %w", &ServerError{StatusCode: 503})); got != 2 {
		t.Errorf("FailureWeight(wrapped ServerError) = %d, want 2", got)
	}
	if got := FailureWeight(errors.New("boom")); got != 1 {
		t.Errorf("FailureWeight(generic) = %d, want 1", got)
	}
	if got := FailureWeight(context.Canceled); got != 0 {
		t.Errorf("FailureWeight(canceled) = %d, want 0", got)
	}
	if got := FailureWeight(nil); got != 0 {
		t.Errorf("FailureWeight(nil) = %d, want 0", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ClassNone},
		{ValidationErrors{{Field: "filings", Reason: "missing complaint"}}, ClassFixInput},
		{&AuthenticationError{}, ClassReauthenticate},
		{&SubmissionError{Code: "1002"}, ClassReauthenticate},
		{&SubmissionError{Code: "2001"}, ClassFixInput},
		{&SubmissionError{Code: "2003"}, ClassContactSupport},
		{&SubmissionError{Code: "http_429", Transient: true}, ClassRetryLater},
		{&ServerError{StatusCode: 500}, ClassRetryLater},
		{&StatusError{EnvelopeID: "e1", Err: errors.New("timeout")}, ClassRetryLater},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsTokenExpiredError(t *testing.T) {
	if !IsTokenExpiredError(ErrTokenExpired) {
		t.Error("ErrTokenExpired not recognised")
	}
	if !IsTokenExpiredError(&SubmissionError{StatusCode: 401, Code: "1002"}) {
		t.Error("submission code 1002 not recognised")
	}
	if IsTokenExpiredError(&AuthenticationError{MessageCode: CodeInvalidCredentials}) {
		t.Error("invalid credentials reported as token expiry")
	}
}

func TestIsTokenExpired(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if IsTokenExpired(exp.Add(-time.Nanosecond), exp) {
		t.Error("token expired before its expiry")
	}
	if !IsTokenExpired(exp, exp) {
		t.Error("token usable at its expiry instant")
	}
	if !IsTokenExpired(exp.Add(time.Second), exp) {
		t.Error("token usable after expiry")
	}
}

func TestAuthToken_StringHidesValue(t *testing.T) {
	tok := AuthToken{Value: "secret-token", ExpiresAt: time.Now().Add(time.Hour)}
	if strings.Contains(tok.String(), "secret-token") {
		t.Errorf("String() = %q leaks the token", tok.String())
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "post", Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("NetworkError does not unwrap")
	}
}

func TestCaseParty_MarshalJSON(t *testing.T) {
	t.Run("business", func(t *testing.T) {
		b, err := json.Marshal(CaseParty{ID: "Party_1", Role: RolePlaintiff, Name: Business{Name: "Acme LLC"}, LeadAttorney: "att"})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if m["is_business"] != "true" || m["business_name"] != "Acme LLC" {
			t.Errorf("business party = %s", b)
		}
		if _, ok := m["first_name"]; ok {
			t.Errorf("business party carries first_name: %s", b)
		}
	})
	t.Run("individual", func(t *testing.T) {
		b, err := json.Marshal(CaseParty{ID: "Party_2", Role: RoleDefendant, Name: Individual{FirstName: "John", LastName: "Doe"}})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if m["is_business"] != "false" || m["first_name"] != "John" || m["last_name"] != "Doe" {
			t.Errorf("individual party = %s", b)
		}
		if _, ok := m["business_name"]; ok {
			t.Errorf("individual party carries business_name: %s", b)
		}
	})
	t.Run("missing name", func(t *testing.T) {
		if _, err := json.Marshal(CaseParty{ID: "Party_3"}); err == nil {
			t.Error("expected error for party without a name")
		}
	})
}

func TestFilingDocument_MarshalJSON(t *testing.T) {
	doc := FilingDocument{
		Kind:             DocumentComplaint,
		Code:             "174403",
		File:             "base64://AAAA",
		FileName:         "complaint.pdf",
		DocType:          "189705",
		OptionalServices: &OptionalService{Quantity: 3, Code: "282616"},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"optional_services":[{"quantity":"3","code":"282616"}]`) {
		t.Errorf("complaint = %s", b)
	}

	summons := FilingDocument{Kind: DocumentSummons, Code: SummonsCode, OptionalServices: &OptionalService{Quantity: 1}}
	if _, err := json.Marshal(summons); err == nil {
		t.Error("expected error for optional services on a summons")
	}
	if _, err := json.Marshal(FilingDocument{Code: "x"}); err == nil {
		t.Error("expected error for unknown document kind")
	}
}

func TestFilingSubmission_OmitsCrossReferences(t *testing.T) {
	sub := FilingSubmission{
		CaseParties: []CaseParty{{ID: "Party_1", Role: RolePlaintiff, Name: Business{Name: "Acme"}}},
		Filings:     []FilingDocument{{Kind: DocumentComplaint, Code: "174402"}},
	}
	b, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "cross_references") {
		t.Errorf("cross_references present without references: %s", b)
	}
	if !strings.Contains(string(b), `"show_amount_in_controversy":"false"`) {
		t.Errorf("show_amount_in_controversy not a string flag: %s", b)
	}
}
