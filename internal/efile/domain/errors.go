package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Upstream message codes returned in the message_code field of every response.
const (
	CodeSuccess            = 0
	CodeInvalidCredentials = 1001
	CodeTokenExpired       = 1002
	CodeInvalidFilingData  = 2001
	CodeEnvelopeNotFound   = 3001
)

// Local SubmissionError codes that do not come from the e-filing service.
const (
	CodeMissingEnvelopeID = "missing_envelope_id"
	CodeDuplicateDocument = "duplicate_document"
	CodeCaseNotFound      = "case_not_found"
)

// MessageText translates an upstream message code into a human readable string.
func MessageText(code int) string {
	switch code {
	case CodeSuccess:
		return "Success"
	case CodeInvalidCredentials:
		return "Invalid credentials"
	case CodeTokenExpired:
		return "Token expired"
	case CodeInvalidFilingData:
		return "Invalid filing data"
	case CodeEnvelopeNotFound:
		return "Envelope not found"
	default:
		return "Unexpected error"
	}
}

// ValidationError is a payload invariant violation found before any network call.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationErrors is the full list of violations for one submission attempt.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any violation concerns field.
func (v ValidationErrors) Has(field string) bool {
	for _, e := range v {
		if e.Field == field {
			return true
		}
	}
	return false
}

// AuthenticationError is a credential rejection. It is never retried.
type AuthenticationError struct {
	MessageCode int
	Message     string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "efile: authentication failed"
	}
	return "efile: authentication failed: " + e.Message
}

// ServerError is a 5xx from the e-filing service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("efile: server error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("efile: server error (status %d): %s", e.StatusCode, e.Message)
}

// SubmissionError is a business rejection (4xx or a non-zero message code).
// Code carries the upstream message_code, or one of the local Code* constants.
type SubmissionError struct {
	StatusCode int
	Code       string
	Message    string
	// Transient marks rejections the service expects to clear on its own (rate limiting, locks).
	Transient bool
}

// Retryable reports whether the service flagged the rejection as transient.
func (e *SubmissionError) Retryable() bool { return e.Transient }

func (e *SubmissionError) Error() string {
	msg := e.Message
	if msg == "" {
		if n, err := strconv.Atoi(e.Code); err == nil {
			msg = MessageText(n)
		} else {
			msg = "submission rejected"
		}
	}
	return fmt.Sprintf("efile: %s (code %s)", msg, e.Code)
}

// NetworkError means no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return "efile: " + e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError wraps a failed status check. Status failures are soft: the caller may simply ask again.
type StatusError struct {
	EnvelopeID string
	Err        error
}

func (e *StatusError) Error() string {
	return "efile: status for envelope " + e.EnvelopeID + " unavailable: " + e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// ErrTokenExpired is returned when a request would carry a token at or past its expiry.
var ErrTokenExpired = &AuthenticationError{MessageCode: CodeTokenExpired, Message: "auth token expired"}

// IsTokenExpiredError reports whether err says the bearer token is no longer accepted.
func IsTokenExpiredError(err error) bool {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) && authErr.MessageCode == CodeTokenExpired {
		return true
	}
	var subErr *SubmissionError
	return errors.As(err, &subErr) && subErr.Code == strconv.Itoa(CodeTokenExpired)
}

// RetryClassifier decides which errors must not be retried.
// SubmissionError codes listed in RetryableCodes are retried; all other submission codes are final.
type RetryClassifier struct {
	RetryableCodes map[string]bool
}

// NewRetryClassifier builds a classifier from a list of retryable submission codes.
func NewRetryClassifier(codes []string) RetryClassifier {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			m[c] = true
		}
	}
	return RetryClassifier{RetryableCodes: m}
}

// Permanent reports whether err must be returned without another attempt.
func (c RetryClassifier) Permanent(err error) bool {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return true
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return !subErr.Retryable() && !c.RetryableCodes[subErr.Code]
	}
	var vErrs ValidationErrors
	if errors.As(err, &vErrs) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// FailureWeight is the number of circuit-breaker failure units err is worth.
// Server errors count double; caller cancellation and input errors do not count.
func FailureWeight(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 0
	}
	var vErrs ValidationErrors
	if errors.As(err, &vErrs) {
		return 0
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return 2
	}
	return 1
}

// ErrorClass tells the UI what the user can do about a failure.
type ErrorClass string

const (
	ClassNone           ErrorClass = ""
	ClassFixInput       ErrorClass = "fix-input"
	ClassRetryLater     ErrorClass = "retry-later"
	ClassReauthenticate ErrorClass = "re-authenticate"
	ClassContactSupport ErrorClass = "contact-support"
)

// Classify maps an error from the taxonomy onto an ErrorClass.
// Unknown errors are treated as transient.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	var vErrs ValidationErrors
	if errors.As(err, &vErrs) {
		return ClassFixInput
	}
	var vErr ValidationError
	if errors.As(err, &vErr) {
		return ClassFixInput
	}
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return ClassReauthenticate
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		switch {
		case subErr.Retryable():
			return ClassRetryLater
		case subErr.Code == strconv.Itoa(CodeTokenExpired):
			return ClassReauthenticate
		case subErr.Code == strconv.Itoa(CodeInvalidFilingData):
			return ClassFixInput
		default:
			return ClassContactSupport
		}
	}
	return ClassRetryLater
}
