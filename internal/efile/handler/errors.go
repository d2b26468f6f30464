package handler

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"eviction-tracker/efiling/internal/draft"
	"eviction-tracker/efiling/internal/efile/auth"
	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/efile/service"
	"eviction-tracker/efiling/internal/resilience/breaker"
)

// classStatus maps what the user can do about a failure onto an HTTP status.
var classStatus = map[domain.ErrorClass]int{
	domain.ClassFixInput:       http.StatusUnprocessableEntity,
	domain.ClassRetryLater:     http.StatusServiceUnavailable,
	domain.ClassContactSupport: http.StatusBadGateway,
	domain.ClassReauthenticate: http.StatusUnauthorized,
}

// writeDomainError translates an error of the filing taxonomy into a response.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		detail := errorDetail{Code: "validation_failed", Message: "the filing has invalid fields", Class: string(domain.ClassFixInput)}
		for _, v := range verrs {
			detail.Fields = append(detail.Fields, fieldProblem{Field: v.Field, Reason: v.Reason})
		}
		writeError(w, r, http.StatusUnprocessableEntity, detail)
		return
	case errors.Is(err, service.ErrEnvelopeIDRequired):
		writeError(w, r, http.StatusBadRequest, errorDetail{Code: "bad_request", Message: err.Error()})
		return
	case errors.Is(err, draft.ErrNotFound):
		writeError(w, r, http.StatusNotFound, errorDetail{Code: "not_found", Message: err.Error()})
		return
	case errors.Is(err, auth.ErrNoCredentials):
		log.Printf("handler: %v", err)
		writeError(w, r, http.StatusServiceUnavailable, errorDetail{Code: "not_configured", Message: "e-filing is not configured", Class: string(domain.ClassContactSupport)})
		return
	case errors.Is(err, breaker.ErrCircuitOpen):
		w.Header().Set("Retry-After", retryAfterSeconds(h.filings.CircuitRetryAfter()))
		writeError(w, r, http.StatusServiceUnavailable, errorDetail{Code: "circuit_open", Message: "the e-filing service is temporarily unavailable", Class: string(domain.ClassRetryLater)})
		return
	}

	class := domain.Classify(err)
	status, ok := classStatus[class]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, r, status, errorDetail{Code: errorCode(err), Message: err.Error(), Class: string(class)})
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	return strconv.FormatInt(max(secs, 1), 10)
}

func errorCode(err error) string {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) && subErr.Code != "" {
		return subErr.Code
	}
	var authErr *domain.AuthenticationError
	if errors.As(err, &authErr) {
		return strconv.Itoa(authErr.MessageCode)
	}
	var srvErr *domain.ServerError
	if errors.As(err, &srvErr) {
		return "upstream_" + strconv.Itoa(srvErr.StatusCode)
	}
	var netErr *domain.NetworkError
	if errors.As(err, &netErr) {
		return "upstream_unreachable"
	}
	return "internal"
}
