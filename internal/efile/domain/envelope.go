package domain

import (
	"strings"
	"time"
)

// FilingStatus is the normalized per-document acceptance status.
type FilingStatus string

const (
	StatusSubmitting FilingStatus = "submitting"
	StatusSubmitted  FilingStatus = "submitted"
	StatusAccepted   FilingStatus = "accepted"
	StatusRejected   FilingStatus = "rejected"
)

// MapUpstreamStatus normalizes the free-form status string returned by the service.
// Anything not recognised is treated as still being processed.
func MapUpstreamStatus(s string) FilingStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submitting", "pending", "queued":
		return StatusSubmitting
	case "accepted", "approved", "filed":
		return StatusAccepted
	case "rejected", "failed", "denied":
		return StatusRejected
	default:
		return StatusSubmitted
	}
}

// EnvelopeFiling is the status of one document inside an envelope.
type EnvelopeFiling struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	File            string `json:"file,omitempty"`
	Status          string `json:"status"`
	StampedDocument string `json:"stamped_document,omitempty"`
	ReviewerComment string `json:"reviewer_comment,omitempty"`
	StatusReason    string `json:"status_reason,omitempty"`
}

// Envelope is the service's receipt for a submission.
type Envelope struct {
	ID                 string           `json:"id"`
	ClientMatterNumber string           `json:"client_matter_number,omitempty"`
	Jurisdiction       string           `json:"jurisdiction,omitempty"`
	CaseNumber         string           `json:"case_number,omitempty"`
	CaseTrackingID     string           `json:"case_tracking_id"`
	CaseCategory       string           `json:"case_category,omitempty"`
	CaseType           string           `json:"case_type,omitempty"`
	Status             string           `json:"status,omitempty"`
	SubmissionDate     string           `json:"submission_date,omitempty"`
	Filings            []EnvelopeFiling `json:"filings"`
}

// FilingReport is the normalized view of one EnvelopeFiling.
type FilingReport struct {
	ID              string       `json:"id"`
	Code            string       `json:"code"`
	Status          FilingStatus `json:"status"`
	StampedDocument string       `json:"stamped_document,omitempty"`
	ReviewerComment string       `json:"reviewer_comment,omitempty"`
	StatusReason    string       `json:"status_reason,omitempty"`
}

// StatusReport is the result of one status check.
type StatusReport struct {
	EnvelopeID     string         `json:"envelope_id"`
	CaseNumber     string         `json:"case_number,omitempty"`
	CaseTrackingID string         `json:"case_tracking_id,omitempty"`
	Status         FilingStatus   `json:"status"`
	Filings        []FilingReport `json:"filings"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// NewStatusReport normalizes env into a report.
func NewStatusReport(env Envelope, checkedAt time.Time) StatusReport {
	r := StatusReport{
		EnvelopeID:     env.ID,
		CaseNumber:     env.CaseNumber,
		CaseTrackingID: env.CaseTrackingID,
		CheckedAt:      checkedAt,
		Filings:        make([]FilingReport, 0, len(env.Filings)),
	}
	for _, f := range env.Filings {
		r.Filings = append(r.Filings, FilingReport{
			ID:              f.ID,
			Code:            f.Code,
			Status:          MapUpstreamStatus(f.Status),
			StampedDocument: f.StampedDocument,
			ReviewerComment: f.ReviewerComment,
			StatusReason:    f.StatusReason,
		})
	}
	r.Status = overallStatus(r.Filings, env.Status)
	return r
}

// overallStatus: any rejection rejects the envelope; it is accepted only when every filing is.
func overallStatus(filings []FilingReport, envelopeStatus string) FilingStatus {
	if len(filings) == 0 {
		return MapUpstreamStatus(envelopeStatus)
	}
	accepted, submitting := 0, false
	for _, f := range filings {
		switch f.Status {
		case StatusRejected:
			return StatusRejected
		case StatusAccepted:
			accepted++
		case StatusSubmitting:
			submitting = true
		}
	}
	if accepted == len(filings) {
		return StatusAccepted
	}
	if submitting {
		return StatusSubmitting
	}
	return StatusSubmitted
}
