package domain

import (
	"time"

	efile "eviction-tracker/efiling/internal/efile/domain"
)

// Case is the local record of a filed eviction case.
type Case struct {
	ID             string
	ReferenceID    string
	EnvelopeID     string
	CaseTrackingID string
	CaseNumber     string
	Jurisdiction   string
	CaseType       string
	State          efile.FilingState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Document is one filing of an envelope, linked to its case.
type Document struct {
	ID              string
	CaseID          string
	EnvelopeID      string
	FilingID        string
	Code            string
	Type            string
	FileName        string
	Status          efile.FilingStatus
	StampedDocument string
	ReviewerComment string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
