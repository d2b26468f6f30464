package repository

import (
	"context"

	"eviction-tracker/efiling/internal/casefile/domain"
	efile "eviction-tracker/efiling/internal/efile/domain"
)

// Repository persists cases and their filed documents. A second document for the same
// (envelope, filing) pair fails with a SubmissionError coded duplicate_document; a document for an
// unknown case fails with case_not_found.
type Repository interface {
	CreateCase(ctx context.Context, c *domain.Case) error
	CreateDocument(ctx context.Context, envelopeID, filingID string, d *domain.Document) error
	// GetCaseByEnvelope returns the case for envelopeID, or nil if not found.
	GetCaseByEnvelope(ctx context.Context, envelopeID string) (*domain.Case, error)
	ListDocuments(ctx context.Context, caseID string) ([]*domain.Document, error)
	// UpdateStatus records the latest status report against the case and its documents.
	UpdateStatus(ctx context.Context, report efile.StatusReport) error
}
