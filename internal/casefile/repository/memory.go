package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"eviction-tracker/efiling/internal/casefile/domain"
	efile "eviction-tracker/efiling/internal/efile/domain"
)

// MemoryRepository is a Repository held in process memory. It enforces the same uniqueness and
// case-existence rules as the Postgres tables.
type MemoryRepository struct {
	mu        sync.Mutex
	cases     map[string]*domain.Case
	documents map[string]*domain.Document
	nowF      func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cases:     make(map[string]*domain.Case),
		documents: make(map[string]*domain.Document),
		nowF:      time.Now,
	}
}

func (r *MemoryRepository) CreateCase(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(c, r.nowF())
	for _, existing := range r.cases {
		if existing.ID == c.ID || (c.EnvelopeID != "" && existing.EnvelopeID == c.EnvelopeID) {
			return &efile.SubmissionError{StatusCode: 409, Code: efile.CodeDuplicateDocument, Message: "case " + c.ID + " already recorded"}
		}
	}
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *MemoryRepository) CreateDocument(ctx context.Context, envelopeID, filingID string, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.EnvelopeID, d.FilingID = envelopeID, filingID
	if _, ok := r.cases[d.CaseID]; !ok {
		return &efile.SubmissionError{StatusCode: 404, Code: efile.CodeCaseNotFound, Message: "filing " + envelopeID + "/" + filingID + " references an unknown case"}
	}
	key := envelopeID + "/" + filingID
	if _, ok := r.documents[key]; ok {
		return &efile.SubmissionError{StatusCode: 409, Code: efile.CodeDuplicateDocument, Message: "filing " + key + " already recorded"}
	}
	stampDocument(d, r.nowF())
	cp := *d
	r.documents[key] = &cp
	return nil
}

func (r *MemoryRepository) GetCaseByEnvelope(ctx context.Context, envelopeID string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.EnvelopeID == envelopeID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListDocuments(ctx context.Context, caseID string) ([]*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Document
	for _, d := range r.documents {
		if d.CaseID == caseID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, report efile.StatusReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.Case
	for _, c := range r.cases {
		if c.EnvelopeID == report.EnvelopeID {
			found = c
			break
		}
	}
	if found == nil {
		return caseNotFound(report.EnvelopeID)
	}
	now := r.nowF().UTC()
	found.State = efile.StateFromStatus(report.Status)
	if report.CaseNumber != "" {
		found.CaseNumber = report.CaseNumber
	}
	found.UpdatedAt = now
	for _, f := range report.Filings {
		if d, ok := r.documents[report.EnvelopeID+"/"+f.ID]; ok {
			d.Status = f.Status
			d.StampedDocument = f.StampedDocument
			d.ReviewerComment = f.ReviewerComment
			d.UpdatedAt = now
		}
	}
	return nil
}
