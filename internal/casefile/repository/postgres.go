package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"eviction-tracker/efiling/internal/casefile/domain"
	efile "eviction-tracker/efiling/internal/efile/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PostgresRepository struct {
	db   *sql.DB
	nowF func() time.Time
}

// NewPostgresRepository returns a case repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, nowF: time.Now}
}

// CreateCase inserts c, assigning ID and timestamps when unset.
func (r *PostgresRepository) CreateCase(ctx context.Context, c *domain.Case) error {
	stamp(c, r.nowF())
	_, err := r.db.ExecContext(ctx, `INSERT INTO cases
		(id, reference_id, envelope_id, case_tracking_id, case_number, jurisdiction, case_type, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ReferenceID, c.EnvelopeID, c.CaseTrackingID, c.CaseNumber, c.Jurisdiction, c.CaseType,
		string(c.State), c.CreatedAt, c.UpdatedAt)
	return mapPgError(err, "case "+c.ID)
}

// CreateDocument inserts d for the given envelope filing.
func (r *PostgresRepository) CreateDocument(ctx context.Context, envelopeID, filingID string, d *domain.Document) error {
	d.EnvelopeID, d.FilingID = envelopeID, filingID
	stampDocument(d, r.nowF())
	_, err := r.db.ExecContext(ctx, `INSERT INTO documents
		(id, case_id, envelope_id, filing_id, code, type, file_name, status, stamped_document, reviewer_comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.CaseID, d.EnvelopeID, d.FilingID, d.Code, d.Type, d.FileName, string(d.Status),
		d.StampedDocument, d.ReviewerComment, d.CreatedAt, d.UpdatedAt)
	return mapPgError(err, "filing "+envelopeID+"/"+filingID)
}

// GetCaseByEnvelope returns the case for envelopeID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetCaseByEnvelope(ctx context.Context, envelopeID string) (*domain.Case, error) {
	var c domain.Case
	var state string
	err := r.db.QueryRowContext(ctx, `SELECT id, reference_id, envelope_id, case_tracking_id, case_number,
		jurisdiction, case_type, state, created_at, updated_at FROM cases WHERE envelope_id = $1`, envelopeID).
		Scan(&c.ID, &c.ReferenceID, &c.EnvelopeID, &c.CaseTrackingID, &c.CaseNumber,
			&c.Jurisdiction, &c.CaseType, &state, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.State = efile.FilingState(state)
	return &c, nil
}

// ListDocuments returns the documents of caseID ordered by creation.
func (r *PostgresRepository) ListDocuments(ctx context.Context, caseID string) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, case_id, envelope_id, filing_id, code, type, file_name, status,
		stamped_document, reviewer_comment, created_at, updated_at
		FROM documents WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Document
	for rows.Next() {
		var d domain.Document
		var status string
		if err := rows.Scan(&d.ID, &d.CaseID, &d.EnvelopeID, &d.FilingID, &d.Code, &d.Type, &d.FileName, &status,
			&d.StampedDocument, &d.ReviewerComment, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Status = efile.FilingStatus(status)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// UpdateStatus writes the report's overall state to the case and each filing's status to its document.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, report efile.StatusReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := r.nowF().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE cases SET state = $1, case_number = COALESCE(NULLIF($2, ''), case_number),
		updated_at = $3 WHERE envelope_id = $4`, string(efile.StateFromStatus(report.Status)), report.CaseNumber, now, report.EnvelopeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return caseNotFound(report.EnvelopeID)
	}
	for _, f := range report.Filings {
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET status = $1, stamped_document = $2, reviewer_comment = $3,
			updated_at = $4 WHERE envelope_id = $5 AND filing_id = $6`,
			string(f.Status), f.StampedDocument, f.ReviewerComment, now, report.EnvelopeID, f.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// mapPgError turns constraint violations into the SubmissionError codes callers switch on.
func mapPgError(err error, what string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &efile.SubmissionError{StatusCode: 409, Code: efile.CodeDuplicateDocument, Message: what + " already recorded"}
		case pgForeignKeyViolation:
			return &efile.SubmissionError{StatusCode: 404, Code: efile.CodeCaseNotFound, Message: what + " references an unknown case"}
		}
	}
	return err
}

func caseNotFound(what string) error {
	return &efile.SubmissionError{StatusCode: 404, Code: efile.CodeCaseNotFound, Message: "no case for " + what}
}

func stamp(c *domain.Case, now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now.UTC()
	}
	c.UpdatedAt = c.CreatedAt
}

func stampDocument(d *domain.Document, now time.Time) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now.UTC()
	}
	d.UpdatedAt = d.CreatedAt
}
