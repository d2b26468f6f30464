// Package payload turns filing form input into the e-filing service's submission payload.
// Everything here is pure: no network, no clock, no storage.
package payload

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"eviction-tracker/efiling/internal/efile/domain"
)

// Defaults for Options fields left empty.
const (
	DefaultOptionalServiceCode = "282616"
	DefaultDocType             = "189705"
	DefaultCaseCategory        = "7"
	DefaultFilingType          = "EFile"
)

var crossReferenceNumber = regexp.MustCompile(`^\d{3,20}$`)

// Options holds the business constants the builder needs.
type Options struct {
	// FallbackCrossReference is used for joint-action cases when the user supplied no valid pair.
	FallbackCrossReference domain.CrossReference
	OptionalServiceCode    string
	DocType                string
	CaseCategory           string
	FilingType             string
	MaxAttachmentBytes     int
	// NewReferenceID generates a reference id when the form has none. Defaults to a random UUID.
	NewReferenceID func() string
}

// Builder assembles and validates submissions.
type Builder struct {
	opts Options
}

// New returns a Builder with defaults applied to empty options.
func New(opts Options) *Builder {
	if opts.OptionalServiceCode == "" {
		opts.OptionalServiceCode = DefaultOptionalServiceCode
	}
	if opts.DocType == "" {
		opts.DocType = DefaultDocType
	}
	if opts.CaseCategory == "" {
		opts.CaseCategory = DefaultCaseCategory
	}
	if opts.FilingType == "" {
		opts.FilingType = DefaultFilingType
	}
	if opts.MaxAttachmentBytes <= 0 {
		opts.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if opts.NewReferenceID == nil {
		opts.NewReferenceID = func() string { return "EFILE-" + uuid.NewString() }
	}
	return &Builder{opts: opts}
}

// BuildCrossReferences picks the cross references for a filing:
// a valid user pair wins, joint-action cases fall back to the configured pair, anything else gets none.
func (b *Builder) BuildCrossReferences(userNumber, userCode, caseType string) []domain.CrossReference {
	number := strings.TrimSpace(userNumber)
	code := strings.TrimSpace(userCode)
	if crossReferenceNumber.MatchString(number) && code != "" {
		return []domain.CrossReference{{Number: number, Code: code}}
	}
	if IsJointAction(caseType) && b.opts.FallbackCrossReference.Number != "" {
		return []domain.CrossReference{b.opts.FallbackCrossReference}
	}
	return nil
}

// Build assembles the submission for form and validates it.
// The returned submission must not be sent when the error list is non-empty.
func (b *Builder) Build(form domain.FormInput) (domain.FilingSubmission, domain.ValidationErrors) {
	var errs domain.ValidationErrors

	caseCategory := form.CaseCategory
	if caseCategory == "" {
		caseCategory = b.opts.CaseCategory
	}
	referenceID := strings.TrimSpace(form.ReferenceID)
	if referenceID == "" {
		referenceID = b.opts.NewReferenceID()
	}

	parties := AssembleParties(form.Petitioner, form.Defendants, form.IncludeUnknownOccupants, form.FilingAttorneyID)

	var filings []domain.FilingDocument
	if form.Complaint != nil {
		errs = append(errs, CheckAttachment("complaint", *form.Complaint, b.opts.MaxAttachmentBytes)...)
		doc := domain.FilingDocument{
			Kind:     domain.DocumentComplaint,
			File:     EncodeAttachment(form.Complaint.Content),
			FileName: form.Complaint.FileName,
			DocType:  b.opts.DocType,
		}
		if fc, err := SelectFilingCode(form.CaseType); err == nil {
			doc.Code = fc.Code
			doc.Description = fc.Description
		}
		if n, ok := ComputeOptionalServicesQuantity(form.CaseType, len(form.Defendants), form.IncludeUnknownOccupants); ok {
			doc.OptionalServices = &domain.OptionalService{Quantity: n, Code: b.opts.OptionalServiceCode}
		}
		filings = append(filings, doc)
	}
	for i, a := range form.Summons {
		errs = append(errs, CheckAttachment("summons["+strconv.Itoa(i)+"]", a, b.opts.MaxAttachmentBytes)...)
		filings = append(filings, domain.FilingDocument{
			Kind:        domain.DocumentSummons,
			Code:        domain.SummonsCode,
			Description: domain.SummonsDescription,
			File:        EncodeAttachment(a.Content),
			FileName:    a.FileName,
			DocType:     b.opts.DocType,
		})
	}
	for i, a := range form.Affidavits {
		errs = append(errs, CheckAttachment("affidavits["+strconv.Itoa(i)+"]", a, b.opts.MaxAttachmentBytes)...)
		filings = append(filings, domain.FilingDocument{
			Kind:        domain.DocumentAffidavit,
			Code:        domain.AffidavitCode,
			Description: domain.AffidavitDescription,
			File:        EncodeAttachment(a.Content),
			FileName:    a.FileName,
			DocType:     b.opts.DocType,
		})
	}

	sub := domain.FilingSubmission{
		ReferenceID:             referenceID,
		Jurisdiction:            strings.TrimSpace(form.Jurisdiction),
		CaseCategory:            caseCategory,
		CaseType:                form.CaseType,
		CaseParties:             parties,
		Filings:                 filings,
		FilingType:              b.opts.FilingType,
		PaymentAccountID:        form.PaymentAccountID,
		FilingAttorneyID:        form.FilingAttorneyID,
		FilingPartyID:           parties[0].ID,
		IsInitialFiling:         form.IsInitialFiling,
		AmountInControversy:     strings.TrimSpace(form.AmountInControversy),
		ShowAmountInControversy: domain.Flag(form.ShowAmountInControversy),
		CrossReferences:         b.BuildCrossReferences(form.CrossReferenceNumber, form.CrossReferenceCode, form.CaseType),
	}
	errs = append(errs, b.Validate(sub)...)
	return sub, errs
}
