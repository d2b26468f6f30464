package payload

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"eviction-tracker/efiling/internal/efile/domain"
)

var amountFormat = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// Validate checks every invariant of sub and returns all violations. It never panics.
func (b *Builder) Validate(sub domain.FilingSubmission) domain.ValidationErrors {
	var errs domain.ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, domain.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	required := []struct{ field, value string }{
		{"reference_id", sub.ReferenceID},
		{"jurisdiction", sub.Jurisdiction},
		{"case_category", sub.CaseCategory},
		{"payment_account_id", sub.PaymentAccountID},
		{"filing_attorney_id", sub.FilingAttorneyID},
		{"filing_party_id", sub.FilingPartyID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			add(r.field, "is required")
		}
	}

	fc, err := SelectFilingCode(sub.CaseType)
	var codeErr domain.ValidationError
	if errors.As(err, &codeErr) {
		errs = append(errs, codeErr)
	}
	known := err == nil

	defendants := validateParties(sub, add)

	complaints := 0
	for i, f := range sub.Filings {
		field := fmt.Sprintf("filings[%d]", i)
		switch f.Kind {
		case domain.DocumentComplaint:
			complaints++
			if known && f.Code != fc.Code {
				add(field+".code", "complaint code %s does not match case type %s (want %s)", f.Code, sub.CaseType, fc.Code)
			}
			validateOptionalServices(field, f, sub.CaseType, defendants, b.opts.OptionalServiceCode, add)
		case domain.DocumentSummons, domain.DocumentAffidavit:
			if f.OptionalServices != nil {
				add(field+".optional_services", "only the complaint carries optional services")
			}
		default:
			add(field, "unknown document kind")
		}
		if f.Code == "" {
			add(field+".code", "is required")
		}
		if f.FileName == "" {
			add(field+".file_name", "is required")
		}
		if f.DocType == "" {
			add(field+".doc_type", "is required")
		}
		switch {
		case !strings.HasPrefix(f.File, FileScheme):
			add(field+".file", "must be %s encoded", FileScheme)
		case len(f.File) == len(FileScheme):
			add(field+".file", "file is empty")
		}
	}
	if complaints != 1 {
		add("filings", "exactly one complaint is required, got %d", complaints)
	}

	switch {
	case len(sub.CrossReferences) > 1:
		add("cross_references", "at most one cross reference is allowed")
	case len(sub.CrossReferences) == 0 && known && fc.JointAction:
		add("cross_references", "joint action cases require a cross reference")
	}
	for i, cr := range sub.CrossReferences {
		if !crossReferenceNumber.MatchString(cr.Number) {
			add(fmt.Sprintf("cross_references[%d].number", i), "must be 3 to 20 digits")
		}
		if strings.TrimSpace(cr.Code) == "" {
			add(fmt.Sprintf("cross_references[%d].code", i), "is required")
		}
	}

	if sub.AmountInControversy != "" && !amountFormat.MatchString(sub.AmountInControversy) {
		add("amount_in_controversy", "must be a dollar amount like 1500.00")
	}
	if sub.ShowAmountInControversy && sub.AmountInControversy == "" {
		add("amount_in_controversy", "is required when shown")
	}
	return errs
}

// validateParties checks party shape and ordering and returns the number of defendant parties.
func validateParties(sub domain.FilingSubmission, add func(field, format string, args ...any)) int {
	if len(sub.CaseParties) < 2 {
		add("case_parties", "a petitioner and at least one defendant are required")
	}
	seen := make(map[string]bool, len(sub.CaseParties))
	defendants := 0
	for i, p := range sub.CaseParties {
		field := fmt.Sprintf("case_parties[%d]", i)
		if p.ID == "" {
			add(field+".id", "is required")
		} else if seen[p.ID] {
			add(field+".id", "duplicate party id %s", p.ID)
		}
		seen[p.ID] = true

		switch n := p.Name.(type) {
		case domain.Business:
			if strings.TrimSpace(n.Name) == "" {
				add(field+".business_name", "is required for a business")
			}
		case domain.Individual:
			if strings.TrimSpace(n.FirstName) == "" {
				add(field+".first_name", "is required for an individual")
			}
			if strings.TrimSpace(n.LastName) == "" {
				add(field+".last_name", "is required for an individual")
			}
		default:
			add(field, "party must be an individual or a business")
		}

		switch p.Role {
		case domain.RolePlaintiff:
			if i != 0 {
				add(field+".type", "the petitioner must be the first party")
			}
		case domain.RoleDefendant:
			defendants++
			if i == 0 {
				add(field+".type", "the first party must be the petitioner")
			}
		default:
			add(field+".type", "unknown party type %s", p.Role)
		}
		if IsUnknownOccupants(p) && i != len(sub.CaseParties)-1 {
			add(field, "Unknown Occupants must be the last party")
		}
		if p.LeadAttorney != "" && p.ID != sub.FilingPartyID {
			add(field+".lead_attorney", "only the filing party has a lead attorney")
		}
	}

	if sub.FilingPartyID != "" {
		fp, ok := sub.Party(sub.FilingPartyID)
		switch {
		case !ok:
			add("filing_party_id", "does not match any case party")
		case fp.Role != domain.RolePlaintiff:
			add("filing_party_id", "the filing party must be the petitioner")
		case fp.LeadAttorney == "":
			add("filing_party_id", "the filing party needs a lead attorney")
		}
	}
	return defendants
}

func validateOptionalServices(field string, f domain.FilingDocument, caseType string, defendants int, code string, add func(field, format string, args ...any)) {
	if !IsJointAction(caseType) {
		if f.OptionalServices != nil {
			add(field+".optional_services", "only joint action cases carry optional services")
		}
		return
	}
	if f.OptionalServices == nil {
		add(field+".optional_services", "joint action complaints require optional services")
		return
	}
	if f.OptionalServices.Quantity != defendants {
		add(field+".optional_services", "quantity %d does not match %d defendants", f.OptionalServices.Quantity, defendants)
	}
	if f.OptionalServices.Code != code {
		add(field+".optional_services", "code %s, want %s", f.OptionalServices.Code, code)
	}
}
