package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Flag is a boolean the e-filing service expects as the string "true" or "false".
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"true"`), nil
	}
	return []byte(`"false"`), nil
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var v bool
		if err2 := json.Unmarshal(b, &v); err2 != nil {
			return fmt.Errorf("flag: %w", err)
		}
		*f = Flag(v)
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	*f = Flag(v)
	return nil
}

// PartyRole is the upstream party type code.
type PartyRole string

const (
	RolePlaintiff PartyRole = "189138"
	RoleDefendant PartyRole = "189131"
)

// PartyName is either an Individual or a Business, never both.
type PartyName interface {
	isPartyName()
	DisplayName() string
}

// Individual is a natural person.
type Individual struct {
	FirstName string
	LastName  string
}

func (Individual) isPartyName() {}

func (i Individual) DisplayName() string {
	if i.FirstName == "" {
		return i.LastName
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// Business is an organisation party.
type Business struct {
	Name string
}

func (Business) isPartyName() {}

func (b Business) DisplayName() string { return b.Name }

// Address is a party postal address.
type Address struct {
	Line1   string `json:"address_line_1,omitempty"`
	Line2   string `json:"address_line_2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// CaseParty is one party on the case.
type CaseParty struct {
	ID           string
	Role         PartyRole
	Name         PartyName
	Address      Address
	LeadAttorney string
}

type casePartyWire struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	IsBusiness   Flag   `json:"is_business"`
	BusinessName string `json:"business_name,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Address
	LeadAttorney string `json:"lead_attorney,omitempty"`
}

func (p CaseParty) MarshalJSON() ([]byte, error) {
	w := casePartyWire{ID: p.ID, Type: string(p.Role), Address: p.Address, LeadAttorney: p.LeadAttorney}
	switch n := p.Name.(type) {
	case Business:
		w.IsBusiness = true
		w.BusinessName = n.Name
	case Individual:
		w.FirstName = n.FirstName
		w.LastName = n.LastName
	case nil:
		return nil, fmt.Errorf("party %s: missing name", p.ID)
	default:
		return nil, fmt.Errorf("party %s: unsupported name type %T", p.ID, n)
	}
	return json.Marshal(w)
}

func (p *CaseParty) UnmarshalJSON(b []byte) error {
	var w casePartyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = CaseParty{ID: w.ID, Role: PartyRole(w.Type), Address: w.Address, LeadAttorney: w.LeadAttorney}
	if w.IsBusiness {
		p.Name = Business{Name: w.BusinessName}
	} else {
		p.Name = Individual{FirstName: w.FirstName, LastName: w.LastName}
	}
	return nil
}

// DocumentKind is the closed set of documents a filing may carry.
type DocumentKind int

const (
	DocumentComplaint DocumentKind = iota + 1
	DocumentSummons
	DocumentAffidavit
)

func (k DocumentKind) String() string {
	switch k {
	case DocumentComplaint:
		return "complaint"
	case DocumentSummons:
		return "summons"
	case DocumentAffidavit:
		return "affidavit"
	default:
		return "unknown"
	}
}

// Filing codes for the non-complaint documents.
const (
	SummonsCode          = "189495"
	SummonsDescription   = "Summons - Issued And Returnable"
	AffidavitCode        = "189259"
	AffidavitDescription = "Affidavit Filed"
)

// OptionalService is an add-on billed with the complaint.
type OptionalService struct {
	Quantity int
	Code     string
}

type optionalServiceWire struct {
	Quantity string `json:"quantity"`
	Code     string `json:"code"`
}

// FilingDocument is one document in the filings array.
type FilingDocument struct {
	Kind             DocumentKind
	Code             string
	Description      string
	File             string
	FileName         string
	DocType          string
	OptionalServices *OptionalService
}

type filingDocumentWire struct {
	Code             string                `json:"code"`
	Description      string                `json:"description"`
	File             string                `json:"file"`
	FileName         string                `json:"file_name"`
	DocType          string                `json:"doc_type"`
	OptionalServices []optionalServiceWire `json:"optional_services,omitempty"`
}

func (d FilingDocument) MarshalJSON() ([]byte, error) {
	w := filingDocumentWire{
		Code:        d.Code,
		Description: d.Description,
		File:        d.File,
		FileName:    d.FileName,
		DocType:     d.DocType,
	}
	switch d.Kind {
	case DocumentComplaint:
		if d.OptionalServices != nil {
			w.OptionalServices = []optionalServiceWire{{
				Quantity: strconv.Itoa(d.OptionalServices.Quantity),
				Code:     d.OptionalServices.Code,
			}}
		}
	case DocumentSummons, DocumentAffidavit:
		if d.OptionalServices != nil {
			return nil, fmt.Errorf("%s %s: optional services only apply to the complaint", d.Kind, d.FileName)
		}
	default:
		return nil, fmt.Errorf("document %s: unknown kind %d", d.FileName, d.Kind)
	}
	return json.Marshal(w)
}

func (d *FilingDocument) UnmarshalJSON(b []byte) error {
	var w filingDocumentWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = FilingDocument{
		Code:        w.Code,
		Description: w.Description,
		File:        w.File,
		FileName:    w.FileName,
		DocType:     w.DocType,
	}
	switch w.Code {
	case SummonsCode:
		d.Kind = DocumentSummons
	case AffidavitCode:
		d.Kind = DocumentAffidavit
	default:
		d.Kind = DocumentComplaint
	}
	if len(w.OptionalServices) > 0 {
		q, err := strconv.Atoi(w.OptionalServices[0].Quantity)
		if err != nil {
			return fmt.Errorf("optional_services quantity: %w", err)
		}
		d.OptionalServices = &OptionalService{Quantity: q, Code: w.OptionalServices[0].Code}
	}
	return nil
}

// CrossReference points the filing at an existing record.
type CrossReference struct {
	Number string `json:"number"`
	Code   string `json:"code"`
}

// FilingSubmission is the exact body sent under "data" to the e-file endpoint.
type FilingSubmission struct {
	ReferenceID             string           `json:"reference_id"`
	Jurisdiction            string           `json:"jurisdiction"`
	CaseCategory            string           `json:"case_category"`
	CaseType                string           `json:"case_type"`
	CaseParties             []CaseParty      `json:"case_parties"`
	Filings                 []FilingDocument `json:"filings"`
	FilingType              string           `json:"filing_type"`
	PaymentAccountID        string           `json:"payment_account_id"`
	FilingAttorneyID        string           `json:"filing_attorney_id"`
	FilingPartyID           string           `json:"filing_party_id"`
	IsInitialFiling         bool             `json:"is_initial_filing"`
	AmountInControversy     string           `json:"amount_in_controversy,omitempty"`
	ShowAmountInControversy Flag             `json:"show_amount_in_controversy"`
	CrossReferences         []CrossReference `json:"cross_references,omitempty"`
}

// Complaints returns the complaint documents in the submission.
func (s FilingSubmission) Complaints() []FilingDocument {
	var out []FilingDocument
	for _, f := range s.Filings {
		if f.Kind == DocumentComplaint {
			out = append(out, f)
		}
	}
	return out
}

// Party returns the party with id, or false.
func (s FilingSubmission) Party(id string) (CaseParty, bool) {
	for _, p := range s.CaseParties {
		if p.ID == id {
			return p, true
		}
	}
	return CaseParty{}, false
}
