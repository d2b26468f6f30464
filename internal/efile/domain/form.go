package domain

// PartyInput is a party as entered on the filing form.
type PartyInput struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	IsBusiness   bool   `json:"is_business" yaml:"is_business"`
	BusinessName string `json:"business_name,omitempty" yaml:"business_name,omitempty"`
	FirstName    string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	AddressLine1 string `json:"address_line_1,omitempty" yaml:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty" yaml:"address_line_2,omitempty"`
	City         string `json:"city,omitempty" yaml:"city,omitempty"`
	State        string `json:"state,omitempty" yaml:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty" yaml:"zip_code,omitempty"`
}

// Address returns the party's postal address.
func (p PartyInput) Address() Address {
	return Address{Line1: p.AddressLine1, Line2: p.AddressLine2, City: p.City, State: p.State, ZipCode: p.ZipCode}
}

// Name returns the tagged name variant for the party.
func (p PartyInput) Name() PartyName {
	if p.IsBusiness {
		return Business{Name: p.BusinessName}
	}
	return Individual{FirstName: p.FirstName, LastName: p.LastName}
}

// Attachment is an uploaded document. Path is only used by the CLI, which loads it into Content.
type Attachment struct {
	FileName    string `json:"file_name" yaml:"file_name"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Content     []byte `json:"content,omitempty" yaml:"-"`
}

// FormInput is everything the user entered for one filing. It is also the draft snapshot.
type FormInput struct {
	ReferenceID             string       `json:"reference_id,omitempty" yaml:"reference_id,omitempty"`
	CaseID                  string       `json:"case_id,omitempty" yaml:"case_id,omitempty"`
	Jurisdiction            string       `json:"jurisdiction" yaml:"jurisdiction"`
	CaseCategory            string       `json:"case_category,omitempty" yaml:"case_category,omitempty"`
	CaseType                string       `json:"case_type" yaml:"case_type"`
	Petitioner              PartyInput   `json:"petitioner" yaml:"petitioner"`
	Defendants              []PartyInput `json:"defendants" yaml:"defendants"`
	IncludeUnknownOccupants bool         `json:"include_unknown_occupants" yaml:"include_unknown_occupants"`
	CrossReferenceNumber    string       `json:"cross_reference_number,omitempty" yaml:"cross_reference_number,omitempty"`
	CrossReferenceCode      string       `json:"cross_reference_code,omitempty" yaml:"cross_reference_code,omitempty"`
	PaymentAccountID        string       `json:"payment_account_id" yaml:"payment_account_id"`
	FilingAttorneyID        string       `json:"filing_attorney_id" yaml:"filing_attorney_id"`
	IsInitialFiling         bool         `json:"is_initial_filing" yaml:"is_initial_filing"`
	AmountInControversy     string       `json:"amount_in_controversy,omitempty" yaml:"amount_in_controversy,omitempty"`
	ShowAmountInControversy bool         `json:"show_amount_in_controversy" yaml:"show_amount_in_controversy"`
	Complaint               *Attachment  `json:"complaint,omitempty" yaml:"complaint,omitempty"`
	Summons                 []Attachment `json:"summons,omitempty" yaml:"summons,omitempty"`
	Affidavits              []Attachment `json:"affidavits,omitempty" yaml:"affidavits,omitempty"`
}
