package domain

// Policy is an extra Rego module evaluated alongside the built-in filing policy.
type Policy struct {
	Name    string
	Rules   string
	Enabled bool
}

// Violation is one reason the filing policy refused a submission.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Decision is the outcome of a filing policy evaluation.
type Decision struct {
	Allowed    bool
	Violations []Violation
}
