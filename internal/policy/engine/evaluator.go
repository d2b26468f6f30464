package engine

import (
	"context"

	efile "eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/policy/domain"
)

// Evaluator decides whether a built submission may be sent to the e-filing service.
type Evaluator interface {
	// EvaluateFiling runs the filing policy over sub. A refused filing is a Decision with
	// Allowed false, not an error.
	EvaluateFiling(ctx context.Context, sub efile.FilingSubmission) (domain.Decision, error)
}

// Settings are the deployment values the policy reads under input.settings.
type Settings struct {
	// Jurisdictions enabled for e-filing. Empty allows every jurisdiction.
	Jurisdictions []string
}

// Violations converts a refused decision into the validation errors the caller shows the user.
func Violations(d domain.Decision) efile.ValidationErrors {
	if d.Allowed {
		return nil
	}
	out := make(efile.ValidationErrors, 0, len(d.Violations))
	for _, v := range d.Violations {
		out = append(out, efile.ValidationError{Field: v.Field, Reason: v.Reason})
	}
	if len(out) == 0 {
		out = append(out, efile.ValidationError{Field: "filing", Reason: "refused by filing policy"})
	}
	return out
}
