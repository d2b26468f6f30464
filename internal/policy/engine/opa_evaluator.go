package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	efile "eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/policy/domain"
	"eviction-tracker/efiling/internal/policy/repository"
)

const denyQuery = "data.efiling.filing.deny"

// Built-in filing policy. Extra modules from the repository add deny rules to the same package.
const defaultRegoPolicy = `package efiling.filing

deny contains {"field": "jurisdiction", "reason": sprintf("jurisdiction %q is not enabled for e-filing", [input.submission.jurisdiction])} if {
	count(input.settings.jurisdictions) > 0
	not jurisdiction_enabled
}

jurisdiction_enabled if {
	some j in input.settings.jurisdictions
	j == input.submission.jurisdiction
}

deny contains {"field": "case_parties", "reason": "at least one defendant is required"} if {
	count([p | some p in input.submission.case_parties; p.type == "189131"]) == 0
}
`

// OPAEvaluator evaluates the filing policy using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	settings   Settings
}

// NewOPAEvaluator returns an OPA-based filing policy evaluator. policyRepo may be nil.
func NewOPAEvaluator(policyRepo repository.Repository, settings Settings) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo, settings: settings}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	minimalInput := map[string]interface{}{
		"settings":   map[string]interface{}{"jurisdictions": []interface{}{}},
		"submission": map[string]interface{}{"jurisdiction": "", "case_parties": []interface{}{}, "filings": []interface{}{}},
	}
	if _, err := e.evaluatePolicies(ctx, []string{defaultRegoPolicy}, minimalInput); err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	return nil
}

// EvaluateFiling evaluates the built-in policy plus any enabled repository policies.
// Broken repository policies are logged and skipped so the built-in rules still apply.
func (e *OPAEvaluator) EvaluateFiling(ctx context.Context, sub efile.FilingSubmission) (domain.Decision, error) {
	input, err := e.buildInput(sub)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("build input: %w", err)
	}

	policies := []string{defaultRegoPolicy}
	if e.policyRepo != nil {
		extra, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: failed to load filing policies: %v", err)
		}
		for _, p := range extra {
			if p.Enabled && p.Rules != "" {
				policies = append(policies, p.Rules)
			}
		}
	}

	violations, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil && len(policies) > 1 {
		log.Printf("policy: evaluation with custom policies failed: %v, using built-in policy", err)
		violations, err = e.evaluatePolicies(ctx, policies[:1], input)
	}
	if err != nil {
		return domain.Decision{}, err
	}
	return domain.Decision{Allowed: len(violations) == 0, Violations: violations}, nil
}

// buildInput round-trips the submission through its wire encoding so rules see the JSON field names.
func (e *OPAEvaluator) buildInput(sub efile.FilingSubmission) (map[string]interface{}, error) {
	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, err
	}
	var submission map[string]interface{}
	if err := json.Unmarshal(raw, &submission); err != nil {
		return nil, err
	}
	jurisdictions := make([]interface{}, 0, len(e.settings.Jurisdictions))
	for _, j := range e.settings.Jurisdictions {
		jurisdictions = append(jurisdictions, j)
	}
	return map[string]interface{}{
		"submission": submission,
		"settings":   map[string]interface{}{"jurisdictions": jurisdictions},
	}, nil
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) ([]domain.Violation, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}

	q := rego.New(
		rego.Query(denyQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("eval policies: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, errors.New("policy query returned no result")
	}
	set, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("policy deny is %T, want a set", rs[0].Expressions[0].Value)
	}

	out := make([]domain.Violation, 0, len(set))
	for _, item := range set {
		switch v := item.(type) {
		case map[string]interface{}:
			field, _ := v["field"].(string)
			reason, _ := v["reason"].(string)
			out = append(out, domain.Violation{Field: field, Reason: reason})
		case string:
			out = append(out, domain.Violation{Field: "filing", Reason: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Reason < out[j].Reason
	})
	return out, nil
}
