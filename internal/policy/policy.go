package policy

import (
	"sort"

	"paworker/internal/constants"
	"paworker/internal/evidence"
)

// Decision is the outcome of evaluating one evidence set.
type Decision struct {
	PolicyID            string             `json:"policy_id"`
	Outcome             constants.Decision `json:"decision"`
	Explanation         string             `json:"explanation"`
	MissingRequirements []string           `json:"missing_requirements"`
}

// Approved reports whether every requirement was met.
func (d Decision) Approved() bool {
	return d.Outcome == constants.DecisionApprove
}

// Evaluator is the contract the pipeline depends on. Implementations are pure:
// the same Findings always produce the same Decision.
type Evaluator interface {
	ID() string
	Evaluate(findings evidence.Findings) Decision
}

// RuleSet is a declarative policy: every criterion in Required must be present,
// checked in order.
type RuleSet struct {
	PolicyID        string
	Required        []evidence.Criterion
	ApproveText     string
	NeedsMoreInText string
}

func (r RuleSet) ID() string { return r.PolicyID }

func (r RuleSet) Evaluate(findings evidence.Findings) Decision {
	missing := []string{}
	for _, c := range r.Required {
		if !findings.Present(c) {
			missing = append(missing, string(c))
		}
	}

	if len(missing) == 0 {
		return Decision{
			PolicyID:            r.PolicyID,
			Outcome:             constants.DecisionApprove,
			Explanation:         r.ApproveText,
			MissingRequirements: missing,
		}
	}
	return Decision{
		PolicyID:            r.PolicyID,
		Outcome:             constants.DecisionNeedsMoreInfo,
		Explanation:         r.NeedsMoreInText,
		MissingRequirements: missing,
	}
}

// TKAv1 is the total knee arthroplasty medical-necessity rule set.
var TKAv1 = RuleSet{
	PolicyID: "TKA_v1",
	Required: []evidence.Criterion{
		evidence.Diagnosis,
		evidence.Imaging,
		evidence.ConservativeTherapy,
		evidence.FunctionalLimitation,
	},
	ApproveText:     "All medical necessity criteria met",
	NeedsMoreInText: "Missing required criteria for TKA",
}

// DefaultID is the policy used when none is configured.
const DefaultID = "TKA_v1"

var registry = map[string]Evaluator{
	TKAv1.PolicyID: TKAv1,
}

// Lookup returns the registered evaluator for id.
func Lookup(id string) (Evaluator, bool) {
	e, ok := registry[id]
	return e, ok
}

// IDs lists registered policy ids, sorted.
func IDs() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
