package policy_test

import (
	"reflect"
	"testing"

	"paworker/internal/constants"
	"paworker/internal/evidence"
	"paworker/internal/policy"
)

func findingsWith(present ...evidence.Criterion) evidence.Findings {
	all := []evidence.Criterion{evidence.Diagnosis, evidence.ConservativeTherapy, evidence.Imaging, evidence.FunctionalLimitation}
	set := map[evidence.Criterion]bool{}
	for _, c := range present {
		set[c] = true
	}
	f := evidence.Findings{MissingFields: []evidence.Criterion{}}
	for _, c := range all {
		f.Items = append(f.Items, evidence.Finding{Criterion: c, Present: set[c]})
		if !set[c] {
			f.MissingFields = append(f.MissingFields, c)
		}
	}
	return f
}

func TestTKAv1Decisions(t *testing.T) {
	cases := []struct {
		name    string
		present []evidence.Criterion
		outcome constants.Decision
		missing []string
	}{
		{
			name:    "all present",
			present: []evidence.Criterion{evidence.Diagnosis, evidence.Imaging, evidence.ConservativeTherapy, evidence.FunctionalLimitation},
			outcome: constants.DecisionApprove,
			missing: []string{},
		},
		{
			name:    "imaging removed",
			present: []evidence.Criterion{evidence.Diagnosis, evidence.ConservativeTherapy, evidence.FunctionalLimitation},
			outcome: constants.DecisionNeedsMoreInfo,
			missing: []string{"imaging"},
		},
		{
			name:    "nothing present keeps check order",
			outcome: constants.DecisionNeedsMoreInfo,
			missing: []string{"diagnosis", "imaging", "conservative_therapy", "functional_limitation"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := policy.TKAv1.Evaluate(findingsWith(tc.present...))
			if d.Outcome != tc.outcome {
				t.Fatalf("outcome = %s, want %s", d.Outcome, tc.outcome)
			}
			if !reflect.DeepEqual(d.MissingRequirements, tc.missing) {
				t.Fatalf("missing = %#v, want %#v", d.MissingRequirements, tc.missing)
			}
			if d.PolicyID != "TKA_v1" {
				t.Fatalf("policy id = %q", d.PolicyID)
			}
		})
	}
}

func TestEvaluateExtractedKneeNote(t *testing.T) {
	findings, err := evidence.NewExtractor().Extract("Patient has osteoarthritis of the knee.\nDifficulty walking due to pain with daily activities.")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	d := policy.TKAv1.Evaluate(findings)
	if d.Approved() {
		t.Fatal("expected NEEDS_MORE_INFO")
	}
	want := []string{"imaging", "conservative_therapy"}
	if !reflect.DeepEqual(d.MissingRequirements, want) {
		t.Fatalf("missing = %v, want %v", d.MissingRequirements, want)
	}
	if d.Explanation != "Missing required criteria for TKA" {
		t.Fatalf("explanation = %q", d.Explanation)
	}
}

func TestLookup(t *testing.T) {
	e, ok := policy.Lookup(policy.DefaultID)
	if !ok || e.ID() != "TKA_v1" {
		t.Fatalf("Lookup(default) = %v, %v", e, ok)
	}
	if _, ok := policy.Lookup("THA_v9"); ok {
		t.Fatal("expected unknown policy to be absent")
	}
	if ids := policy.IDs(); !reflect.DeepEqual(ids, []string{"TKA_v1"}) {
		t.Fatalf("IDs = %v", ids)
	}
}
