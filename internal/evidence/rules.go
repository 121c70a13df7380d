package evidence

import "regexp"

// Classifier tags a matching line with Subtype when it contains any keyword
// (case-insensitive containment).
type Classifier struct {
	Subtype  string
	Keywords []string
}

// Rule describes how one criterion is detected.
type Rule struct {
	Criterion   Criterion
	Pattern     *regexp.Regexp
	Confidence  float64
	Value       string
	Classifiers []Classifier
}

// DefaultRules is the knee-arthroplasty rule table, in evaluation order.
var DefaultRules = []Rule{
	{
		Criterion:  Diagnosis,
		Pattern:    regexp.MustCompile(`(?i)osteoarthritis`),
		Confidence: 0.9,
		Value:      "osteoarthritis",
	},
	{
		Criterion:  ConservativeTherapy,
		Pattern:    regexp.MustCompile(`(?i)physiotherapy|physical therapy|nsaid|ibuprofen|naproxen`),
		Confidence: 0.85,
		Classifiers: []Classifier{
			{Subtype: "physical_therapy", Keywords: []string{"therapy"}},
			{Subtype: "NSAIDs", Keywords: []string{"nsaid", "ibuprofen", "naproxen"}},
		},
	},
	{
		Criterion:  Imaging,
		Pattern:    regexp.MustCompile(`(?i)x-ray|mri|ct scan`),
		Confidence: 0.9,
	},
	{
		Criterion:  FunctionalLimitation,
		Pattern:    regexp.MustCompile(`(?i)difficulty walking|pain with daily activities|\bi?adls?\b`),
		Confidence: 0.8,
	},
}
