package evidence

import (
	"strings"

	"paworker/internal/common"
)

// Extractor turns clinical note text into Findings using a rule table. It holds
// no mutable state and is safe for concurrent use.
type Extractor struct {
	rules []Rule
}

// NewExtractor builds an extractor over rules, or DefaultRules when none are given.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Extractor{rules: cp}
}

// Extract scans text line by line. Line numbers are 1-indexed and every line
// matching a rule is cited. Identical text always yields identical Findings.
func (e *Extractor) Extract(text string) (Findings, error) {
	lines := strings.Split(text, "\n")

	out := Findings{
		Items:         make([]Finding, 0, len(e.rules)),
		MissingFields: []Criterion{},
	}

	for _, rule := range e.rules {
		finding := Finding{Criterion: rule.Criterion, Sources: []Source{}}

		matched := matchLines(lines, rule)
		if len(matched) == 0 {
			out.Items = append(out.Items, finding)
			out.MissingFields = append(out.MissingFields, rule.Criterion)
			continue
		}

		finding.Present = true
		finding.Value = rule.Value
		finding.Confidence = rule.Confidence
		finding.Sources = matched
		finding.Subtypes = classify(matched, rule.Classifiers)
		out.Items = append(out.Items, finding)
	}

	return validate(out)
}

func matchLines(lines []string, rule Rule) []Source {
	var out []Source
	for idx, line := range lines {
		if rule.Pattern.MatchString(line) {
			out = append(out, Source{
				LineNumber:  idx + 1,
				TextSnippet: strings.TrimSpace(line),
			})
		}
	}
	return out
}

// classify returns the subtypes found across sources, deduplicated and in
// classifier order. One line may contribute several subtypes.
func classify(sources []Source, classifiers []Classifier) []string {
	if len(classifiers) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	for _, src := range sources {
		text := strings.ToLower(src.TextSnippet)
		for _, c := range classifiers {
			for _, kw := range c.Keywords {
				if strings.Contains(text, strings.ToLower(kw)) {
					seen[c.Subtype] = struct{}{}
					break
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for _, c := range classifiers {
		if _, ok := seen[c.Subtype]; ok {
			out = append(out, c.Subtype)
		}
	}
	return out
}

func validate(f Findings) (Findings, error) {
	if f.MissingFields == nil {
		return Findings{}, common.Structural("invalid evidence structure: missing_fields absent")
	}
	return f, nil
}
