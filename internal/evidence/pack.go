package evidence

import "paworker/internal/constants"

// PackOutcome is what finalizing an evidence pack writes.
type PackOutcome struct {
	Decision            constants.Decision
	Explanation         string
	MissingRequirements []string
	Sources             map[string][]Source
	Metadata            map[string]any
}
