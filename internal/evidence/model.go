package evidence

// Criterion names a medical-necessity criterion. Values double as the keys used
// in missing_fields, missing_requirements and stored provenance.
type Criterion string

const (
	Diagnosis            Criterion = "diagnosis"
	ConservativeTherapy  Criterion = "conservative_therapy"
	Imaging              Criterion = "imaging"
	FunctionalLimitation Criterion = "functional_limitation"
)

// Source is one cited line of the document.
type Source struct {
	LineNumber  int    `json:"line_number"`
	TextSnippet string `json:"text_snippet"`
}

// Finding is the extraction result for one criterion. Absent criteria keep
// Present=false, zero confidence and no sources.
type Finding struct {
	Criterion  Criterion `json:"criterion"`
	Present    bool      `json:"present"`
	Value      string    `json:"value,omitempty"`
	Confidence float64   `json:"confidence"`
	Subtypes   []string  `json:"subtypes,omitempty"`
	Sources    []Source  `json:"sources"`
}

// Findings holds one Finding per rule in evaluation order plus the criteria that
// had no match.
type Findings struct {
	Items         []Finding   `json:"findings"`
	MissingFields []Criterion `json:"missing_fields"`
}

// Get returns the finding for c.
func (f Findings) Get(c Criterion) (Finding, bool) {
	for _, item := range f.Items {
		if item.Criterion == c {
			return item, true
		}
	}
	return Finding{}, false
}

// Present reports whether c was found in the text.
func (f Findings) Present(c Criterion) bool {
	item, ok := f.Get(c)
	return ok && item.Present
}

// Sources maps every criterion to its citations. Absent criteria map to an
// empty list so serialized provenance always has the same keys.
func (f Findings) Sources() map[string][]Source {
	out := make(map[string][]Source, len(f.Items))
	for _, item := range f.Items {
		srcs := item.Sources
		if srcs == nil {
			srcs = []Source{}
		}
		out[string(item.Criterion)] = srcs
	}
	return out
}

// MissingNames returns MissingFields as plain strings.
func (f Findings) MissingNames() []string {
	out := make([]string, 0, len(f.MissingFields))
	for _, c := range f.MissingFields {
		out = append(out, string(c))
	}
	return out
}
