package domain

// Severity classifies how badly two sources disagree, or how hard a cost
// metric crossed its configured threshold.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationResult is the outcome of comparing one field across the sources
// that reported it. It is diagnostic output only: the highest-priority
// source's value is kept regardless of severity, so a ValidationResult never
// blocks snapshot production.
type ValidationResult struct {
	Field              Field      `json:"field"`
	SourcesCompared    []SourceID `json:"sources_compared"`
	RelativeDifference float64    `json:"relative_difference"`
	Severity           Severity   `json:"severity"`
}

// Worst returns the most severe of the two severities.
func Worst(a, b Severity) Severity {
	rank := map[Severity]int{SeverityOK: 0, SeverityWarning: 1, SeverityError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
