package reconcile

import (
	"math"

	"etfcli/internal/config"
	"etfcli/pkg/contracts/domain"
)

// epsilon floors the denominator of a relative difference so comparisons
// against zero-valued fields stay finite: 0 vs 0 scores 0, 0 vs anything
// else scores 1.
const epsilon = 1e-9

// observation is one source's answer for a single field, tagged with the
// source it came from. Observation slices are kept in priority order, most
// trusted first.
type observation struct {
	source domain.SourceID
	value  domain.FieldValue
}

// relativeDifference measures how far two values diverge, normalized by the
// larger magnitude.
func relativeDifference(a, b float64) float64 {
	denom := math.Max(math.Max(math.Abs(a), math.Abs(b)), epsilon)
	return math.Abs(a-b) / denom
}

// classifySeverity maps a relative difference onto a threshold pair. A
// difference exactly at a boundary takes the more severe class.
func classifySeverity(diff float64, pair config.ThresholdPair) domain.Severity {
	switch {
	case diff >= pair.Error:
		return domain.SeverityError
	case diff >= pair.Warning:
		return domain.SeverityWarning
	default:
		return domain.SeverityOK
	}
}

// mergeField picks the winning value for one field and scores the
// disagreement. The highest-priority reporting source always wins; lower
// priority values are compared against it and only move the severity
// annotation, never the value. With a single reporter there is nothing to
// compare and the validation result is nil.
func mergeField(field domain.Field, obs []observation, pair config.ThresholdPair) (domain.FieldValue, *domain.ValidationResult) {
	winner := obs[0].value
	winner.Source = obs[0].source
	winner.IsStale = false

	if len(obs) < 2 {
		return winner, nil
	}

	sources := make([]domain.SourceID, len(obs))
	sources[0] = obs[0].source
	maxDiff := 0.0
	for i, o := range obs[1:] {
		sources[i+1] = o.source
		if diff := relativeDifference(winner.Value, o.value.Value); diff > maxDiff {
			maxDiff = diff
		}
	}

	return winner, &domain.ValidationResult{
		Field:              field,
		SourcesCompared:    sources,
		RelativeDifference: maxDiff,
		Severity:           classifySeverity(maxDiff, pair),
	}
}
