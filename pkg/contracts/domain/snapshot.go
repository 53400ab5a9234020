package domain

import (
	"time"
)

// MarketStatus is the exchange session state attached to a snapshot.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "open"
	MarketClosed  MarketStatus = "closed"
	MarketUnknown MarketStatus = "unknown"
)

// FieldValue is a single reconciled observation. It records the value, the
// source that won reconciliation, when that source observed it, and whether
// it was served stale (last-known value while the market is closed).
// A FieldValue is immutable once produced.
type FieldValue struct {
	Value      float64   `json:"value"`
	Source     SourceID  `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
	IsStale    bool      `json:"is_stale"`
}

// SourceFailure records a single adapter failure during reconciliation.
// Failures are diagnostics; they never abort snapshot production.
type SourceFailure struct {
	Source     SourceID  `json:"source"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Snapshot is the reconciled view of a ticker: one winning FieldValue per
// field that any source could supply. Fields nobody could supply are absent
// from the map, never zero-filled. A Snapshot is the unit that is cached
// and passed downstream; treat it as read-only after production.
type Snapshot struct {
	Ticker       string               `json:"ticker"`
	Fields       map[Field]FieldValue `json:"fields"`
	MarketStatus MarketStatus         `json:"market_status"`
	AsOf         time.Time            `json:"as_of"`
}

// Get returns the field's reconciled value, if present.
func (s *Snapshot) Get(f Field) (FieldValue, bool) {
	fv, ok := s.Fields[f]
	return fv, ok
}

// Value returns the numeric value of a field, if present.
func (s *Snapshot) Value(f Field) (float64, bool) {
	fv, ok := s.Fields[f]
	if !ok {
		return 0, false
	}
	return fv.Value, true
}

// Has reports whether the snapshot carries the field.
func (s *Snapshot) Has(f Field) bool {
	_, ok := s.Fields[f]
	return ok
}

// HasLiveQuotes reports whether any live-quote field is present. Snapshots
// carrying live quotes are cached with invalidate-on-close set.
func (s *Snapshot) HasLiveQuotes() bool {
	for f := range s.Fields {
		if f.IsLiveQuote() {
			return true
		}
	}
	return false
}

// StaleFields lists the fields served from last-known values.
func (s *Snapshot) StaleFields() []Field {
	var stale []Field
	for _, f := range KnownFields() {
		if fv, ok := s.Fields[f]; ok && fv.IsStale {
			stale = append(stale, f)
		}
	}
	return stale
}

// IsEmpty reports whether reconciliation produced no usable field at all.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Fields) == 0
}
