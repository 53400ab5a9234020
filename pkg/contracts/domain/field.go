package domain

import (
	"sort"
	"strings"
)

// SourceID identifies a configured data provider (e.g. "etfcom", "marketfeed").
type SourceID string

// Field is a recognized market-data field name. The set of fields is closed:
// adapters may return arbitrary keys, but anything outside this enum is
// discarded at the adapter boundary rather than carried through reconciliation.
type Field string

const (
	FieldBid            Field = "bid"
	FieldAsk            Field = "ask"
	FieldLastPrice      Field = "last_price"
	FieldIIV            Field = "iiv"
	FieldAvgDailyVolume Field = "avg_daily_volume"
	FieldAssets         Field = "assets"
	FieldExpenseRatio   Field = "expense_ratio"
)

// KnownFields returns all recognized fields in canonical order.
func KnownFields() []Field {
	return []Field{
		FieldBid,
		FieldAsk,
		FieldLastPrice,
		FieldIIV,
		FieldAvgDailyVolume,
		FieldAssets,
		FieldExpenseRatio,
	}
}

// ParseField maps a raw adapter key to a recognized field.
// Returns false for unknown keys so callers can drop them.
func ParseField(raw string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FieldBid, FieldAsk, FieldLastPrice, FieldIIV,
		FieldAvgDailyVolume, FieldAssets, FieldExpenseRatio:
		return f, true
	}
	return "", false
}

// IsLiveQuote reports whether the field only has meaning during a trading
// session. Live-quote fields are never fetched while the market is closed;
// they are served from last-known values and flagged stale instead.
func (f Field) IsLiveQuote() bool {
	switch f {
	case FieldBid, FieldAsk, FieldLastPrice, FieldIIV:
		return true
	}
	return false
}

// LiveQuoteFields returns the fields that are only valid intraday.
func LiveQuoteFields() []Field {
	return []Field{FieldBid, FieldAsk, FieldLastPrice, FieldIIV}
}

// FundFactFields returns the slow-moving fund facts that survive a market close.
func FundFactFields() []Field {
	return []Field{FieldAvgDailyVolume, FieldAssets, FieldExpenseRatio}
}

// NormalizeFieldSet deduplicates and sorts a requested field set into
// canonical form; an empty set expands to every known field. Cache keys and
// persistence records are derived from the normalized set, so two requests
// for the same fields in different order share one cache entry.
func NormalizeFieldSet(fields []Field) []Field {
	if len(fields) == 0 {
		fields = KnownFields()
	}
	seen := make(map[Field]struct{}, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
