package testutil

import (
	"time"

	"etfcli/pkg/contracts/domain"
)

// MarketFixtures builds domain objects for reconciliation and analysis tests.
// All values are deterministic so tests can assert exact numbers.
type MarketFixtures struct {
	// Now anchors every ObservedAt/AsOf the fixtures produce.
	Now time.Time
}

// NewMarketFixtures creates a fixtures builder anchored at a fixed instant.
// The default anchor is a Tuesday at 14:30 UTC, inside normal trading hours.
func NewMarketFixtures() *MarketFixtures {
	return &MarketFixtures{
		Now: time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC),
	}
}

// QuoteFields returns the live-quote field map a primary quote source would
// report for a liquid large-cap ETF.
func (f *MarketFixtures) QuoteFields(source domain.SourceID) map[domain.Field]domain.FieldValue {
	return map[domain.Field]domain.FieldValue{
		domain.FieldBid:       {Value: 100.00, Source: source, ObservedAt: f.Now},
		domain.FieldAsk:       {Value: 100.02, Source: source, ObservedAt: f.Now},
		domain.FieldLastPrice: {Value: 100.01, Source: source, ObservedAt: f.Now},
		domain.FieldIIV:       {Value: 100.00, Source: source, ObservedAt: f.Now},
	}
}

// FundFields returns the fund-fact field map a reference-data source would
// report: one million shares daily volume, five billion under management,
// three basis points expense ratio.
func (f *MarketFixtures) FundFields(source domain.SourceID) map[domain.Field]domain.FieldValue {
	return map[domain.Field]domain.FieldValue{
		domain.FieldAvgDailyVolume: {Value: 1_000_000, Source: source, ObservedAt: f.Now},
		domain.FieldAssets:         {Value: 5_000_000_000, Source: source, ObservedAt: f.Now},
		domain.FieldExpenseRatio:   {Value: 0.0003, Source: source, ObservedAt: f.Now},
	}
}

// AllFields merges quote and fund fields from a single source.
func (f *MarketFixtures) AllFields(source domain.SourceID) map[domain.Field]domain.FieldValue {
	fields := f.QuoteFields(source)
	for k, v := range f.FundFields(source) {
		fields[k] = v
	}
	return fields
}

// Snapshot builds a reconciled snapshot from explicit fields.
func (f *MarketFixtures) Snapshot(ticker string, status domain.MarketStatus, fields map[domain.Field]domain.FieldValue) *domain.Snapshot {
	return &domain.Snapshot{
		Ticker:       ticker,
		Fields:       fields,
		MarketStatus: status,
		AsOf:         f.Now,
	}
}

// FullSnapshot builds an open-market snapshot with every known field present,
// all attributed to the given source.
func (f *MarketFixtures) FullSnapshot(ticker string, source domain.SourceID) *domain.Snapshot {
	return f.Snapshot(ticker, domain.MarketOpen, f.AllFields(source))
}

// StaleSnapshot builds a closed-market snapshot whose live-quote fields carry
// the stale flag, as the engine produces after a last-known substitution.
func (f *MarketFixtures) StaleSnapshot(ticker string, source domain.SourceID) *domain.Snapshot {
	fields := f.AllFields(source)
	for field, fv := range fields {
		if field.IsLiveQuote() {
			fv.IsStale = true
			fv.ObservedAt = f.Now.Add(-18 * time.Hour)
			fields[field] = fv
		}
	}
	return f.Snapshot(ticker, domain.MarketClosed, fields)
}

// Failure builds a recorded source failure.
func (f *MarketFixtures) Failure(source domain.SourceID, kind, message string) domain.SourceFailure {
	return domain.SourceFailure{
		Source:     source,
		Kind:       kind,
		Message:    message,
		OccurredAt: f.Now,
	}
}

// FieldValue builds a single observation with an explicit value.
func (f *MarketFixtures) FieldValue(value float64, source domain.SourceID) domain.FieldValue {
	return domain.FieldValue{Value: value, Source: source, ObservedAt: f.Now}
}
