package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testSnapshot(fields map[Field]FieldValue) *Snapshot {
	return &Snapshot{
		Ticker:       "VTI",
		Fields:       fields,
		MarketStatus: MarketOpen,
		AsOf:         time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC),
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	snap := testSnapshot(map[Field]FieldValue{
		FieldBid: {Value: 100.00, Source: "quotefeed"},
	})

	fv, ok := snap.Get(FieldBid)
	assert.True(t, ok)
	assert.Equal(t, 100.00, fv.Value)

	_, ok = snap.Get(FieldAsk)
	assert.False(t, ok)

	v, ok := snap.Value(FieldBid)
	assert.True(t, ok)
	assert.Equal(t, 100.00, v)

	v, ok = snap.Value(FieldAsk)
	assert.False(t, ok, "missing field must not resolve")
	assert.Zero(t, v)

	assert.True(t, snap.Has(FieldBid))
	assert.False(t, snap.Has(FieldAsk))
	assert.False(t, snap.IsEmpty())
}

func TestSnapshot_IsEmpty(t *testing.T) {
	assert.True(t, testSnapshot(nil).IsEmpty())
	assert.True(t, testSnapshot(map[Field]FieldValue{}).IsEmpty())
}

func TestSnapshot_HasLiveQuotes(t *testing.T) {
	facts := testSnapshot(map[Field]FieldValue{
		FieldAssets:       {Value: 5e9, Source: "fundfacts"},
		FieldExpenseRatio: {Value: 0.0003, Source: "fundfacts"},
	})
	assert.False(t, facts.HasLiveQuotes())

	mixed := testSnapshot(map[Field]FieldValue{
		FieldAssets: {Value: 5e9, Source: "fundfacts"},
		FieldBid:    {Value: 100.00, Source: "quotefeed"},
	})
	assert.True(t, mixed.HasLiveQuotes())
}

func TestSnapshot_StaleFields(t *testing.T) {
	snap := testSnapshot(map[Field]FieldValue{
		FieldAssets: {Value: 5e9, Source: "fundfacts", IsStale: true},
		FieldAsk:    {Value: 100.02, Source: "quotefeed", IsStale: true},
		FieldBid:    {Value: 100.00, Source: "quotefeed"},
	})

	// Canonical field order, fresh values excluded.
	assert.Equal(t, []Field{FieldAsk, FieldAssets}, snap.StaleFields())

	fresh := testSnapshot(map[Field]FieldValue{
		FieldBid: {Value: 100.00, Source: "quotefeed"},
	})
	assert.Empty(t, fresh.StaleFields())
}
