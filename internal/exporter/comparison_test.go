package exporter

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"etfcli/internal/services"
	"etfcli/pkg/contracts/domain"
)

func rankFixture() *services.RankResponse {
	spread := 0.0002
	impact := 0.0001
	oneWay := 0.0003
	roundTrip := 0.0006

	return &services.RankResponse{
		GeneratedAt: time.Date(2025, 6, 16, 20, 0, 0, 0, time.UTC),
		Trade: domain.TradeContext{
			Size:              domain.TradeSize{ADVFraction: 0.01},
			HoldingPeriodDays: 365,
		},
		Entries: []services.RankEntry{
			{
				Ticker: "VTI",
				Liquidity: &domain.LiquidityScore{
					Ticker:      "VTI",
					VolumeScore: 38,
					SpreadScore: 28,
					AssetScore:  30,
					Total:       96,
				},
				Costs: &domain.CostBreakdown{
					Ticker:         "VTI",
					TradeShares:    45000,
					ADVFraction:    0.01,
					SpreadCost:     &spread,
					MarketImpact:   &impact,
					ExpenseRatio:   0.0003,
					TotalOneWay:    &oneWay,
					TotalRoundTrip: &roundTrip,
				},
				Rating: "excellent",
			},
			{
				Ticker: "NEWETF",
				Liquidity: &domain.LiquidityScore{
					Ticker:      "NEWETF",
					VolumeScore: 5,
					AssetScore:  4,
					Total:       9,
				},
				Costs: &domain.CostBreakdown{
					Ticker:       "NEWETF",
					ExpenseRatio: 0.006,
					Alerts: []domain.Alert{
						{Metric: "spread_pct", Value: 0.02, Threshold: 0.005, Severity: domain.SeverityWarning, Message: "spread above alert threshold"},
					},
				},
				Rating:      "poor",
				StaleFields: []domain.Field{domain.FieldBid},
			},
			{
				Ticker: "GONE",
				Error:  "no data available",
			},
		},
		Failed: 1,
	}
}

func newWriter() *ComparisonWriter {
	return NewComparisonWriter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newWriter().WriteCSV(&buf, rankFixture()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three entries")

	assert.Equal(t, comparisonHeader, records[0])

	vti := records[1]
	assert.Equal(t, "1", vti[0])
	assert.Equal(t, "VTI", vti[1])
	assert.Equal(t, "excellent", vti[2])
	assert.Equal(t, "96", vti[3])
	assert.Equal(t, "0.0002", vti[7])
	assert.Equal(t, "0.0006", vti[11])
	assert.Empty(t, vti[12], "no alerts on the clean entry")
	assert.Empty(t, vti[14])

	thin := records[2]
	assert.Equal(t, "2", thin[0])
	assert.Equal(t, "NEWETF", thin[1])
	assert.Empty(t, thin[7], "missing spread stays an empty cell, never zero")
	assert.Equal(t, "spread_pct:warning", thin[12])
	assert.Equal(t, "bid", thin[13])

	failed := records[3]
	assert.Empty(t, failed[0], "failed entries are not ranked")
	assert.Equal(t, "GONE", failed[1])
	assert.Empty(t, failed[3])
	assert.Equal(t, "no data available", failed[14])
}

func TestWriteCSV_EmptyRanking(t *testing.T) {
	var buf bytes.Buffer
	rank := &services.RankResponse{GeneratedAt: time.Now()}
	require.NoError(t, newWriter().WriteCSV(&buf, rank))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, comparisonHeader, records[0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newWriter().WriteXLSX(&buf, rankFixture()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{comparisonSheet, tradeSheet}, f.GetSheetList())

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Rank", cell(comparisonSheet, "A1"))
	assert.Equal(t, "Error", cell(comparisonSheet, "O1"))

	assert.Equal(t, "1", cell(comparisonSheet, "A2"))
	assert.Equal(t, "VTI", cell(comparisonSheet, "B2"))
	assert.Equal(t, "excellent", cell(comparisonSheet, "C2"))
	assert.Equal(t, "96", cell(comparisonSheet, "D2"))

	assert.Equal(t, "NEWETF", cell(comparisonSheet, "B3"))
	assert.Empty(t, cell(comparisonSheet, "H3"), "missing spread cost leaves the cell empty")
	assert.Equal(t, "spread_pct:warning", cell(comparisonSheet, "M3"))

	assert.Equal(t, "GONE", cell(comparisonSheet, "B4"))
	assert.Empty(t, cell(comparisonSheet, "A4"))
	assert.Equal(t, "no data available", cell(comparisonSheet, "O4"))

	assert.Equal(t, "Generated_At", cell(tradeSheet, "A1"))
	assert.Equal(t, "2025-06-16T20:00:00Z", cell(tradeSheet, "B1"))
	assert.Equal(t, "Holding_Period_Days", cell(tradeSheet, "A2"))

	rows, err := f.GetRows(comparisonSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}
