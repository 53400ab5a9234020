// Package exporter renders tradability rankings into downloadable
// spreadsheet formats. Both formats share one column layout so a CSV
// opened next to the workbook lines up row for row. Missing cost
// components stay empty cells; an absent spread is not a zero spread.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"etfcli/internal/services"
	"etfcli/pkg/contracts/domain"
)

const (
	comparisonSheet = "Comparison"
	tradeSheet      = "Trade"
)

var comparisonHeader = []string{
	"Rank",
	"Ticker",
	"Rating",
	"Liquidity_Total",
	"Volume_Score",
	"Spread_Score",
	"Asset_Score",
	"Spread_Cost",
	"Market_Impact",
	"Expense_Ratio",
	"Total_One_Way",
	"Total_Round_Trip",
	"Alerts",
	"Stale_Fields",
	"Error",
}

// ComparisonWriter renders a ranking to xlsx or csv.
type ComparisonWriter struct {
	logger *slog.Logger
}

// NewComparisonWriter creates a writer with the given logger.
func NewComparisonWriter(logger *slog.Logger) *ComparisonWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComparisonWriter{
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// WriteXLSX renders the ranking as a workbook: a Comparison sheet with one
// row per ticker and a Trade sheet recording the request that produced it.
func (cw *ComparisonWriter) WriteXLSX(out io.Writer, rank *services.RankResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), comparisonSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, name := range comparisonHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell %d: %w", i, err)
		}
		if err := f.SetCellValue(comparisonSheet, cell, name); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(comparisonHeader))
	if err := f.SetCellStyle(comparisonSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(comparisonSheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("set column widths: %w", err)
	}

	for i, entry := range rank.Entries {
		values := cellValues(i, entry)
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell for row %d col %d: %w", i, col, err)
			}
			if err := f.SetCellValue(comparisonSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}
	}

	if err := cw.writeTradeSheet(f, rank); err != nil {
		return err
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	cw.logger.Debug("workbook rendered",
		slog.Int("entries", len(rank.Entries)),
		slog.Int("failed", rank.Failed))
	return nil
}

// writeTradeSheet records the trade parameters the ranking was computed for.
func (cw *ComparisonWriter) writeTradeSheet(f *excelize.File, rank *services.RankResponse) error {
	if _, err := f.NewSheet(tradeSheet); err != nil {
		return fmt.Errorf("create trade sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Generated_At", rank.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Holding_Period_Days", rank.Trade.HoldingPeriodDays},
		{"Tickers", len(rank.Entries)},
		{"Failed", rank.Failed},
	}
	if rank.Trade.Size.Shares > 0 {
		rows = append(rows, []interface{}{"Trade_Shares", rank.Trade.Size.Shares})
	}
	if rank.Trade.Size.ADVFraction > 0 {
		rows = append(rows, []interface{}{"ADV_Fraction", rank.Trade.Size.ADVFraction})
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("trade cell %d,%d: %w", r, c, err)
			}
			if err := f.SetCellValue(tradeSheet, cell, v); err != nil {
				return fmt.Errorf("write trade sheet: %w", err)
			}
		}
	}
	return nil
}

// WriteCSV renders the ranking as a flat CSV with the same columns as the
// workbook's Comparison sheet.
func (cw *ComparisonWriter) WriteCSV(out io.Writer, rank *services.RankResponse) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(comparisonHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, entry := range rank.Entries {
		record := make([]string, len(comparisonHeader))
		for col, v := range cellValues(i, entry) {
			record[col] = formatCell(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	cw.logger.Debug("csv rendered",
		slog.Int("entries", len(rank.Entries)),
		slog.Int("failed", rank.Failed))
	return nil
}

// cellValues lays out one entry in header order. nil means an empty cell.
// Failed entries keep their position but carry only ticker and error.
func cellValues(idx int, entry services.RankEntry) []interface{} {
	values := make([]interface{}, len(comparisonHeader))
	values[1] = entry.Ticker
	values[14] = nilIfEmpty(entry.Error)
	values[13] = nilIfEmpty(joinFields(entry.StaleFields))

	if entry.Error != "" {
		return values
	}

	values[0] = idx + 1
	values[2] = entry.Rating
	if entry.Liquidity != nil {
		values[3] = entry.Liquidity.Total
		values[4] = entry.Liquidity.VolumeScore
		values[5] = entry.Liquidity.SpreadScore
		values[6] = entry.Liquidity.AssetScore
	}
	if entry.Costs != nil {
		values[7] = floatOrNil(entry.Costs.SpreadCost)
		values[8] = floatOrNil(entry.Costs.MarketImpact)
		values[9] = entry.Costs.ExpenseRatio
		values[10] = floatOrNil(entry.Costs.TotalOneWay)
		values[11] = floatOrNil(entry.Costs.TotalRoundTrip)
		values[12] = nilIfEmpty(joinAlerts(entry.Costs.Alerts))
	}
	return values
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joinFields(fields []domain.Field) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}

func joinAlerts(alerts []domain.Alert) string {
	if len(alerts) == 0 {
		return ""
	}
	parts := make([]string, len(alerts))
	for i, a := range alerts {
		parts[i] = fmt.Sprintf("%s:%s", a.Metric, a.Severity)
	}
	return strings.Join(parts, ";")
}
