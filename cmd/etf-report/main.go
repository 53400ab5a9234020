// Command etf-report produces a tradability comparison report for a set of
// ETFs without running the server. It assembles the same collection and
// analysis stack the API uses, ranks the tickers, and writes the comparison
// workbook (or CSV) to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Embedded tzdata keeps the market clock working on hosts without a
	// system zoneinfo database.
	_ "time/tzdata"

	"etfcli/internal/adapters"
	"etfcli/internal/cache"
	"etfcli/internal/config"
	"etfcli/internal/exporter"
	"etfcli/internal/infrastructure"
	"etfcli/internal/liquidity"
	"etfcli/internal/marketclock"
	"etfcli/internal/reconcile"
	"etfcli/internal/services"
	"etfcli/internal/storage"
	"etfcli/pkg/contracts/domain"
	"etfcli/pkg/contracts/events"
)

func main() {
	configPath := flag.String("config", "", "path to config file (searches well-known locations when empty)")
	tickersArg := flag.String("tickers", "", "comma-separated tickers to compare (required)")
	outputPath := flag.String("out", "", "output file; the extension picks the format (defaults to etf_comparison_<date>.xlsx)")
	shares := flag.Float64("shares", 0, "trade size in shares (overrides -adv-fraction)")
	advFraction := flag.Float64("adv-fraction", 0, "trade size as a fraction of average daily volume (default 0.01)")
	holdingDays := flag.Int("holding-days", 0, "holding period in days for expense proration (default 365)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for data collection")
	flag.Parse()

	tickers := splitTickers(*tickersArg)
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "usage: etf-report -tickers VTI,VOO,SPY [-out report.xlsx]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ResolvePaths(); err != nil {
		slog.Error("Failed to resolve application paths", "error", err)
		os.Exit(1)
	}

	// Same logging stack as the server, so report runs land in the same
	// rotated files.
	infrastructure.MustInitializeLogger(cfg.Logging)

	if *outputPath == "" {
		*outputPath = filepath.Join(cfg.GetReportsDir(),
			fmt.Sprintf("etf_comparison_%s.xlsx", time.Now().Format("20060102")))
	}

	service, cleanup, err := buildAnalysisService(cfg)
	if err != nil {
		slog.Error("Failed to assemble analysis stack", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	trade := domain.TradeContext{
		Size:              domain.TradeSize{Shares: *shares, ADVFraction: *advFraction},
		HoldingPeriodDays: *holdingDays,
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// One trace ID per run correlates the engine's trace events with the
	// log lines of this invocation.
	runID := infrastructure.GenerateTraceID()
	ctx = infrastructure.WithTraceID(ctx, runID)
	ctx = events.WithTraceID(ctx, runID)
	log := infrastructure.LoggerWithContext(ctx)

	log.Info("Collecting snapshots", "tickers", len(tickers))
	rank, err := service.Rank(ctx, tickers, trade)
	if err != nil {
		log.Error("Failed to rank tickers", "error", err)
		os.Exit(1)
	}

	if err := writeReport(*outputPath, rank); err != nil {
		log.Error("Failed to write report", "path", *outputPath, "error", err)
		os.Exit(1)
	}

	log.Info("Comparison report generated",
		"report", *outputPath,
		"tickers", len(rank.Entries),
		"failed", rank.Failed)

	printSummary(rank)
}

// buildAnalysisService assembles the collection and analysis stack the way
// the server does, minus the HTTP surface and event streaming. The returned
// cleanup closes the snapshot store when one was opened.
func buildAnalysisService(cfg *config.Config) (*services.AnalysisService, func(), error) {
	logger := infrastructure.GetLogger()
	cleanup := func() {}

	var (
		lastKnown reconcile.LastKnownStore
		saver     reconcile.EntrySaver
	)
	if cfg.Cache.Persist {
		store, err := storage.New(cfg.Cache.DBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot store: %w", err)
		}
		cleanup = func() { store.Close() }
		lastKnown = store
		saver = store
	} else {
		lastKnown = storage.NewMemory()
	}

	var calendar *marketclock.Calendar
	var err error
	if cfg.Market.CalendarFile != "" {
		calendar, err = marketclock.LoadCalendarFile(cfg.Market.CalendarFile)
	} else {
		calendar, err = marketclock.NewCalendar(cfg.Market.Holidays, cfg.Market.EarlyCloses)
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load market calendar: %w", err)
	}

	clock, err := marketclock.New(marketclock.Options{
		Timezone: cfg.Market.Timezone,
		Open:     cfg.Market.Open,
		Close:    cfg.Market.Close,
		Calendar: calendar,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build market clock: %w", err)
	}

	snapshots := cache.New(cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		LastClose:  clock.LastClose,
		Logger:     logger,
	})

	// A one-shot run still benefits from the server's persisted snapshots:
	// anything fresh enough is served without touching a source.
	if cfg.Cache.Persist && cfg.Cache.WarmStart {
		if store, ok := saver.(*storage.Store); ok {
			if entries, err := store.LoadEntries(context.Background()); err == nil {
				restored := snapshots.Restore(entries)
				logger.Info("Restored persisted snapshots", "restored", restored)
			}
		}
	}

	registry := adapters.Build(cfg.EnabledSources(), logger)
	if registry.Len() == 0 {
		logger.Warn("No data sources enabled, report will rely on cached and last-known values only")
	}

	engine := reconcile.New(reconcile.Options{
		Registry:   registry,
		Clock:      clock,
		Cache:      snapshots,
		LastKnown:  lastKnown,
		Saver:      saver,
		Thresholds: cfg.Validation,
		TTL: cache.TTLPolicy{
			Quote:   cfg.Cache.QuoteTTL,
			Fact:    cfg.Cache.FactTTL,
			Default: cfg.Cache.DefaultTTL,
		},
		TTLHints: reconcile.TTLHints(cfg.Sources),
		Logger:   logger,
	})

	analyzer := liquidity.NewAnalyzer(cfg.Costs, cfg.Liquidity, cfg.Premium, logger)
	return services.NewAnalysisService(engine, analyzer, logger), cleanup, nil
}

// writeReport renders the ranking in the format the output extension asks
// for: .csv writes flat rows, anything else gets the xlsx workbook.
func writeReport(path string, rank *services.RankResponse) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := exporter.NewComparisonWriter(infrastructure.GetLogger())
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return writer.WriteCSV(out, rank)
	}
	return writer.WriteXLSX(out, rank)
}

// splitTickers parses the comma-separated ticker list, uppercasing and
// dropping empties so "vti, ,voo" comes out as [VTI VOO].
func splitTickers(arg string) []string {
	parts := strings.Split(arg, ",")
	tickers := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			tickers = append(tickers, p)
		}
	}
	return tickers
}

func printSummary(rank *services.RankResponse) {
	if len(rank.Entries) == 0 {
		return
	}

	fmt.Println("\n=== TRADABILITY RANKING ===")
	fmt.Println("Rank | Ticker | Rating    | Liquidity | Round-Trip Cost | Alerts")
	fmt.Println("-----|--------|-----------|-----------|-----------------|-------")

	// Error entries sort last, so the index is the rank for everything
	// that analyzed, matching the workbook's Rank column.
	for idx, entry := range rank.Entries {
		if entry.Error != "" {
			fmt.Printf("   - | %-6s | %-9s | %9s | %15s | %s\n",
				entry.Ticker, "failed", "-", "-", entry.Error)
			continue
		}

		liquidityTotal := "-"
		if entry.Liquidity != nil {
			liquidityTotal = fmt.Sprintf("%.0f", entry.Liquidity.Total)
		}

		roundTrip := "-"
		alerts := 0
		if entry.Costs != nil {
			if entry.Costs.TotalRoundTrip != nil {
				roundTrip = fmt.Sprintf("%.4f%%", *entry.Costs.TotalRoundTrip*100)
			}
			alerts = len(entry.Costs.Alerts)
		}

		fmt.Printf("%4d | %-6s | %-9s | %9s | %15s | %d\n",
			idx+1, entry.Ticker, entry.Rating, liquidityTotal, roundTrip, alerts)
	}
}
