package liquidity

import (
	"fmt"
	"log/slog"

	"etfcli/internal/config"
	"etfcli/pkg/contracts/domain"
)

// Analyzer derives cost, score, and premium analytics from snapshots. It is
// stateless apart from configuration and safe for concurrent use.
type Analyzer struct {
	costs     config.CostsConfig
	liquidity config.LiquidityConfig
	premium   config.PremiumConfig
	logger    *slog.Logger
}

// NewAnalyzer creates an analyzer with the given thresholds and tier table.
func NewAnalyzer(costs config.CostsConfig, liq config.LiquidityConfig, prem config.PremiumConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		costs:     costs,
		liquidity: liq,
		premium:   prem,
		logger:    logger.With(slog.String("component", "liquidity_analyzer")),
	}
}

// Score grades the snapshot's fund on the 0-100 liquidity scale.
func (a *Analyzer) Score(snap *domain.Snapshot) domain.LiquidityScore {
	return Score(snap, a.liquidity)
}

// Costs computes the per-trade cost breakdown for the snapshot.
//
// Components degrade independently: spread cost is absent when either quote
// is missing, market impact is additionally absent when the trade cannot be
// sized against average daily volume, and the aggregate totals are absent
// whenever one of their parts is. The expense ratio always carries through
// (zero when the fund publishes none). Threshold alerts are attached for
// every component that was actually computed; a trade beyond the last impact
// tier always alerts, even when the impact itself could not be estimated.
func (a *Analyzer) Costs(snap *domain.Snapshot, trade domain.TradeContext) (*domain.CostBreakdown, error) {
	if snap == nil {
		return nil, ValidationError{Field: "snapshot", Message: "snapshot is required"}
	}

	breakdown := &domain.CostBreakdown{Ticker: snap.Ticker}

	// 1. Expense ratio, prorated over the holding period.
	expenseRatio, _ := snap.Value(domain.FieldExpenseRatio)
	breakdown.ExpenseRatio = expenseRatio
	expenseProrated := expenseRatio * float64(trade.HoldingPeriod()) / float64(domain.DefaultHoldingPeriodDays)

	// 2. Spread cost: the full relative spread; one-way trades pay half.
	spread, hasSpread := spreadFraction(snap)
	if hasSpread {
		spreadCost := spread
		breakdown.SpreadCost = &spreadCost
	}

	// 3. Size the trade against average daily volume.
	adv, _ := snap.Value(domain.FieldAvgDailyVolume)
	shares, fraction, sized := trade.Size.Resolve(adv)
	breakdown.TradeShares = shares
	breakdown.ADVFraction = fraction

	var (
		factor float64
		capped bool
	)
	if sized {
		factor, capped = impactFactor(fraction, a.costs.ImpactTiers)
	}

	// 4. Market impact and aggregates need both a spread and a sized trade.
	score := Score(snap, a.liquidity)
	if hasSpread && sized {
		impact := spread * factor * liquidityMultiplier(score.Total)
		oneWay := expenseProrated + spread/2 + impact
		roundTrip := expenseProrated + spread + 2*impact
		breakdown.MarketImpact = &impact
		breakdown.TotalOneWay = &oneWay
		breakdown.TotalRoundTrip = &roundTrip
	}

	// 5. Advisory alerts on whatever was computed.
	if breakdown.SpreadCost != nil {
		if alert := thresholdAlert(MetricSpreadCost, "spread cost", *breakdown.SpreadCost, a.costs.Spread); alert != nil {
			breakdown.Alerts = append(breakdown.Alerts, *alert)
		}
	}
	if breakdown.MarketImpact != nil {
		if alert := thresholdAlert(MetricMarketImpact, "market impact", *breakdown.MarketImpact, a.costs.MarketImpact); alert != nil {
			breakdown.Alerts = append(breakdown.Alerts, *alert)
		}
	}
	if breakdown.TotalRoundTrip != nil {
		if alert := thresholdAlert(MetricTotalCost, "round-trip cost", *breakdown.TotalRoundTrip, a.costs.TotalCost); alert != nil {
			breakdown.Alerts = append(breakdown.Alerts, *alert)
		}
	}
	if capped {
		top := a.costs.ImpactTiers[len(a.costs.ImpactTiers)-1].MaxADVFraction
		breakdown.Alerts = append(breakdown.Alerts, domain.Alert{
			Metric:    MetricTradeSize,
			Value:     fraction,
			Threshold: top,
			Severity:  domain.SeverityError,
			Message: fmt.Sprintf("trade of %.1f%% of average daily volume exceeds the %.0f%% tier, impact estimate capped",
				fraction*100, top*100),
		})
	}

	a.logger.Debug("cost breakdown computed",
		slog.String("ticker", snap.Ticker),
		slog.Float64("adv_fraction", fraction),
		slog.Bool("spread_available", hasSpread),
		slog.Int("alerts", len(breakdown.Alerts)),
	)

	return breakdown, nil
}

// thresholdAlert builds an advisory alert when value sits at or above one of
// the configured boundaries. Crossing the alert boundary grades error,
// crossing only the warning boundary grades warning; below both, no alert.
func thresholdAlert(metric, label string, value float64, bounds config.AlertThreshold) *domain.Alert {
	var (
		severity domain.Severity
		level    string
		crossed  float64
	)
	switch {
	case value >= bounds.Alert:
		severity, level, crossed = domain.SeverityError, "alert", bounds.Alert
	case value >= bounds.Warning:
		severity, level, crossed = domain.SeverityWarning, "warning", bounds.Warning
	default:
		return nil
	}
	return &domain.Alert{
		Metric:    metric,
		Value:     value,
		Threshold: crossed,
		Severity:  severity,
		Message: fmt.Sprintf("%s of %.4f%% crosses the %s threshold (%.4f%%)",
			label, value*100, level, crossed*100),
	}
}
