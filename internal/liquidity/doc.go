// Package liquidity derives trading-cost and liquidity analytics from
// reconciled market-data snapshots.
//
// Everything in this package is computed on demand from a Snapshot; nothing
// here fetches data or caches results. A missing input degrades the affected
// output (a nil cost component, a zeroed sub-score) instead of failing the
// whole analysis.
//
// # Components
//
// The package exposes three analyses:
//
//  1. Trading costs: one-way and round-trip cost of a trade, combining the
//     prorated expense ratio, half-spread charges, and a market-impact
//     estimate sized against average daily volume.
//  2. Liquidity score: a 0-100 grade built from volume, spread, and asset
//     sub-scores, each independently capped.
//  3. Premium/discount: last traded price versus indicative intraday value,
//     with staleness-aware severity.
//
// # Cost Model
//
// Spread cost is the full relative spread (ask-bid)/midpoint; a one-way trade
// is charged half of it. It is absent when either quote is missing; it is
// never estimated from the last trade price.
//
// Market impact starts from a tiered lookup on trade size as a fraction of
// average daily volume. The factor curve passes through the origin and each
// configured (threshold, factor) point, interpolating linearly between them,
// so the estimate grows continuously with trade size. Beyond the last tier
// the factor is capped and the trade is flagged as severe. The result is a
// multiple of the spread, adjusted by a liquidity multiplier (cheaper to
// trade liquid funds, dearer to trade illiquid ones).
//
// Aggregates:
//
//	total_one_way    = expense_prorated + spread_cost/2 + market_impact
//	total_round_trip = expense_prorated + spread_cost   + 2*market_impact
//
// The expense ratio is prorated over the trade's holding period (default one
// year, matching how published ratios are quoted).
//
// # Liquidity Score
//
//	volume_score = min(cap, adv/1e6 * 4)        // 4 points per million shares
//	spread_score = min(cap, max(0, cap - spread*1000))
//	asset_score  = min(cap, assets/1e9 * 3)     // 3 points per billion
//
// Default caps are 40/30/30. A missing input zeroes its sub-score; the total
// never exceeds 100.
//
// # Alerts
//
// Analyses attach advisory alerts when a computed metric crosses its
// configured warning/alert boundary. Alerts never turn an analysis into a
// failure.
//
// # Usage
//
//	analyzer := liquidity.NewAnalyzer(cfg.Costs, cfg.Liquidity, cfg.Premium, logger)
//	breakdown, err := analyzer.Costs(snapshot, domain.TradeContext{
//		Size: domain.TradeSize{ADVFraction: 0.01},
//	})
//	if err != nil {
//		return err
//	}
//	score := analyzer.Score(snapshot)
package liquidity
