package liquidity

import (
	"math"

	"etfcli/internal/config"
	"etfcli/pkg/contracts/domain"
)

// Slopes of the liquidity sub-scores. The configurable caps bound each
// sub-score; the slopes themselves are fixed.
const (
	pointsPerMillionShares = 4.0    // volume sub-score
	pointsPerSpreadUnit    = 1000.0 // spread sub-score penalty per unit of relative spread
	pointsPerBillionAssets = 3.0    // asset sub-score
)

// Score grades how cheaply a fund can be traded on a 0-100 scale.
//
// The grade combines three independently capped sub-scores: average daily
// volume (4 points per million shares), relative bid-ask spread (cap minus
// 1000 points per unit of spread, floored at zero), and assets under
// management (3 points per billion). A missing or unusable input zeroes its
// sub-score; the calculation itself never fails. The total is additionally
// capped at 100.
func Score(snap *domain.Snapshot, cfg config.LiquidityConfig) domain.LiquidityScore {
	score := domain.LiquidityScore{Ticker: snap.Ticker}

	if adv, ok := snap.Value(domain.FieldAvgDailyVolume); ok && usable(adv) {
		score.VolumeScore = clampScore(adv/1_000_000*pointsPerMillionShares, cfg.VolumeCap)
	}

	if spread, ok := spreadFraction(snap); ok {
		score.SpreadScore = clampScore(cfg.SpreadCap-spread*pointsPerSpreadUnit, cfg.SpreadCap)
	}

	if assets, ok := snap.Value(domain.FieldAssets); ok && usable(assets) {
		score.AssetScore = clampScore(assets/1_000_000_000*pointsPerBillionAssets, cfg.AssetCap)
	}

	score.Total = math.Min(100, score.VolumeScore+score.SpreadScore+score.AssetScore)
	return score
}

// clampScore bounds a raw sub-score to [0, ceiling].
func clampScore(raw, ceiling float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	return math.Min(ceiling, math.Max(0, raw))
}

// usable reports whether a field value can participate in a score: a finite,
// non-negative number.
func usable(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// spreadFraction returns the relative bid-ask spread (ask-bid)/midpoint.
// ok is false when either quote is missing, the midpoint is not a positive
// finite number, or the quote is crossed (ask below bid). A crossed quote
// is treated as unusable rather than as a negative cost.
func spreadFraction(snap *domain.Snapshot) (float64, bool) {
	bid, okBid := snap.Value(domain.FieldBid)
	ask, okAsk := snap.Value(domain.FieldAsk)
	if !okBid || !okAsk {
		return 0, false
	}
	if ask < bid {
		return 0, false
	}
	mid := (ask + bid) / 2
	if mid <= 0 || math.IsNaN(mid) || math.IsInf(mid, 0) {
		return 0, false
	}
	spread := (ask - bid) / mid
	if math.IsNaN(spread) || math.IsInf(spread, 0) {
		return 0, false
	}
	return spread, true
}
