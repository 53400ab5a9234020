package liquidity

import (
	"math"

	"etfcli/internal/config"
)

// impactFactor returns the spread multiple applied to a trade of the given
// ADV fraction, looked up against the configured tier table.
//
// The factor curve is anchored at the origin and passes through every
// (max_adv_fraction, factor) point in the table, interpolating linearly
// between consecutive points: a trade at half the first tier's threshold
// pays half the first tier's factor, a trade exactly at a threshold pays
// exactly that tier's factor, and the estimate never shrinks as the trade
// grows. Beyond the last tier the factor stays at the last value and capped
// reports true; the caller flags such trades as severe.
func impactFactor(fraction float64, tiers []config.ImpactTier) (factor float64, capped bool) {
	if len(tiers) == 0 || fraction <= 0 || math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return 0, false
	}

	prevThreshold, prevFactor := 0.0, 0.0
	for _, tier := range tiers {
		if fraction <= tier.MaxADVFraction {
			span := tier.MaxADVFraction - prevThreshold
			if span <= 0 {
				// Degenerate table row; take the tier at face value.
				return tier.Factor, false
			}
			progress := (fraction - prevThreshold) / span
			return prevFactor + progress*(tier.Factor-prevFactor), false
		}
		prevThreshold, prevFactor = tier.MaxADVFraction, tier.Factor
	}

	return prevFactor, true
}

// liquidityMultiplier adjusts a raw impact estimate for how easily the fund
// absorbs flow: highly liquid funds (score above 80) trade at a discount to
// the tier estimate, illiquid funds (score below 50) at a premium.
func liquidityMultiplier(score float64) float64 {
	switch {
	case score > 80:
		return 0.8
	case score >= 50:
		return 1.0
	default:
		return 1.2
	}
}
