package domain

// Alert is an advisory notice that a metric crossed a configured threshold.
// Alerts are output, never failures: an analysis that raises alerts still
// succeeds.
type Alert struct {
	Metric    string   `json:"metric"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// CostBreakdown is the per-trade cost view derived from a snapshot. It is
// recomputed on demand and never cached independently of its snapshot.
// Spread-derived components are nil when bid or ask is missing; costs are
// never estimated from last_price alone.
type CostBreakdown struct {
	Ticker         string   `json:"ticker"`
	TradeShares    float64  `json:"trade_shares"`
	ADVFraction    float64  `json:"adv_fraction"`
	SpreadCost     *float64 `json:"spread_cost,omitempty"`
	MarketImpact   *float64 `json:"market_impact,omitempty"`
	ExpenseRatio   float64  `json:"expense_ratio"`
	TotalOneWay    *float64 `json:"total_one_way,omitempty"`
	TotalRoundTrip *float64 `json:"total_round_trip,omitempty"`
	Alerts         []Alert  `json:"alerts,omitempty"`
}

// LiquidityScore grades how cheaply a fund can be traded, 0-100.
// Sub-scores cap independently: volume 0-40, spread 0-30, assets 0-30.
// A missing input zeroes its sub-score; it never fails the calculation.
type LiquidityScore struct {
	Ticker      string  `json:"ticker"`
	VolumeScore float64 `json:"volume_score"`
	SpreadScore float64 `json:"spread_score"`
	AssetScore  float64 `json:"asset_score"`
	Total       float64 `json:"total"`
}

// Rating buckets the total score for display.
func (s LiquidityScore) Rating() string {
	switch {
	case s.Total >= 80:
		return "excellent"
	case s.Total >= 60:
		return "good"
	case s.Total >= 40:
		return "fair"
	default:
		return "poor"
	}
}

// PremiumDiscount compares last traded price against indicative intraday
// value. Premium is a signed fraction: positive when the fund trades above
// its IIV.
type PremiumDiscount struct {
	Ticker    string   `json:"ticker"`
	LastPrice float64  `json:"last_price"`
	IIV       float64  `json:"iiv"`
	Premium   float64  `json:"premium"`
	Stale     bool     `json:"stale"`
	Severity  Severity `json:"severity"`
	Alerts    []Alert  `json:"alerts,omitempty"`
}

// TradeSize expresses an intended trade either as a share count or as a
// fraction of average daily volume. Exactly one should be set; when both are
// zero the default of 1% ADV applies.
type TradeSize struct {
	Shares      float64 `json:"shares,omitempty" validate:"omitempty,gt=0"`
	ADVFraction float64 `json:"adv_fraction,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// DefaultTradeSize is the conventional sizing when the caller does not care:
// one percent of average daily volume.
func DefaultTradeSize() TradeSize {
	return TradeSize{ADVFraction: 0.01}
}

// Resolve converts the trade size to concrete shares and an ADV fraction
// against the given average daily volume. ok is false when the size cannot
// be resolved (no ADV available for a fraction-style size, or ADV zero).
func (t TradeSize) Resolve(adv float64) (shares, fraction float64, ok bool) {
	if t.Shares > 0 {
		if adv <= 0 {
			return t.Shares, 0, false
		}
		return t.Shares, t.Shares / adv, true
	}
	frac := t.ADVFraction
	if frac <= 0 {
		frac = DefaultTradeSize().ADVFraction
	}
	if adv <= 0 {
		return 0, frac, false
	}
	return frac * adv, frac, true
}

// TradeContext carries the trade parameters a snapshot request is being made
// for. The reconciliation engine records it in trace output; the cost engine
// consumes it.
type TradeContext struct {
	Size              TradeSize `json:"size"`
	HoldingPeriodDays int       `json:"holding_period_days,omitempty" validate:"omitempty,gt=0"`
}

// DefaultHoldingPeriodDays prorates the expense ratio over a full year,
// matching the annual-cost framing of published expense ratios.
const DefaultHoldingPeriodDays = 365

// HoldingPeriod returns the effective holding period in days.
func (tc TradeContext) HoldingPeriod() int {
	if tc.HoldingPeriodDays <= 0 {
		return DefaultHoldingPeriodDays
	}
	return tc.HoldingPeriodDays
}
