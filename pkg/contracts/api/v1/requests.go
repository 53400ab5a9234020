// Package api contains API contract definitions for ETF Pulse.
// Version v1 represents the current stable API version.
package api

// Snapshot API Requests

// SnapshotRequest represents a request for a reconciled snapshot
type SnapshotRequest struct {
	Ticker string   `json:"ticker" param:"ticker" validate:"required,min=1,max=10,alphanum"`
	Fields []string `json:"fields,omitempty" query:"fields" validate:"omitempty,dive,oneof=bid ask last_price iiv avg_daily_volume assets expense_ratio"`
}

// Analysis API Requests

// CostAnalysisRequest represents a request for a trading cost breakdown
type CostAnalysisRequest struct {
	Ticker            string  `json:"ticker" param:"ticker" validate:"required,min=1,max=10,alphanum"`
	TradeShares       float64 `json:"trade_shares,omitempty" query:"trade_shares" validate:"omitempty,gt=0"`
	ADVFraction       float64 `json:"adv_fraction,omitempty" query:"adv_fraction" validate:"omitempty,gt=0,lte=1"`
	HoldingPeriodDays int     `json:"holding_period_days,omitempty" query:"holding_period_days" validate:"omitempty,gt=0,lte=3650"`
}

// LiquidityRequest represents a request for a liquidity score
type LiquidityRequest struct {
	Ticker string `json:"ticker" param:"ticker" validate:"required,min=1,max=10,alphanum"`
}

// PremiumRequest represents a request for premium/discount analysis
type PremiumRequest struct {
	Ticker string `json:"ticker" param:"ticker" validate:"required,min=1,max=10,alphanum"`
}

// Ranking API Requests

// RankRequest represents a request to rank several tickers by tradability
type RankRequest struct {
	Tickers           []string `json:"tickers" validate:"required,min=1,max=50,dive,min=1,max=10,alphanum"`
	TradeShares       float64  `json:"trade_shares,omitempty" validate:"omitempty,gt=0"`
	ADVFraction       float64  `json:"adv_fraction,omitempty" validate:"omitempty,gt=0,lte=1"`
	HoldingPeriodDays int      `json:"holding_period_days,omitempty" validate:"omitempty,gt=0,lte=3650"`
}

// RankExportRequest represents a request to export a ranking as a report
type RankExportRequest struct {
	RankRequest
	Format string `json:"format,omitempty" query:"format" validate:"omitempty,oneof=xlsx csv"`
}

// Cache API Requests

// CacheInvalidateRequest represents an explicit market-close invalidation
type CacheInvalidateRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,oneof=market_close manual"`
}

// Health API Requests

// HealthCheckRequest represents a health check request
type HealthCheckRequest struct {
	Verbose bool `json:"verbose" query:"verbose"`
}
