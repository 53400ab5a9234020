package liquidity

// Metric names carried on alerts raised by this package. Transport and sink
// layers key display rules off these.
const (
	MetricSpreadCost      = "spread_cost"
	MetricMarketImpact    = "market_impact"
	MetricTotalCost       = "total_cost"
	MetricTradeSize       = "trade_size"
	MetricPremiumDiscount = "premium_discount"
)

// ValidationError represents validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return ve.Message
}
