package liquidity

import (
	"fmt"
	"log/slog"
	"math"

	"etfcli/pkg/contracts/domain"
)

// Premium compares the last traded price against the fund's indicative
// intraday value. The premium is a signed fraction of IIV: positive when the
// fund trades rich, negative at a discount.
//
// Both inputs must be present; unlike costs there is no partial result to
// degrade to. When either input is stale (served from last-known values with
// the market closed) an error-grade divergence is downgraded to warning,
// since a closing print against a frozen IIV overstates true divergence.
func (a *Analyzer) Premium(snap *domain.Snapshot) (*domain.PremiumDiscount, error) {
	if snap == nil {
		return nil, ValidationError{Field: "snapshot", Message: "snapshot is required"}
	}

	last, ok := snap.Get(domain.FieldLastPrice)
	if !ok {
		return nil, ValidationError{Field: string(domain.FieldLastPrice), Message: "last price unavailable", Value: snap.Ticker}
	}
	iiv, ok := snap.Get(domain.FieldIIV)
	if !ok {
		return nil, ValidationError{Field: string(domain.FieldIIV), Message: "indicative intraday value unavailable", Value: snap.Ticker}
	}
	if iiv.Value <= 0 || math.IsNaN(iiv.Value) || math.IsInf(iiv.Value, 0) {
		return nil, ValidationError{Field: string(domain.FieldIIV), Message: "indicative intraday value must be a positive number", Value: iiv.Value}
	}

	premium := (last.Value - iiv.Value) / iiv.Value
	stale := last.IsStale || iiv.IsStale
	magnitude := math.Abs(premium)

	var (
		severity = domain.SeverityOK
		crossed  float64
	)
	switch {
	case magnitude >= a.premium.Error:
		severity, crossed = domain.SeverityError, a.premium.Error
	case magnitude >= a.premium.Warning:
		severity, crossed = domain.SeverityWarning, a.premium.Warning
	}
	if stale && severity == domain.SeverityError {
		severity = domain.SeverityWarning
	}

	result := &domain.PremiumDiscount{
		Ticker:    snap.Ticker,
		LastPrice: last.Value,
		IIV:       iiv.Value,
		Premium:   premium,
		Stale:     stale,
		Severity:  severity,
	}

	if severity != domain.SeverityOK {
		direction := "premium"
		if premium < 0 {
			direction = "discount"
		}
		message := fmt.Sprintf("trading at a %.2f%% %s to indicative value", magnitude*100, direction)
		if stale {
			message += " (stale inputs)"
		}
		result.Alerts = append(result.Alerts, domain.Alert{
			Metric:    MetricPremiumDiscount,
			Value:     premium,
			Threshold: crossed,
			Severity:  severity,
			Message:   message,
		})
	}

	a.logger.Debug("premium analysis computed",
		slog.String("ticker", snap.Ticker),
		slog.Float64("premium", premium),
		slog.Bool("stale", stale),
	)

	return result, nil
}
