package services

import "errors"

// Analysis service errors
var (
	// Ranking errors
	ErrNoTickers = errors.New("no tickers provided")

	// General errors
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
