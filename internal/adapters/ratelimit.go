package adapters

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"etfcli/pkg/contracts/domain"
)

// Limiter is the token-bucket subset the wrapper needs. *rate.Limiter
// satisfies it; tests inject their own.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimited decorates an adapter with a per-source token bucket. Every
// source owns its own limiter so one saturated provider never starves the
// others. A Wait that cannot be satisfied within the request's context is a
// rate-limited failure for this source only.
type RateLimited struct {
	inner   Adapter
	limiter Limiter
	logger  *slog.Logger
}

// WithRateLimit wraps inner with a fresh token bucket of perMinute requests
// and the given burst (minimum 1).
func WithRateLimit(inner Adapter, perMinute float64, burst int, logger *slog.Logger) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return WithLimiter(inner, rate.NewLimiter(rate.Limit(perMinute/60.0), burst), logger)
}

// WithLimiter wraps inner with an externally owned limiter.
func WithLimiter(inner Adapter, limiter Limiter, logger *slog.Logger) *RateLimited {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimited{
		inner:   inner,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "adapter_ratelimit"), slog.String("source", string(inner.Source()))),
	}
}

// Source implements Adapter.
func (a *RateLimited) Source() domain.SourceID {
	return a.inner.Source()
}

// Fetch waits for a token, then delegates.
func (a *RateLimited) Fetch(ctx context.Context, ticker string, fields []domain.Field) (map[domain.Field]domain.FieldValue, error) {
	start := time.Now()
	if err := a.limiter.Wait(ctx); err != nil {
		a.logger.WarnContext(ctx, "rate limit saturated",
			slog.String("ticker", ticker),
			slog.Duration("waited", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, NewError(a.inner.Source(), KindRateLimited, err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		a.logger.DebugContext(ctx, "rate limit wait",
			slog.String("ticker", ticker),
			slog.Duration("waited", waited))
	}
	return a.inner.Fetch(ctx, ticker, fields)
}
