// Package adapters fetches raw field observations from upstream data
// providers. Each adapter answers for exactly one source; the registry holds
// the enabled set in priority order for the reconciliation merge. Adapters
// return partial maps (whatever known fields the source could supply) and
// classified errors for everything else.
package adapters

import (
	"context"
	"log/slog"

	"etfcli/internal/config"
	"etfcli/pkg/contracts/domain"
)

// Adapter is a single upstream source. Fetch returns the requested fields the
// source could supply; missing fields are simply absent from the map. A nil
// error with an empty map is a valid answer (the source had nothing usable).
// Unknown field keys are dropped inside the adapter, never returned.
type Adapter interface {
	Source() domain.SourceID
	Fetch(ctx context.Context, ticker string, fields []domain.Field) (map[domain.Field]domain.FieldValue, error)
}

// Registry is the ordered set of enabled adapters, most trusted first.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a registry from adapters already in priority order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Build constructs the production registry from enabled source configs,
// wiring each JSON adapter behind its own rate limiter. The input is expected
// in priority order (config.EnabledSources provides that).
func Build(sources []config.SourceConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	adapters := make([]Adapter, 0, len(sources))
	for _, src := range sources {
		timeout := src.Timeout
		if timeout <= 0 {
			timeout = config.AdapterFetchTimeout
		}
		var a Adapter = NewJSONAPI(domain.SourceID(src.Name), src.BaseURL, src.APIKey, timeout, logger)
		if src.RatePerMinute > 0 {
			a = WithRateLimit(a, src.RatePerMinute, src.Burst, logger)
		}
		adapters = append(adapters, a)

		logger.Info("source adapter registered",
			slog.String("source", src.Name),
			slog.Int("priority", src.Priority),
			slog.Float64("rate_per_minute", src.RatePerMinute),
			slog.String("base_url", src.BaseURL))
	}
	return NewRegistry(adapters...)
}

// Adapters returns the adapters in priority order. Callers must not mutate
// the slice.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Len reports how many adapters are registered.
func (r *Registry) Len() int {
	return len(r.adapters)
}
