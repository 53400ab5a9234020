// Package reconcile assembles market-data snapshots from prioritized,
// unreliable sources. The engine fans a request out to the source adapters,
// merges their partial answers field by field with the highest-priority
// reporter winning, annotates cross-source disagreement, falls back to
// last-known values where live data is unavailable, and decides how long the
// result may be cached. Individual source failures are diagnostics; only a
// request with zero usable values is an error.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"etfcli/internal/adapters"
	"etfcli/internal/cache"
	"etfcli/internal/config"
	apperrors "etfcli/internal/errors"
	"etfcli/internal/marketclock"
	"etfcli/pkg/contracts/domain"
	"etfcli/pkg/contracts/events"
)

// MarketClock answers whether the exchange is in session. Satisfied by
// *marketclock.Clock.
type MarketClock interface {
	Status(t time.Time) (domain.MarketStatus, marketclock.Confidence)
}

// SnapshotCache is the hot-path cache consulted before any adapter is
// touched. Satisfied by *cache.Store.
type SnapshotCache interface {
	Get(key string) (*domain.Snapshot, bool)
	Put(key string, snapshot *domain.Snapshot, ttl time.Duration, invalidateOnClose bool)
}

// LastKnownStore archives the most recent good observation per ticker and
// field, the terminal fallback before a field goes absent. Satisfied by
// *storage.Store and *storage.Memory.
type LastKnownStore interface {
	SaveLastKnown(ctx context.Context, ticker string, fields map[domain.Field]domain.FieldValue) error
	LastKnown(ctx context.Context, ticker string) (map[domain.Field]domain.FieldValue, error)
}

// EntrySaver persists cache entries so a restart can warm-start from disk.
// Satisfied by *storage.Store.
type EntrySaver interface {
	SaveEntry(ctx context.Context, entry cache.Entry) error
}

// Result is the complete outcome of one snapshot request: the reconciled
// snapshot plus every diagnostic produced while assembling it. Cache hits
// return the snapshot alone; validations and failures describe a live
// collection only.
type Result struct {
	Snapshot    *domain.Snapshot
	Validations []domain.ValidationResult
	Failures    []domain.SourceFailure
	Alerts      []domain.Alert
	CacheHit    bool
}

// Engine reconciles multi-source market data into snapshots. It is safe for
// concurrent use.
type Engine struct {
	registry   *adapters.Registry
	clock      MarketClock
	cache      SnapshotCache
	lastKnown  LastKnownStore
	saver      EntrySaver
	thresholds config.ValidationConfig
	ttl        cache.TTLPolicy
	ttlHints   map[domain.SourceID]time.Duration
	sink       events.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// Options wires an Engine. Registry, Clock, Cache and LastKnown are the
// working parts; everything else defaults sensibly.
type Options struct {
	Registry  *adapters.Registry
	Clock     MarketClock
	Cache     SnapshotCache
	LastKnown LastKnownStore
	// Saver receives every cached snapshot for warm-start persistence. nil
	// disables persistence.
	Saver      EntrySaver
	Thresholds config.ValidationConfig
	TTL        cache.TTLPolicy
	// TTLHints caps the cache TTL of snapshots whose winning values came
	// from a source with its own cache_ttl configured.
	TTLHints map[domain.SourceID]time.Duration
	Sink     events.Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

// New builds an Engine from options.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = events.NopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.TTL
	if ttl == (cache.TTLPolicy{}) {
		ttl = cache.DefaultTTLPolicy()
	}

	return &Engine{
		registry:   opts.Registry,
		clock:      opts.Clock,
		cache:      opts.Cache,
		lastKnown:  opts.LastKnown,
		saver:      opts.Saver,
		thresholds: opts.Thresholds,
		ttl:        ttl,
		ttlHints:   opts.TTLHints,
		sink:       sink,
		logger:     logger.With(slog.String("component", "reconcile_engine")),
		now:        now,
	}
}

// TTLHints extracts the per-source cache TTL overrides from source configs.
func TTLHints(sources []config.SourceConfig) map[domain.SourceID]time.Duration {
	hints := make(map[domain.SourceID]time.Duration, len(sources))
	for _, src := range sources {
		if src.CacheTTL > 0 {
			hints[domain.SourceID(src.Name)] = src.CacheTTL
		}
	}
	return hints
}

// GetSnapshot assembles the reconciled snapshot for a ticker. An empty field
// set requests every known field. The error is non-nil only for invalid
// input, a dead context, or total data unavailability. Partial answers come
// back as a Result with failures and absences recorded, never as an error.
func (e *Engine) GetSnapshot(ctx context.Context, ticker string, fields []domain.Field) (*Result, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, apperrors.NewAppValidationError("ticker must not be empty")
	}
	fields = domain.NormalizeFieldSet(fields)

	start := e.now()
	e.emit(ctx, events.TraceEvent{Stage: events.StageRequestStarted, Ticker: ticker,
		Detail: map[string]string{"fields": joinFields(fields)}})

	key := cache.Key(ticker, fields)
	if snap, ok := e.cache.Get(key); ok {
		e.emit(ctx, events.TraceEvent{Stage: events.StageCacheHit, Ticker: ticker})
		e.emit(ctx, events.TraceEvent{Stage: events.StageRequestCompleted, Ticker: ticker,
			Detail: map[string]string{"cache_hit": "true"}})
		e.logger.Debug("snapshot served from cache",
			slog.String("ticker", ticker),
			slog.Int("fields", len(snap.Fields)))
		return &Result{Snapshot: snap, CacheHit: true}, nil
	}
	e.emit(ctx, events.TraceEvent{Stage: events.StageCacheMiss, Ticker: ticker})

	status, confidence := e.clock.Status(start)
	snapshotStatus := status
	if confidence == marketclock.ConfidenceUnknown {
		snapshotStatus = domain.MarketUnknown
	}

	// Live quotes are never fetched outside the session; they are served
	// from last-known values further down instead.
	fetchFields := fields
	if status == domain.MarketClosed {
		fetchFields = nil
		for _, f := range fields {
			if !f.IsLiveQuote() {
				fetchFields = append(fetchFields, f)
			}
		}
	}

	answers := e.fanOut(ctx, ticker, fetchFields)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failures []domain.SourceFailure
	for _, ans := range answers {
		if ans.err != nil {
			failures = append(failures, ans.err.Failure(e.now()))
			e.emit(ctx, events.TraceEvent{Stage: events.StageSourceFailed, Ticker: ticker,
				Source: string(ans.source), Message: ans.err.Error(),
				Detail: map[string]string{"kind": string(ans.err.Kind)}})
			e.logger.Warn("source fetch failed",
				slog.String("ticker", ticker),
				slog.String("source", string(ans.source)),
				slog.String("kind", string(ans.err.Kind)),
				slog.String("error", ans.err.Error()))
			continue
		}
		e.emit(ctx, events.TraceEvent{Stage: events.StageSourceFetch, Ticker: ticker,
			Source: string(ans.source),
			Detail: map[string]string{"fields_returned": strconv.Itoa(len(ans.fields))}})
	}

	snapshot := &domain.Snapshot{
		Ticker:       ticker,
		Fields:       make(map[domain.Field]domain.FieldValue, len(fields)),
		MarketStatus: snapshotStatus,
		AsOf:         start,
	}

	var validations []domain.ValidationResult
	var alerts []domain.Alert
	winners := make(map[domain.SourceID]struct{})

	for _, field := range fetchFields {
		var obs []observation
		for _, ans := range answers {
			if fv, ok := ans.fields[field]; ok {
				obs = append(obs, observation{source: ans.source, value: fv})
			}
		}
		if len(obs) == 0 {
			continue // picked up by the last-known fallback below
		}

		pair := e.thresholds.ForField(field)
		winner, validation := mergeField(field, obs, pair)
		snapshot.Fields[field] = winner
		winners[winner.Source] = struct{}{}
		e.emit(ctx, events.TraceEvent{Stage: events.StageFieldResolved, Ticker: ticker,
			Source: string(winner.Source), Field: string(field)})

		if validation == nil {
			continue
		}
		validations = append(validations, *validation)
		e.emit(ctx, events.TraceEvent{Stage: events.StageValidation, Ticker: ticker,
			Field: string(field), Severity: string(validation.Severity),
			Detail: map[string]string{
				"relative_difference": strconv.FormatFloat(validation.RelativeDifference, 'g', -1, 64),
				"sources":             joinSources(validation.SourcesCompared),
			}})

		if validation.Severity != domain.SeverityError {
			continue
		}
		alert := divergenceAlert(field, *validation, pair)
		alerts = append(alerts, alert)
		e.emit(ctx, events.TraceEvent{Stage: events.StageAlert, Ticker: ticker,
			Field: string(field), Severity: string(validation.Severity), Message: alert.Message})
		e.logger.Warn("cross-source divergence",
			slog.String("ticker", ticker),
			slog.String("field", string(field)),
			slog.Float64("relative_difference", validation.RelativeDifference),
			slog.String("sources", joinSources(validation.SourcesCompared)))
	}

	// Anything the adapters could not answer falls back to the last known
	// good observation. Absence is the terminal state: a field nobody can
	// supply stays out of the snapshot rather than defaulting.
	if missing := missingFields(snapshot, fields); len(missing) > 0 {
		known := e.loadLastKnown(ctx, ticker)
		for _, field := range missing {
			fv, ok := known[field]
			if !ok {
				e.emit(ctx, events.TraceEvent{Stage: events.StageFieldAbsent, Ticker: ticker,
					Field: string(field)})
				continue
			}
			fv.IsStale = true
			snapshot.Fields[field] = fv
			e.emit(ctx, events.TraceEvent{Stage: events.StageStaleFallback, Ticker: ticker,
				Source: string(fv.Source), Field: string(field),
				Detail: map[string]string{"observed_at": fv.ObservedAt.Format(time.RFC3339)}})
		}
	}

	if snapshot.IsEmpty() {
		e.emit(ctx, events.TraceEvent{Stage: events.StageNoData, Ticker: ticker})
		e.logger.Warn("no usable data for request",
			slog.String("ticker", ticker),
			slog.String("fields", joinFields(fields)),
			slog.Int("source_failures", len(failures)))
		return nil, apperrors.NewNoDataAvailable(ticker, fields, failures)
	}

	ttl := e.snapshotTTL(snapshot, winners)
	invalidate := e.ttl.InvalidateOnClose(snapshot)
	e.cache.Put(key, snapshot, ttl, invalidate)
	e.emit(ctx, events.TraceEvent{Stage: events.StageSnapshotCached, Ticker: ticker,
		Detail: map[string]string{
			"ttl":                 ttl.String(),
			"invalidate_on_close": strconv.FormatBool(invalidate),
		}})
	e.persist(ctx, key, snapshot, ttl, invalidate)

	staleCount := len(snapshot.StaleFields())
	e.emit(ctx, events.TraceEvent{Stage: events.StageRequestCompleted, Ticker: ticker,
		Detail: map[string]string{
			"fields_resolved": strconv.Itoa(len(snapshot.Fields)),
			"stale_fields":    strconv.Itoa(staleCount),
			"source_failures": strconv.Itoa(len(failures)),
		}})
	e.logger.Info("snapshot assembled",
		slog.String("ticker", ticker),
		slog.String("market_status", string(snapshotStatus)),
		slog.Int("fields_requested", len(fields)),
		slog.Int("fields_resolved", len(snapshot.Fields)),
		slog.Int("stale_fields", staleCount),
		slog.Int("source_failures", len(failures)),
		slog.Duration("duration", e.now().Sub(start)))

	return &Result{
		Snapshot:    snapshot,
		Validations: validations,
		Failures:    failures,
		Alerts:      alerts,
	}, nil
}

// sourceAnswer is one adapter's verdict, held at the adapter's registry index
// so the merge can respect priority order regardless of completion order.
type sourceAnswer struct {
	source domain.SourceID
	fields map[domain.Field]domain.FieldValue
	err    *adapters.Error
}

// fanOut queries every adapter concurrently. Failures are recorded in the
// answer slots, never propagated; one slow or broken source must not take
// the others down with it.
func (e *Engine) fanOut(ctx context.Context, ticker string, fields []domain.Field) []sourceAnswer {
	if len(fields) == 0 || e.registry == nil || e.registry.Len() == 0 {
		return nil
	}

	list := e.registry.Adapters()
	answers := make([]sourceAnswer, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range list {
		g.Go(func() error {
			answers[i].source = a.Source()
			got, err := a.Fetch(gctx, ticker, fields)
			if err != nil {
				answers[i].err = adapters.Classify(a.Source(), err)
				return nil
			}
			answers[i].fields = got
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures ride in the slots
	return answers
}

// loadLastKnown fetches the archived observations for a ticker. Lookup
// failures degrade to "nothing known". The archive is a fallback, not a
// dependency.
func (e *Engine) loadLastKnown(ctx context.Context, ticker string) map[domain.Field]domain.FieldValue {
	if e.lastKnown == nil {
		return nil
	}
	known, err := e.lastKnown.LastKnown(ctx, ticker)
	if err != nil {
		e.logger.Warn("last-known lookup failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()))
		return nil
	}
	return known
}

// persist writes the snapshot through to the warm-start store and refreshes
// the last-known archive with the freshly observed values. Stale values never
// re-enter the archive; they would overwrite their own provenance. Both
// writes are best-effort: a storage failure degrades future restarts, not
// this response.
func (e *Engine) persist(ctx context.Context, key string, snapshot *domain.Snapshot, ttl time.Duration, invalidateOnClose bool) {
	if e.saver != nil {
		entry := cache.Entry{
			Key:               key,
			Snapshot:          snapshot,
			CreatedAt:         snapshot.AsOf,
			TTL:               ttl,
			InvalidateOnClose: invalidateOnClose,
		}
		if err := e.saver.SaveEntry(ctx, entry); err != nil {
			e.logger.Warn("snapshot persistence failed",
				slog.String("ticker", snapshot.Ticker),
				slog.String("error", err.Error()))
		}
	}

	if e.lastKnown == nil {
		return
	}
	fresh := make(map[domain.Field]domain.FieldValue, len(snapshot.Fields))
	for f, fv := range snapshot.Fields {
		if !fv.IsStale {
			fresh[f] = fv
		}
	}
	if len(fresh) == 0 {
		return
	}
	if err := e.lastKnown.SaveLastKnown(ctx, snapshot.Ticker, fresh); err != nil {
		e.logger.Warn("last-known archive update failed",
			slog.String("ticker", snapshot.Ticker),
			slog.String("error", err.Error()))
	}
}

// snapshotTTL applies the volatility policy, then tightens it with any
// per-source cache TTL hints from the sources that won at least one field.
func (e *Engine) snapshotTTL(snapshot *domain.Snapshot, winners map[domain.SourceID]struct{}) time.Duration {
	ttl := e.ttl.For(snapshot)
	for src := range winners {
		if hint, ok := e.ttlHints[src]; ok && hint > 0 && hint < ttl {
			ttl = hint
		}
	}
	return ttl
}

// emit stamps and forwards a trace event. Sinks are fire-and-forget.
func (e *Engine) emit(ctx context.Context, ev events.TraceEvent) {
	ev.Timestamp = e.now()
	if ev.TraceID == "" {
		ev.TraceID = events.TraceIDFrom(ctx)
	}
	e.sink.Emit(ctx, ev)
}

// divergenceAlert describes an error-grade cross-source disagreement.
func divergenceAlert(field domain.Field, v domain.ValidationResult, pair config.ThresholdPair) domain.Alert {
	return domain.Alert{
		Metric:    "source_divergence_" + string(field),
		Value:     v.RelativeDifference,
		Threshold: pair.Error,
		Severity:  domain.SeverityError,
		Message: fmt.Sprintf("sources %s disagree on %s by %.2f%%",
			joinSources(v.SourcesCompared), field, v.RelativeDifference*100),
	}
}

// missingFields lists the requested fields the snapshot does not carry yet.
func missingFields(snapshot *domain.Snapshot, requested []domain.Field) []domain.Field {
	var missing []domain.Field
	for _, f := range requested {
		if !snapshot.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func joinFields(fields []domain.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

func joinSources(sources []domain.SourceID) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}
