package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfcli/internal/adapters"
	"etfcli/internal/cache"
	"etfcli/internal/config"
	apperrors "etfcli/internal/errors"
	"etfcli/internal/marketclock"
	"etfcli/internal/shared/testutil"
	"etfcli/internal/storage"
	"etfcli/pkg/contracts/domain"
	"etfcli/pkg/contracts/events"
)

type fakeClock struct {
	status     domain.MarketStatus
	confidence marketclock.Confidence
}

func (f *fakeClock) Status(time.Time) (domain.MarketStatus, marketclock.Confidence) {
	conf := f.confidence
	if conf == "" {
		conf = marketclock.ConfidenceExact
	}
	return f.status, conf
}

type captureSink struct {
	mu     sync.Mutex
	events []events.TraceEvent
}

func (c *captureSink) Emit(_ context.Context, ev events.TraceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) stages() []events.TraceStage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.TraceStage, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Stage
	}
	return out
}

func (c *captureSink) count(stage events.TraceStage) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Stage == stage {
			n++
		}
	}
	return n
}

type entrySpy struct {
	entries []cache.Entry
}

func (s *entrySpy) SaveEntry(_ context.Context, entry cache.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type engineFixture struct {
	engine *Engine
	cache  *cache.Store
	known  *storage.Memory
	clock  *fakeClock
	sink   *captureSink
	saver  *entrySpy
	now    time.Time
}

// newFixture wires an engine against in-memory collaborators. mutate may
// adjust the options before construction.
func newFixture(t *testing.T, registry *adapters.Registry, mutate func(*Options)) *engineFixture {
	t.Helper()

	logger, _ := testutil.NewTestLogger(t)
	fix := &engineFixture{
		clock: &fakeClock{status: domain.MarketOpen},
		sink:  &captureSink{},
		known: storage.NewMemory(),
		saver: &entrySpy{},
		// A Monday afternoon, mid-session in New York.
		now: time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC),
	}
	fix.cache = cache.New(cache.Options{
		Now:    func() time.Time { return fix.now },
		Logger: logger,
	})

	opts := Options{
		Registry:   registry,
		Clock:      fix.clock,
		Cache:      fix.cache,
		LastKnown:  fix.known,
		Saver:      fix.saver,
		Thresholds: config.Default().Validation,
		Sink:       fix.sink,
		Logger:     logger,
		Now:        func() time.Time { return fix.now },
	}
	if mutate != nil {
		mutate(&opts)
	}
	fix.engine = New(opts)
	return fix
}

func fv(value float64, source string, at time.Time) domain.FieldValue {
	return domain.FieldValue{Value: value, Source: domain.SourceID(source), ObservedAt: at}
}

func TestEngine_GetSnapshot_SingleSource(t *testing.T) {
	observed := time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", observed),
			domain.FieldAsk: fv(100.02, "quotefeed", observed),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldAsk})
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)

	assert.False(t, res.CacheHit)
	assert.Equal(t, "VTI", res.Snapshot.Ticker)
	assert.Equal(t, domain.MarketOpen, res.Snapshot.MarketStatus)
	assert.True(t, res.Snapshot.AsOf.Equal(fix.now))

	bid, ok := res.Snapshot.Get(domain.FieldBid)
	require.True(t, ok)
	assert.Equal(t, 100.00, bid.Value)
	assert.Equal(t, domain.SourceID("quotefeed"), bid.Source)
	assert.True(t, bid.ObservedAt.Equal(observed))
	assert.False(t, bid.IsStale)

	assert.Empty(t, res.Validations, "a single reporter has nothing to compare against")
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 1, feed.CallCount())

	// Field set is normalized, so the per-field stages arrive in sorted order.
	assert.Equal(t, []events.TraceStage{
		events.StageRequestStarted,
		events.StageCacheMiss,
		events.StageSourceFetch,
		events.StageFieldResolved, // ask
		events.StageFieldResolved, // bid
		events.StageSnapshotCached,
		events.StageRequestCompleted,
	}, fix.sink.stages())
}

func TestEngine_GetSnapshot_PrioritySourceWins(t *testing.T) {
	at := time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)
	primary := &adapters.Scripted{ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{domain.FieldBid: fv(100.00, "quotefeed", at)}}
	secondary := &adapters.Scripted{ID: "fundfacts",
		Fields: map[domain.Field]domain.FieldValue{domain.FieldBid: fv(100.05, "fundfacts", at)}}
	fix := newFixture(t, adapters.NewRegistry(primary, secondary), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)

	bid, ok := res.Snapshot.Get(domain.FieldBid)
	require.True(t, ok)
	assert.Equal(t, 100.00, bid.Value, "priority order is the tie-break")
	assert.Equal(t, domain.SourceID("quotefeed"), bid.Source)

	require.Len(t, res.Validations, 1)
	v := res.Validations[0]
	assert.Equal(t, domain.FieldBid, v.Field)
	assert.Equal(t, []domain.SourceID{"quotefeed", "fundfacts"}, v.SourcesCompared)
	assert.InDelta(t, 0.05/100.05, v.RelativeDifference, 1e-12)
	assert.Equal(t, domain.SeverityOK, v.Severity, "five cents on a hundred dollars is within tolerance")
	assert.Empty(t, res.Alerts)
}

func TestEngine_GetSnapshot_SeverityAnnotations(t *testing.T) {
	at := time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)
	primary := &adapters.Scripted{ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", at),
			domain.FieldAsk: fv(100.00, "quotefeed", at),
		}}
	secondary := &adapters.Scripted{ID: "fundfacts",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.50, "fundfacts", at), // ~0.5% off: warning
			domain.FieldAsk: fv(102.00, "fundfacts", at), // ~2% off: error
		}}
	fix := newFixture(t, adapters.NewRegistry(primary, secondary), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldAsk})
	require.NoError(t, err)

	byField := make(map[domain.Field]domain.ValidationResult)
	for _, v := range res.Validations {
		byField[v.Field] = v
	}
	assert.Equal(t, domain.SeverityWarning, byField[domain.FieldBid].Severity)
	assert.Equal(t, domain.SeverityError, byField[domain.FieldAsk].Severity)

	// Disagreement annotates, it never displaces the priority value.
	ask, _ := res.Snapshot.Get(domain.FieldAsk)
	assert.Equal(t, 100.00, ask.Value)

	require.Len(t, res.Alerts, 1, "only error-grade divergence raises an alert")
	alert := res.Alerts[0]
	assert.Equal(t, "source_divergence_ask", alert.Metric)
	assert.Equal(t, domain.SeverityError, alert.Severity)
	assert.InDelta(t, 2.0/102.0, alert.Value, 1e-12)
	assert.Equal(t, config.Default().Validation.Default.Error, alert.Threshold)
	assert.Contains(t, alert.Message, "ask")

	assert.Equal(t, 1, fix.sink.count(events.StageAlert))
	assert.Equal(t, 2, fix.sink.count(events.StageValidation))
}

func TestEngine_GetSnapshot_PerFieldThresholds(t *testing.T) {
	at := time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)
	// Identical ~4.76% divergence on both fields: inside the wide AUM
	// tolerance, far past the default error threshold.
	primary := &adapters.Scripted{ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldAssets:    fv(5_000_000_000, "quotefeed", at),
			domain.FieldLastPrice: fv(100.00, "quotefeed", at),
		}}
	secondary := &adapters.Scripted{ID: "fundfacts",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldAssets:    fv(5_250_000_000, "fundfacts", at),
			domain.FieldLastPrice: fv(105.00, "fundfacts", at),
		}}
	fix := newFixture(t, adapters.NewRegistry(primary, secondary), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "SPY",
		[]domain.Field{domain.FieldAssets, domain.FieldLastPrice})
	require.NoError(t, err)

	byField := make(map[domain.Field]domain.ValidationResult)
	for _, v := range res.Validations {
		byField[v.Field] = v
	}
	require.Len(t, byField, 2)
	assert.InDelta(t, byField[domain.FieldAssets].RelativeDifference,
		byField[domain.FieldLastPrice].RelativeDifference, 1e-12)
	assert.Equal(t, domain.SeverityOK, byField[domain.FieldAssets].Severity)
	assert.Equal(t, domain.SeverityError, byField[domain.FieldLastPrice].Severity)
}

func TestEngine_GetSnapshot_CacheIdempotence(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	first, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)
	second, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Same(t, first.Snapshot, second.Snapshot,
		"within TTL the cached snapshot is returned as-is: same provenance, same as_of")
	assert.Equal(t, 1, feed.CallCount(), "the second request must not touch any source")
	assert.Equal(t, 1, fix.sink.count(events.StageCacheHit))
	assert.Equal(t, 1, fix.sink.count(events.StageCacheMiss))
}

func TestEngine_GetSnapshot_MarketClosedServesLastKnown(t *testing.T) {
	priorClose := time.Date(2025, 6, 13, 20, 0, 0, 0, time.UTC) // Friday 16:00 New York
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid:          fv(101.00, "quotefeed", time.Now()),
			domain.FieldAsk:          fv(101.02, "quotefeed", time.Now()),
			domain.FieldExpenseRatio: fv(0.0003, "quotefeed", time.Now()),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)
	fix.clock.status = domain.MarketClosed

	require.NoError(t, fix.known.SaveLastKnown(context.Background(), "VTI",
		map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", priorClose),
			domain.FieldAsk: fv(100.02, "quotefeed", priorClose),
		}))

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldAsk, domain.FieldExpenseRatio})
	require.NoError(t, err)

	assert.Equal(t, domain.MarketClosed, res.Snapshot.MarketStatus)

	bid, ok := res.Snapshot.Get(domain.FieldBid)
	require.True(t, ok)
	assert.True(t, bid.IsStale, "a quote served while closed is flagged, never passed off as live")
	assert.Equal(t, 100.00, bid.Value, "the value is the last known one, not the adapter's")
	assert.Equal(t, domain.SourceID("quotefeed"), bid.Source)
	assert.True(t, bid.ObservedAt.Equal(priorClose), "provenance keeps the original observation time")

	ratio, ok := res.Snapshot.Get(domain.FieldExpenseRatio)
	require.True(t, ok)
	assert.False(t, ratio.IsStale, "fund facts are still fetched live while closed")
	assert.Equal(t, 0.0003, ratio.Value)

	require.Len(t, feed.Calls(), 1)
	assert.Equal(t, []domain.Field{domain.FieldExpenseRatio}, feed.Calls()[0].Fields,
		"live-quote fields are never requested from a source while the market is closed")
	assert.Equal(t, 2, fix.sink.count(events.StageStaleFallback))
	assert.Equal(t, []domain.Field{domain.FieldAsk, domain.FieldBid}, res.Snapshot.StaleFields())
}

func TestEngine_GetSnapshot_ClosedMarketSkipsLiveFetchEntirely(t *testing.T) {
	priorClose := time.Date(2025, 6, 13, 20, 0, 0, 0, time.UTC)
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(101.00, "quotefeed", time.Now()),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)
	fix.clock.status = domain.MarketClosed

	require.NoError(t, fix.known.SaveLastKnown(context.Background(), "QQQ",
		map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(99.50, "quotefeed", priorClose),
		}))

	res, err := fix.engine.GetSnapshot(context.Background(), "QQQ", []domain.Field{domain.FieldBid})
	require.NoError(t, err)

	assert.Equal(t, 0, feed.CallCount(), "an all-live request while closed needs no source at all")
	bid, ok := res.Snapshot.Get(domain.FieldBid)
	require.True(t, ok)
	assert.True(t, bid.IsStale)
	assert.Equal(t, 99.50, bid.Value)
}

func TestEngine_GetSnapshot_OutageFallsBackToLastKnown(t *testing.T) {
	observed := time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)
	primary := &adapters.Scripted{ID: "quotefeed",
		Err: adapters.NewError("quotefeed", adapters.KindTimeout, errors.New("deadline exceeded"))}
	secondary := &adapters.Scripted{ID: "fundfacts",
		Err: adapters.NewError("fundfacts", adapters.KindNetwork, errors.New("connection refused"))}
	fix := newFixture(t, adapters.NewRegistry(primary, secondary), nil)

	require.NoError(t, fix.known.SaveLastKnown(context.Background(), "VTI",
		map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(99.75, "quotefeed", observed),
		}))

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err, "a total outage degrades, it does not fail")

	bid, ok := res.Snapshot.Get(domain.FieldBid)
	require.True(t, ok)
	assert.True(t, bid.IsStale)
	assert.Equal(t, 99.75, bid.Value)

	require.Len(t, res.Failures, 2, "every source failure is recorded, in priority order")
	assert.Equal(t, domain.SourceID("quotefeed"), res.Failures[0].Source)
	assert.Equal(t, string(adapters.KindTimeout), res.Failures[0].Kind)
	assert.Equal(t, domain.SourceID("fundfacts"), res.Failures[1].Source)
	assert.Equal(t, string(adapters.KindNetwork), res.Failures[1].Kind)

	assert.Equal(t, 2, fix.sink.count(events.StageSourceFailed))
	assert.Equal(t, 1, fix.sink.count(events.StageStaleFallback))
}

func TestEngine_GetSnapshot_NoDataAvailable(t *testing.T) {
	primary := &adapters.Scripted{ID: "quotefeed",
		Err: adapters.NewError("quotefeed", adapters.KindNotFound, nil)}
	secondary := &adapters.Scripted{ID: "fundfacts",
		Err: adapters.NewError("fundfacts", adapters.KindNotFound, nil)}
	fix := newFixture(t, adapters.NewRegistry(primary, secondary), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "GONE",
		[]domain.Field{domain.FieldBid, domain.FieldAsk})
	require.Error(t, err)
	assert.Nil(t, res)

	assert.True(t, errors.Is(err, apperrors.ErrNoData))
	var noData *apperrors.NoDataAvailableError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, "GONE", noData.Ticker)
	assert.Len(t, noData.Failures, 2)
	assert.Equal(t, 1, fix.sink.count(events.StageNoData))
}

func TestEngine_GetSnapshot_MissingFieldStaysAbsent(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldAssets})
	require.NoError(t, err, "one missing field never fails a request with usable data")

	assert.True(t, res.Snapshot.Has(domain.FieldBid))
	assert.False(t, res.Snapshot.Has(domain.FieldAssets),
		"a field nobody can supply is absent, never zero-filled")
	value, ok := res.Snapshot.Value(domain.FieldAssets)
	assert.False(t, ok)
	assert.Zero(t, value)
	assert.Equal(t, 1, fix.sink.count(events.StageFieldAbsent))
}

func TestEngine_GetSnapshot_EveryFieldGetsExactlyOneOutcome(t *testing.T) {
	observed := time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", observed),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)
	require.NoError(t, fix.known.SaveLastKnown(context.Background(), "VTI",
		map[domain.Field]domain.FieldValue{
			domain.FieldAssets: fv(5_000_000_000, "fundfacts", observed),
		}))

	_, err := fix.engine.GetSnapshot(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldAssets, domain.FieldExpenseRatio})
	require.NoError(t, err)

	assert.Equal(t, 1, fix.sink.count(events.StageFieldResolved))
	assert.Equal(t, 1, fix.sink.count(events.StageStaleFallback))
	assert.Equal(t, 1, fix.sink.count(events.StageFieldAbsent))
}

func TestEngine_GetSnapshot_ArchivesFreshValuesOnly(t *testing.T) {
	priorClose := time.Date(2025, 6, 13, 20, 0, 0, 0, time.UTC)
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldExpenseRatio: fv(0.0003, "quotefeed", time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)
	fix.clock.status = domain.MarketClosed

	require.NoError(t, fix.known.SaveLastKnown(context.Background(), "VTI",
		map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", priorClose),
		}))

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI",
		[]domain.Field{domain.FieldBid, domain.FieldExpenseRatio})
	require.NoError(t, err)

	known, lerr := fix.known.LastKnown(context.Background(), "VTI")
	require.NoError(t, lerr)

	ratio, ok := known[domain.FieldExpenseRatio]
	require.True(t, ok, "freshly observed values refresh the archive")
	assert.Equal(t, 0.0003, ratio.Value)
	assert.False(t, ratio.IsStale)

	bid, ok := known[domain.FieldBid]
	require.True(t, ok)
	assert.False(t, bid.IsStale, "a stale substitution must never be archived back over itself")
	assert.True(t, bid.ObservedAt.Equal(priorClose))

	// The warm-start store got the cached entry with its metadata.
	require.Len(t, fix.saver.entries, 1)
	entry := fix.saver.entries[0]
	assert.Equal(t, cache.Key("VTI", []domain.Field{domain.FieldBid, domain.FieldExpenseRatio}), entry.Key)
	assert.True(t, entry.CreatedAt.Equal(fix.now))
	assert.True(t, entry.InvalidateOnClose, "the snapshot carries a (stale) live quote")
	assert.Same(t, res.Snapshot, entry.Snapshot)
}

func TestEngine_GetSnapshot_SourceTTLHintTightensCacheTTL(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}

	t.Run("tighter hint wins", func(t *testing.T) {
		fix := newFixture(t, adapters.NewRegistry(feed), func(opts *Options) {
			opts.TTLHints = map[domain.SourceID]time.Duration{"quotefeed": 10 * time.Second}
		})

		_, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
		require.NoError(t, err)
		require.Len(t, fix.saver.entries, 1)
		assert.Equal(t, 10*time.Second, fix.saver.entries[0].TTL)
	})

	t.Run("looser hint is ignored", func(t *testing.T) {
		fix := newFixture(t, adapters.NewRegistry(feed), func(opts *Options) {
			opts.TTLHints = map[domain.SourceID]time.Duration{"quotefeed": 5 * time.Minute}
		})

		_, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
		require.NoError(t, err)
		require.Len(t, fix.saver.entries, 1)
		assert.Equal(t, cache.DefaultTTLPolicy().Quote, fix.saver.entries[0].TTL,
			"hints only ever tighten the volatility policy")
	})
}

func TestEngine_GetSnapshot_UnknownCalendarConfidence(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)
	fix.clock.confidence = marketclock.ConfidenceUnknown

	res, err := fix.engine.GetSnapshot(context.Background(), "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)

	assert.Equal(t, domain.MarketUnknown, res.Snapshot.MarketStatus,
		"without a calendar the session answer is honest about its confidence")
	assert.Equal(t, 1, feed.CallCount(), "the weekday answer still drives fetching")
	bid, _ := res.Snapshot.Get(domain.FieldBid)
	assert.False(t, bid.IsStale)
}

func TestEngine_GetSnapshot_NormalizesTickerAndFieldSet(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
			domain.FieldAsk: fv(100.02, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "  vti ",
		[]domain.Field{domain.FieldBid, domain.FieldBid, domain.FieldAsk})
	require.NoError(t, err)

	assert.Equal(t, "VTI", res.Snapshot.Ticker)
	require.Len(t, feed.Calls(), 1)
	assert.Equal(t, "VTI", feed.Calls()[0].Ticker)
	assert.Equal(t, []domain.Field{domain.FieldAsk, domain.FieldBid}, feed.Calls()[0].Fields,
		"duplicates collapse and the set is sorted before any source sees it")
}

func TestEngine_GetSnapshot_EmptyFieldSetRequestsAllKnown(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	_, err := fix.engine.GetSnapshot(context.Background(), "VTI", nil)
	require.NoError(t, err)

	require.Len(t, feed.Calls(), 1)
	assert.Equal(t, domain.NormalizeFieldSet(nil), feed.Calls()[0].Fields)
	assert.Len(t, feed.Calls()[0].Fields, len(domain.KnownFields()))
}

func TestEngine_GetSnapshot_EmptyTickerRejected(t *testing.T) {
	fix := newFixture(t, adapters.NewRegistry(), nil)

	res, err := fix.engine.GetSnapshot(context.Background(), "   ", []domain.Field{domain.FieldBid})
	require.Error(t, err)
	assert.Nil(t, res)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
}

func TestEngine_GetSnapshot_ContextCanceled(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := fix.engine.GetSnapshot(ctx, "VTI", []domain.Field{domain.FieldBid})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_GetSnapshot_StampsTraceID(t *testing.T) {
	feed := &adapters.Scripted{
		ID: "quotefeed",
		Fields: map[domain.Field]domain.FieldValue{
			domain.FieldBid: fv(100.00, "quotefeed", time.Date(2025, 6, 16, 14, 59, 0, 0, time.UTC)),
		},
	}
	fix := newFixture(t, adapters.NewRegistry(feed), nil)

	ctx := events.WithTraceID(context.Background(), "req-42")
	_, err := fix.engine.GetSnapshot(ctx, "VTI", []domain.Field{domain.FieldBid})
	require.NoError(t, err)

	fix.sink.mu.Lock()
	defer fix.sink.mu.Unlock()
	require.NotEmpty(t, fix.sink.events)
	for _, ev := range fix.sink.events {
		assert.Equal(t, "req-42", ev.TraceID)
		assert.True(t, ev.Timestamp.Equal(fix.now))
	}
}

func TestTTLHints(t *testing.T) {
	sources := []config.SourceConfig{
		{Name: "quotefeed", CacheTTL: 45 * time.Second},
		{Name: "fundfacts"},
	}

	hints := TTLHints(sources)

	assert.Equal(t, map[domain.SourceID]time.Duration{"quotefeed": 45 * time.Second}, hints)
}
