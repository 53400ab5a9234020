package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfcli/internal/cache"
	"etfcli/internal/shared/testutil"
	"etfcli/pkg/contracts/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	store, err := New(filepath.Join(t.TempDir(), "snapshots.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew_CreatesDirectory(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "nested", "dir", "snapshots.db")

	store, err := New(path, logger)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, path)
}

func TestSaveEntry_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	entry := cache.Entry{
		Key:               cache.Key("VTI", domain.KnownFields()),
		Snapshot:          fx.FullSnapshot("VTI", "marketfeed"),
		CreatedAt:         fx.Now,
		TTL:               time.Minute,
		InvalidateOnClose: true,
	}
	require.NoError(t, store.SaveEntry(ctx, entry))

	loaded, err := store.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, time.Minute, got.TTL)
	assert.True(t, got.InvalidateOnClose)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "VTI", got.Snapshot.Ticker)
	assert.Equal(t, domain.MarketOpen, got.Snapshot.MarketStatus)

	bid, ok := got.Snapshot.Get(domain.FieldBid)
	require.True(t, ok)
	assert.Equal(t, 100.00, bid.Value)
	assert.Equal(t, domain.SourceID("marketfeed"), bid.Source)
}

func TestSaveEntry_Upsert(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	key := cache.Key("VTI", domain.KnownFields())
	first := cache.Entry{Key: key, Snapshot: fx.FullSnapshot("VTI", "marketfeed"), CreatedAt: fx.Now, TTL: time.Minute}
	require.NoError(t, store.SaveEntry(ctx, first))

	second := first
	second.Snapshot = fx.FullSnapshot("VTI", "etfcom")
	second.CreatedAt = fx.Now.Add(time.Minute)
	second.TTL = time.Hour
	require.NoError(t, store.SaveEntry(ctx, second))

	loaded, err := store.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1, "same key must overwrite, not duplicate")
	assert.Equal(t, time.Hour, loaded[0].TTL)
	assert.Equal(t, domain.SourceID("etfcom"), loaded[0].Snapshot.Fields[domain.FieldBid].Source)
}

func TestLoadEntries_Empty(t *testing.T) {
	store := setupTestStore(t)

	loaded, err := store.LoadEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestPruneEntries(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	old := cache.Entry{
		Key:       "VTI:old",
		Snapshot:  fx.FullSnapshot("VTI", "marketfeed"),
		CreatedAt: fx.Now.Add(-48 * time.Hour),
		TTL:       time.Minute,
	}
	fresh := cache.Entry{
		Key:       "VTI:fresh",
		Snapshot:  fx.FullSnapshot("VTI", "marketfeed"),
		CreatedAt: fx.Now,
		TTL:       time.Minute,
	}
	require.NoError(t, store.SaveEntry(ctx, old))
	require.NoError(t, store.SaveEntry(ctx, fresh))

	pruned, err := store.PruneEntries(ctx, fx.Now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	loaded, err := store.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "VTI:fresh", loaded[0].Key)
}

func TestLastKnown_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	require.NoError(t, store.SaveLastKnown(ctx, "VTI", fx.AllFields("marketfeed")))

	fields, err := store.LastKnown(ctx, "VTI")
	require.NoError(t, err)
	require.Len(t, fields, 7)
	assert.Equal(t, 100.00, fields[domain.FieldBid].Value)
	assert.Equal(t, 0.0003, fields[domain.FieldExpenseRatio].Value)
	assert.Equal(t, domain.SourceID("marketfeed"), fields[domain.FieldIIV].Source)
	assert.True(t, fx.Now.Equal(fields[domain.FieldBid].ObservedAt))
}

func TestLastKnown_UnknownTicker(t *testing.T) {
	store := setupTestStore(t)

	fields, err := store.LastKnown(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, fields, "no history is an empty map, not an error")
}

func TestLastKnown_UpsertsPerField(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	require.NoError(t, store.SaveLastKnown(ctx, "VTI", map[domain.Field]domain.FieldValue{
		domain.FieldBid: fx.FieldValue(100.00, "marketfeed"),
		domain.FieldAsk: fx.FieldValue(100.02, "marketfeed"),
	}))

	// A later save replaces bid but leaves ask untouched.
	later := domain.FieldValue{Value: 101.50, Source: "etfcom", ObservedAt: fx.Now.Add(time.Hour)}
	require.NoError(t, store.SaveLastKnown(ctx, "VTI", map[domain.Field]domain.FieldValue{
		domain.FieldBid: later,
	}))

	fields, err := store.LastKnown(ctx, "VTI")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, 101.50, fields[domain.FieldBid].Value)
	assert.Equal(t, domain.SourceID("etfcom"), fields[domain.FieldBid].Source)
	assert.Equal(t, 100.02, fields[domain.FieldAsk].Value)
	assert.Equal(t, domain.SourceID("marketfeed"), fields[domain.FieldAsk].Source)
}

func TestLastKnown_TickerCaseInsensitive(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	require.NoError(t, store.SaveLastKnown(ctx, "vti", fx.QuoteFields("marketfeed")))

	fields, err := store.LastKnown(ctx, "VTI")
	require.NoError(t, err)
	assert.Len(t, fields, 4)
}

func TestLastKnown_TickersIsolated(t *testing.T) {
	store := setupTestStore(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()

	require.NoError(t, store.SaveLastKnown(ctx, "VTI", fx.QuoteFields("marketfeed")))
	require.NoError(t, store.SaveLastKnown(ctx, "SPY", fx.FundFields("issuersite")))

	vti, err := store.LastKnown(ctx, "VTI")
	require.NoError(t, err)
	spy, err := store.LastKnown(ctx, "SPY")
	require.NoError(t, err)

	assert.Len(t, vti, 4)
	assert.Len(t, spy, 3)
	assert.NotContains(t, vti, domain.FieldAssets)
	assert.NotContains(t, spy, domain.FieldBid)
}

func TestStore_SurvivesReopen(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	fx := testutil.NewMarketFixtures()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	store, err := New(path, logger)
	require.NoError(t, err)
	require.NoError(t, store.SaveLastKnown(ctx, "VTI", fx.AllFields("marketfeed")))
	require.NoError(t, store.SaveEntry(ctx, cache.Entry{
		Key:       "VTI:k",
		Snapshot:  fx.FullSnapshot("VTI", "marketfeed"),
		CreatedAt: fx.Now,
		TTL:       time.Hour,
	}))
	require.NoError(t, store.Close())

	reopened, err := New(path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	fields, err := reopened.LastKnown(ctx, "VTI")
	require.NoError(t, err)
	assert.Len(t, fields, 7)

	entries, err := reopened.LoadEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
