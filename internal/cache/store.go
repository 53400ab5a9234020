// Package cache is the in-memory snapshot store. Entries carry a TTL and an
// invalidate-on-close flag; expired or close-invalidated entries are absent
// on Get and evicted then. The store knows nothing about where snapshots come
// from; refresh is the caller's responsibility.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"etfcli/pkg/contracts/domain"
)

// Entry is a stored snapshot with its expiry metadata.
type Entry struct {
	Key               string
	Snapshot          *domain.Snapshot
	CreatedAt         time.Time
	TTL               time.Duration
	InvalidateOnClose bool
}

// ExpiresAt returns the instant the entry's TTL runs out.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// IsExpired reports whether the TTL has run out at now. The boundary instant
// counts as expired.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Store holds snapshots behind a mutex-guarded map. Entries are immutable
// values; racing Puts on one key resolve last-writer-wins. When the store is
// full the least recently used entry is evicted. Get takes the write lock
// because a lookup may evict and always touches the LRU bookkeeping.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	access  map[string]time.Time

	maxEntries int
	// lastClose answers when the market last closed; nil disables the lazy
	// close-invalidity check and leaves only the explicit trigger.
	lastClose func(time.Time) time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// Options configures a Store.
type Options struct {
	// MaxEntries bounds the map; 0 falls back to a sane default.
	MaxEntries int
	// LastClose supplies the most recent market close for lazy
	// close-invalidation on Get. Optional.
	LastClose func(time.Time) time.Time
	// Now overrides the clock, for tests.
	Now    func() time.Time
	Logger *slog.Logger
}

const defaultMaxEntries = 10_000

// New creates an empty snapshot store.
func New(opts Options) *Store {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		entries:    make(map[string]*Entry),
		access:     make(map[string]time.Time),
		maxEntries: maxEntries,
		lastClose:  opts.LastClose,
		now:        now,
		logger:     logger.With(slog.String("component", "snapshot_cache")),
	}
}

// Get returns the cached snapshot for key. An expired or close-invalidated
// entry is absent and evicted on the spot, with no implicit refresh.
func (s *Store) Get(key string) (*domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	now := s.now()
	if !s.validLocked(entry, now) {
		delete(s.entries, key)
		delete(s.access, key)
		return nil, false
	}

	s.access[key] = now
	return entry.Snapshot, true
}

// Put stores a snapshot under key. An existing entry is replaced whole.
func (s *Store) Put(key string, snapshot *domain.Snapshot, ttl time.Duration, invalidateOnClose bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	now := s.now()
	s.entries[key] = &Entry{
		Key:               key,
		Snapshot:          snapshot,
		CreatedAt:         now,
		TTL:               ttl,
		InvalidateOnClose: invalidateOnClose,
	}
	s.access[key] = now
}

// InvalidateMarketClose removes every entry flagged invalidate-on-close and
// returns how many were dropped. Called when the market close trigger fires.
func (s *Store) InvalidateMarketClose() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, entry := range s.entries {
		if entry.InvalidateOnClose {
			delete(s.entries, key)
			delete(s.access, key)
			dropped++
		}
	}

	if dropped > 0 {
		s.logger.Info("market close invalidation",
			slog.Int("entries_dropped", dropped),
			slog.Int("entries_remaining", len(s.entries)))
	}
	return dropped
}

// Sweep evicts every entry that is no longer valid and returns the count.
// Complements the lazy eviction in Get for keys nobody asks for again.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for key, entry := range s.entries {
		if !s.validLocked(entry, now) {
			delete(s.entries, key)
			delete(s.access, key)
			dropped++
		}
	}

	if dropped > 0 {
		s.logger.Debug("cache sweep",
			slog.Int("entries_dropped", dropped),
			slog.Int("entries_remaining", len(s.entries)))
	}
	return dropped
}

// Restore inserts persisted entries that are still valid, preserving their
// original creation times. Returns how many entries were accepted. Used for
// warm starts; invalid entries are skipped, not errors.
func (s *Store) Restore(entries []Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	accepted := 0
	for i := range entries {
		entry := entries[i]
		if !s.validLocked(&entry, now) {
			continue
		}
		if _, exists := s.entries[entry.Key]; !exists && len(s.entries) >= s.maxEntries {
			s.evictOldestLocked()
		}
		s.entries[entry.Key] = &entry
		s.access[entry.Key] = now
		accepted++
	}
	return accepted
}

// Len reports how many entries the store currently holds, valid or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// validLocked applies the two invalidation rules: TTL expiry, and a market
// close after creation for entries flagged invalidate-on-close.
func (s *Store) validLocked(entry *Entry, now time.Time) bool {
	if entry.IsExpired(now) {
		return false
	}
	if entry.InvalidateOnClose && s.lastClose != nil {
		if lc := s.lastClose(now); lc.After(entry.CreatedAt) {
			return false
		}
	}
	return true
}

// evictOldestLocked drops the least recently used entry to make room.
func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, at := range s.access {
		if first || at.Before(oldestAt) {
			oldestKey = key
			oldestAt = at
			first = false
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
		delete(s.access, oldestKey)
	}
}
