package cache

import (
	"time"

	"etfcli/pkg/contracts/domain"
)

// TTLPolicy chooses how long a snapshot may be served from cache. Live quotes
// go stale in seconds; fund facts barely move in a day. A snapshot gets the
// TTL of its most volatile field.
type TTLPolicy struct {
	// Quote applies when the snapshot carries any live-quote field.
	Quote time.Duration
	// Fact applies when the snapshot carries fund facts only.
	Fact time.Duration
	// Default applies to snapshots with no recognized fields at all.
	Default time.Duration
}

// DefaultTTLPolicy mirrors the volatility of the field classes: quotes for a
// minute, fund facts for a day.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Quote:   time.Minute,
		Fact:    24 * time.Hour,
		Default: 15 * time.Minute,
	}
}

// For picks the TTL for a snapshot.
func (p TTLPolicy) For(snapshot *domain.Snapshot) time.Duration {
	if snapshot == nil || snapshot.IsEmpty() {
		return p.Default
	}
	if snapshot.HasLiveQuotes() {
		return p.Quote
	}
	return p.Fact
}

// InvalidateOnClose reports whether the snapshot must be dropped at the next
// market close. True exactly when it carries live quotes; fund facts survive
// the close.
func (p TTLPolicy) InvalidateOnClose(snapshot *domain.Snapshot) bool {
	return snapshot != nil && snapshot.HasLiveQuotes()
}
