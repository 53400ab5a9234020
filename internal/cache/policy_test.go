package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"etfcli/internal/shared/testutil"
	"etfcli/pkg/contracts/domain"
)

func TestTTLPolicy_For(t *testing.T) {
	fx := testutil.NewMarketFixtures()
	policy := TTLPolicy{
		Quote:   30 * time.Second,
		Fact:    12 * time.Hour,
		Default: 5 * time.Minute,
	}

	tests := []struct {
		name     string
		snapshot *domain.Snapshot
		want     time.Duration
	}{
		{
			name:     "live quotes get the short ttl",
			snapshot: fx.Snapshot("VTI", domain.MarketOpen, fx.QuoteFields("marketfeed")),
			want:     30 * time.Second,
		},
		{
			name:     "mixed fields still count as quotes",
			snapshot: fx.FullSnapshot("VTI", "marketfeed"),
			want:     30 * time.Second,
		},
		{
			name:     "fund facts only get the long ttl",
			snapshot: fx.Snapshot("VTI", domain.MarketOpen, fx.FundFields("issuersite")),
			want:     12 * time.Hour,
		},
		{
			name:     "empty snapshot falls back to default",
			snapshot: fx.Snapshot("VTI", domain.MarketOpen, map[domain.Field]domain.FieldValue{}),
			want:     5 * time.Minute,
		},
		{
			name:     "nil snapshot falls back to default",
			snapshot: nil,
			want:     5 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.For(tt.snapshot))
		})
	}
}

func TestTTLPolicy_InvalidateOnClose(t *testing.T) {
	fx := testutil.NewMarketFixtures()
	policy := DefaultTTLPolicy()

	assert.True(t, policy.InvalidateOnClose(fx.Snapshot("VTI", domain.MarketOpen, fx.QuoteFields("marketfeed"))))
	assert.True(t, policy.InvalidateOnClose(fx.FullSnapshot("VTI", "marketfeed")))
	assert.False(t, policy.InvalidateOnClose(fx.Snapshot("VTI", domain.MarketOpen, fx.FundFields("issuersite"))))
	assert.False(t, policy.InvalidateOnClose(nil))
}

func TestDefaultTTLPolicy(t *testing.T) {
	policy := DefaultTTLPolicy()

	assert.Equal(t, time.Minute, policy.Quote)
	assert.Equal(t, 24*time.Hour, policy.Fact)
	assert.Equal(t, 15*time.Minute, policy.Default)
	assert.Less(t, policy.Quote, policy.Fact, "quotes must expire before fund facts")
}
