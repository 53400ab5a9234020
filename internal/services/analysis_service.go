package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "etfcli/internal/errors"
	"etfcli/internal/liquidity"
	"etfcli/internal/reconcile"
	"etfcli/pkg/contracts/domain"
)

// SnapshotProvider is the reconciliation surface the service consumes.
// *reconcile.Engine satisfies it.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, ticker string, fields []domain.Field) (*reconcile.Result, error)
}

// CostAnalyzer derives cost and liquidity analytics from snapshots.
// *liquidity.Analyzer satisfies it.
type CostAnalyzer interface {
	Costs(snap *domain.Snapshot, trade domain.TradeContext) (*domain.CostBreakdown, error)
	Score(snap *domain.Snapshot) domain.LiquidityScore
	Premium(snap *domain.Snapshot) (*domain.PremiumDiscount, error)
}

// Field sets each analysis requests from the engine. Asking only for what an
// analysis consumes keeps adapter traffic and cache keys narrow.
var (
	costFields      = []domain.Field{domain.FieldBid, domain.FieldAsk, domain.FieldAvgDailyVolume, domain.FieldAssets, domain.FieldExpenseRatio}
	liquidityFields = []domain.Field{domain.FieldBid, domain.FieldAsk, domain.FieldAvgDailyVolume, domain.FieldAssets}
	premiumFields   = []domain.Field{domain.FieldLastPrice, domain.FieldIIV}
)

// defaultRankConcurrency bounds the per-ticker fan-out of Rank. The engine is
// safe for concurrent independent tickers; the bound just keeps a large batch
// from monopolizing adapter rate budgets.
const defaultRankConcurrency = 4

// AnalysisService orchestrates snapshot retrieval and the derived analytics.
type AnalysisService struct {
	engine          SnapshotProvider
	analyzer        CostAnalyzer
	logger          *slog.Logger
	rankConcurrency int
}

// NewAnalysisService creates an analysis service.
func NewAnalysisService(engine SnapshotProvider, analyzer CostAnalyzer, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		engine:          engine,
		analyzer:        analyzer,
		logger:          logger.With(slog.String("service", "analysis")),
		rankConcurrency: defaultRankConcurrency,
	}
}

// SnapshotResponse is the full reconciliation outcome for one ticker.
type SnapshotResponse struct {
	Snapshot    *domain.Snapshot          `json:"snapshot"`
	Validations []domain.ValidationResult `json:"validations,omitempty"`
	Failures    []domain.SourceFailure    `json:"source_failures,omitempty"`
	Alerts      []domain.Alert            `json:"alerts,omitempty"`
	StaleFields []domain.Field            `json:"stale_fields,omitempty"`
	CacheHit    bool                      `json:"cache_hit"`
}

// CostsResponse pairs a cost breakdown with the liquidity grade it used.
type CostsResponse struct {
	Ticker       string                `json:"ticker"`
	AsOf         time.Time             `json:"as_of"`
	MarketStatus domain.MarketStatus   `json:"market_status"`
	StaleFields  []domain.Field        `json:"stale_fields,omitempty"`
	Breakdown    *domain.CostBreakdown `json:"breakdown"`
	Liquidity    domain.LiquidityScore `json:"liquidity"`
}

// LiquidityResponse is a scored snapshot.
type LiquidityResponse struct {
	Ticker       string                `json:"ticker"`
	AsOf         time.Time             `json:"as_of"`
	MarketStatus domain.MarketStatus   `json:"market_status"`
	StaleFields  []domain.Field        `json:"stale_fields,omitempty"`
	Score        domain.LiquidityScore `json:"score"`
	Rating       string                `json:"rating"`
}

// PremiumResponse is a premium/discount analysis.
type PremiumResponse struct {
	Ticker       string                  `json:"ticker"`
	AsOf         time.Time               `json:"as_of"`
	MarketStatus domain.MarketStatus     `json:"market_status"`
	Premium      *domain.PremiumDiscount `json:"premium"`
}

// RankEntry is one ticker's row in a tradability ranking. Tickers that could
// not be analyzed carry an Error and sort after every analyzed entry.
type RankEntry struct {
	Ticker      string                 `json:"ticker"`
	Liquidity   *domain.LiquidityScore `json:"liquidity,omitempty"`
	Costs       *domain.CostBreakdown  `json:"costs,omitempty"`
	Rating      string                 `json:"rating,omitempty"`
	StaleFields []domain.Field         `json:"stale_fields,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// RankResponse is a tradability ranking over several tickers.
type RankResponse struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Trade       domain.TradeContext `json:"trade"`
	Entries     []RankEntry         `json:"entries"`
	Failed      int                 `json:"failed"`
}

// Snapshot returns the reconciled snapshot for a ticker. An empty field set
// requests every known field.
func (s *AnalysisService) Snapshot(ctx context.Context, ticker string, fields []domain.Field) (*SnapshotResponse, error) {
	res, err := s.engine.GetSnapshot(ctx, ticker, fields)
	if err != nil {
		return nil, err
	}
	return &SnapshotResponse{
		Snapshot:    res.Snapshot,
		Validations: res.Validations,
		Failures:    res.Failures,
		Alerts:      res.Alerts,
		StaleFields: res.Snapshot.StaleFields(),
		CacheHit:    res.CacheHit,
	}, nil
}

// Costs computes the trading cost breakdown for one ticker and trade.
func (s *AnalysisService) Costs(ctx context.Context, ticker string, trade domain.TradeContext) (*CostsResponse, error) {
	res, err := s.engine.GetSnapshot(ctx, ticker, costFields)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.analyzer.Costs(res.Snapshot, trade)
	if err != nil {
		return nil, fmt.Errorf("analyze costs for %s: %w", res.Snapshot.Ticker, err)
	}
	return &CostsResponse{
		Ticker:       res.Snapshot.Ticker,
		AsOf:         res.Snapshot.AsOf,
		MarketStatus: res.Snapshot.MarketStatus,
		StaleFields:  res.Snapshot.StaleFields(),
		Breakdown:    breakdown,
		Liquidity:    s.analyzer.Score(res.Snapshot),
	}, nil
}

// Liquidity grades one ticker on the 0-100 liquidity scale.
func (s *AnalysisService) Liquidity(ctx context.Context, ticker string) (*LiquidityResponse, error) {
	res, err := s.engine.GetSnapshot(ctx, ticker, liquidityFields)
	if err != nil {
		return nil, err
	}
	score := s.analyzer.Score(res.Snapshot)
	return &LiquidityResponse{
		Ticker:       res.Snapshot.Ticker,
		AsOf:         res.Snapshot.AsOf,
		MarketStatus: res.Snapshot.MarketStatus,
		StaleFields:  res.Snapshot.StaleFields(),
		Score:        score,
		Rating:       score.Rating(),
	}, nil
}

// Premium compares the last trade against the indicative intraday value.
// A fund without both inputs maps to a not-found application error; there
// is no partial premium to return.
func (s *AnalysisService) Premium(ctx context.Context, ticker string) (*PremiumResponse, error) {
	res, err := s.engine.GetSnapshot(ctx, ticker, premiumFields)
	if err != nil {
		return nil, err
	}
	premium, err := s.analyzer.Premium(res.Snapshot)
	if err != nil {
		var verr liquidity.ValidationError
		if errors.As(err, &verr) {
			return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound,
				fmt.Sprintf("%s: %s", res.Snapshot.Ticker, verr.Message), err)
		}
		return nil, err
	}
	return &PremiumResponse{
		Ticker:       res.Snapshot.Ticker,
		AsOf:         res.Snapshot.AsOf,
		MarketStatus: res.Snapshot.MarketStatus,
		Premium:      premium,
	}, nil
}

// Rank analyzes every ticker and orders them by tradability: liquidity total
// descending, round-trip cost ascending on ties. Per-ticker failures degrade
// to error entries at the bottom of the list; the run itself only fails on
// cancellation or an empty request.
func (s *AnalysisService) Rank(ctx context.Context, tickers []string, trade domain.TradeContext) (*RankResponse, error) {
	tickers = dedupeTickers(tickers)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	start := time.Now()
	entries := make([]RankEntry, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rankConcurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			entries[i] = s.rankOne(gctx, ticker, trade)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures ride in the entries
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortByTradability(entries)

	failed := 0
	for _, e := range entries {
		if e.Error != "" {
			failed++
		}
	}

	s.logger.InfoContext(ctx, "rank completed",
		slog.Int("tickers", len(tickers)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)

	return &RankResponse{
		GeneratedAt: time.Now().UTC(),
		Trade:       trade,
		Entries:     entries,
		Failed:      failed,
	}, nil
}

func (s *AnalysisService) rankOne(ctx context.Context, ticker string, trade domain.TradeContext) RankEntry {
	res, err := s.engine.GetSnapshot(ctx, ticker, costFields)
	if err != nil {
		s.logger.WarnContext(ctx, "rank entry failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		return RankEntry{Ticker: ticker, Error: err.Error()}
	}

	breakdown, err := s.analyzer.Costs(res.Snapshot, trade)
	if err != nil {
		return RankEntry{Ticker: res.Snapshot.Ticker, Error: err.Error()}
	}
	score := s.analyzer.Score(res.Snapshot)

	return RankEntry{
		Ticker:      res.Snapshot.Ticker,
		Liquidity:   &score,
		Costs:       breakdown,
		Rating:      score.Rating(),
		StaleFields: res.Snapshot.StaleFields(),
	}
}

// sortByTradability orders analyzed entries by liquidity total descending,
// breaking ties by round-trip cost ascending (entries whose trip cannot be
// priced sort after priced ones), then by ticker for a stable output. Error
// entries go last, alphabetically.
func sortByTradability(entries []RankEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Error == "") != (b.Error == "") {
			return a.Error == ""
		}
		if a.Error != "" {
			return a.Ticker < b.Ticker
		}
		if a.Liquidity.Total != b.Liquidity.Total {
			return a.Liquidity.Total > b.Liquidity.Total
		}
		switch ar, br := a.Costs.TotalRoundTrip, b.Costs.TotalRoundTrip; {
		case ar != nil && br != nil && *ar != *br:
			return *ar < *br
		case ar != nil && br == nil:
			return true
		case ar == nil && br != nil:
			return false
		}
		return a.Ticker < b.Ticker
	})
}

// dedupeTickers uppercases, trims, and deduplicates the request while
// preserving the caller's order.
func dedupeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
