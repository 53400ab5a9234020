package http

import (
	"context"
	"io"

	"etfcli/internal/services"
	"etfcli/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the interface for snapshot and analysis operations
type AnalysisServiceInterface interface {
	Snapshot(ctx context.Context, ticker string, fields []domain.Field) (*services.SnapshotResponse, error)
	Costs(ctx context.Context, ticker string, trade domain.TradeContext) (*services.CostsResponse, error)
	Liquidity(ctx context.Context, ticker string) (*services.LiquidityResponse, error)
	Premium(ctx context.Context, ticker string) (*services.PremiumResponse, error)
	Rank(ctx context.Context, tickers []string, trade domain.TradeContext) (*services.RankResponse, error)
}

// RankExporter writes a ranking as a downloadable comparison report.
// Implemented by exporter.ComparisonWriter.
type RankExporter interface {
	WriteXLSX(w io.Writer, rank *services.RankResponse) error
	WriteCSV(w io.Writer, rank *services.RankResponse) error
}

// CacheInvalidator exposes the explicit cache invalidation pass.
// Implemented by cache.Store.
type CacheInvalidator interface {
	InvalidateMarketClose() int
	Len() int
}
