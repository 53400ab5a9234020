package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "etfcli/internal/errors"
	"etfcli/internal/services"
	apiv1 "etfcli/pkg/contracts/api/v1"
	"etfcli/pkg/contracts/domain"
)

// Report download content types.
const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"

	formatXLSX = "xlsx"
	formatCSV  = "csv"
)

// AnalysisHandler handles snapshot and analysis HTTP requests with RFC 7807 compliance
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	exporter     RankExporter
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewAnalysisHandler creates a new analysis handler with RFC 7807 error handling
func NewAnalysisHandler(service AnalysisServiceInterface, exporter RankExporter, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		exporter:     exporter,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// RegisterRoutes registers the analysis routes on the API router
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ticker/{ticker}", func(r chi.Router) {
		r.Use(h.TickerCtx) // Validate ticker before any analysis runs
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/costs", h.GetCosts)
		r.Get("/liquidity", h.GetLiquidity)
		r.Get("/premium", h.GetPremium)
	})

	r.Post("/rank", h.Rank)
	r.Get("/rank/export", h.ExportRank)
}

// TickerCtx middleware validates the ticker URL parameter
func (h *AnalysisHandler) TickerCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		if ticker == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("ticker", "ticker symbol is required"))
			return
		}
		if len(ticker) > 10 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("ticker", "invalid ticker symbol format"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSnapshot handles GET /api/ticker/{ticker}/snapshot.
// Partial snapshots are 200s: missing fields are absent keys, never zeros.
func (h *AnalysisHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := apiv1.SnapshotRequest{
		Ticker: chi.URLParam(r, "ticker"),
		Fields: splitList(strings.ToLower(r.URL.Query().Get("fields"))),
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}

	// A nil field set asks the engine for every known field.
	var fields []domain.Field
	for _, raw := range req.Fields {
		f, ok := domain.ParseField(raw)
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.UnknownFieldError(raw))
			return
		}
		fields = append(fields, f)
	}

	h.logger.InfoContext(ctx, "fetching snapshot",
		slog.String("request_id", reqID),
		slog.String("ticker", req.Ticker),
		slog.Int("fields", len(fields)),
	)

	resp, err := h.service.Snapshot(ctx, req.Ticker, fields)
	if err != nil {
		h.logger.ErrorContext(ctx, "snapshot failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("ticker", req.Ticker),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, resp)
}

// GetCosts handles GET /api/ticker/{ticker}/costs
func (h *AnalysisHandler) GetCosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := apiv1.CostAnalysisRequest{Ticker: chi.URLParam(r, "ticker")}
	if apiErr := parseTradeQuery(r, &req.TradeShares, &req.ADVFraction, &req.HoldingPeriodDays); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}
	if apiErr := exclusiveTradeSize(req.TradeShares, req.ADVFraction); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	h.logger.InfoContext(ctx, "analyzing trading costs",
		slog.String("request_id", reqID),
		slog.String("ticker", req.Ticker),
	)

	resp, err := h.service.Costs(ctx, req.Ticker, tradeContext(req.TradeShares, req.ADVFraction, req.HoldingPeriodDays))
	if err != nil {
		h.logger.ErrorContext(ctx, "cost analysis failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("ticker", req.Ticker),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, resp)
}

// GetLiquidity handles GET /api/ticker/{ticker}/liquidity
func (h *AnalysisHandler) GetLiquidity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := apiv1.LiquidityRequest{Ticker: chi.URLParam(r, "ticker")}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}

	resp, err := h.service.Liquidity(ctx, req.Ticker)
	if err != nil {
		h.logger.ErrorContext(ctx, "liquidity scoring failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("ticker", req.Ticker),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, resp)
}

// GetPremium handles GET /api/ticker/{ticker}/premium
func (h *AnalysisHandler) GetPremium(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := apiv1.PremiumRequest{Ticker: chi.URLParam(r, "ticker")}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}

	resp, err := h.service.Premium(ctx, req.Ticker)
	if err != nil {
		h.logger.ErrorContext(ctx, "premium analysis failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("ticker", req.Ticker),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, resp)
}

// Rank handles POST /api/rank
func (h *AnalysisHandler) Rank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	var req apiv1.RankRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}
	if apiErr := exclusiveTradeSize(req.TradeShares, req.ADVFraction); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	h.logger.InfoContext(ctx, "ranking tickers",
		slog.String("request_id", reqID),
		slog.Int("tickers", len(req.Tickers)),
	)

	resp, err := h.service.Rank(ctx, req.Tickers, tradeContext(req.TradeShares, req.ADVFraction, req.HoldingPeriodDays))
	if err != nil {
		if errors.Is(err, services.ErrNoTickers) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("tickers", "at least one ticker is required"))
			return
		}
		h.logger.ErrorContext(ctx, "ranking failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, resp)
}

// ExportRank handles GET /api/rank/export. The ranking is buffered before any
// byte reaches the wire so an export failure can still render a proper error
// envelope instead of a truncated download.
func (h *AnalysisHandler) ExportRank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	q := r.URL.Query()

	req := apiv1.RankExportRequest{
		RankRequest: apiv1.RankRequest{Tickers: splitList(q.Get("tickers"))},
		Format:      q.Get("format"),
	}
	if apiErr := parseTradeQuery(r, &req.TradeShares, &req.ADVFraction, &req.HoldingPeriodDays); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	if req.Format == "" {
		req.Format = formatXLSX
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}
	if apiErr := exclusiveTradeSize(req.TradeShares, req.ADVFraction); apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	h.logger.InfoContext(ctx, "exporting comparison report",
		slog.String("request_id", reqID),
		slog.Int("tickers", len(req.Tickers)),
		slog.String("format", req.Format),
	)

	rank, err := h.service.Rank(ctx, req.Tickers, tradeContext(req.TradeShares, req.ADVFraction, req.HoldingPeriodDays))
	if err != nil {
		if errors.Is(err, services.ErrNoTickers) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("tickers", "at least one ticker is required"))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	contentType := contentTypeXLSX
	switch req.Format {
	case formatCSV:
		contentType = contentTypeCSV
		err = h.exporter.WriteCSV(&buf, rank)
	default:
		err = h.exporter.WriteXLSX(&buf, rank)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "report export failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("format", req.Format),
		)
		h.errorHandler.HandleError(w, r, apierrors.ExportError(req.Format, err))
		return
	}

	filename := fmt.Sprintf("etf-comparison-%s.%s", rank.GeneratedAt.Format("2006-01-02"), req.Format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// validationError converts validator failures into the VALIDATION_ERROR envelope
func (h *AnalysisHandler) validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}
	details := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, apierrors.ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: formatFieldError(fe),
		})
	}
	return apierrors.NewValidationErrors(details)
}

// formatFieldError renders a single validator failure as a human message
func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "alphanum":
		return fmt.Sprintf("%s must be alphanumeric", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// parseTradeQuery extracts optional trade sizing parameters from the query string
func parseTradeQuery(r *http.Request, shares, fraction *float64, holdingDays *int) *apierrors.APIError {
	q := r.URL.Query()
	if raw := q.Get("trade_shares"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return apierrors.ErrValidation("trade_shares", "must be a number")
		}
		*shares = v
	}
	if raw := q.Get("adv_fraction"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return apierrors.ErrValidation("adv_fraction", "must be a number")
		}
		*fraction = v
	}
	if raw := q.Get("holding_period_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return apierrors.ErrValidation("holding_period_days", "must be an integer")
		}
		*holdingDays = v
	}
	return nil
}

// exclusiveTradeSize rejects requests that size the trade both ways at once
func exclusiveTradeSize(shares, fraction float64) *apierrors.APIError {
	if shares > 0 && fraction > 0 {
		return apierrors.ErrValidation("trade_shares", "specify either trade_shares or adv_fraction, not both")
	}
	return nil
}

// tradeContext assembles the domain trade parameters from request fields
func tradeContext(shares, fraction float64, holdingDays int) domain.TradeContext {
	return domain.TradeContext{
		Size:              domain.TradeSize{Shares: shares, ADVFraction: fraction},
		HoldingPeriodDays: holdingDays,
	}
}

// splitList splits a comma-separated query value, dropping empty entries
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
