package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "etfcli/internal/errors"
	apiv1 "etfcli/pkg/contracts/api/v1"
)

// CacheHandler exposes the snapshot cache's explicit invalidation pass.
// The server's close watcher fires it automatically at session end; the
// endpoint exists for operators and for calendars the watcher cannot know
// about (unscheduled halts).
type CacheHandler struct {
	cache        CacheInvalidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cache CacheInvalidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CacheHandler {
	return &CacheHandler{
		cache:        cache,
		logger:       logger.With(slog.String("component", "cache_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// RegisterRoutes registers the cache routes on the API router
func (h *CacheHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cache", func(r chi.Router) {
		r.Post("/invalidate", h.Invalidate)
	})
}

// Invalidate handles POST /api/cache/invalidate.
// Only live-quote entries are dropped; fund facts ride out a close.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := apiv1.CacheInvalidateRequest{Reason: "manual"}
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		if req.Reason == "" {
			req.Reason = "manual"
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("reason", "must be one of: market_close, manual"))
		return
	}

	invalidated := h.cache.InvalidateMarketClose()

	h.logger.InfoContext(ctx, "cache invalidation pass completed",
		slog.String("request_id", reqID),
		slog.String("reason", req.Reason),
		slog.Int("invalidated", invalidated),
	)

	render.JSON(w, r, map[string]interface{}{
		"invalidated": invalidated,
		"remaining":   h.cache.Len(),
		"reason":      req.Reason,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
