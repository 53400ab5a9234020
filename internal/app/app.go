package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"etfcli/internal/adapters"
	"etfcli/internal/cache"
	"etfcli/internal/config"
	apierrors "etfcli/internal/errors"
	"etfcli/internal/exporter"
	"etfcli/internal/infrastructure"
	"etfcli/internal/liquidity"
	"etfcli/internal/marketclock"
	customMiddleware "etfcli/internal/middleware"
	"etfcli/internal/reconcile"
	"etfcli/internal/services"
	"etfcli/internal/storage"
	transport "etfcli/internal/transport/http"
	ws "etfcli/internal/websocket"
	"etfcli/pkg/contracts/events"
)

const (
	VERSION = "v1.0.0"
	AppName = "ETF Pulse - Market Data Reliability Service"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

// sweepInterval paces the background pass that evicts expired cache entries.
// Expiry is also checked on read, so this only bounds memory held by entries
// nobody asks for again.
const sweepInterval = time.Minute

// persistRetention bounds how long the on-disk snapshot archive keeps
// records that no warm start will ever restore.
const persistRetention = 7 * 24 * time.Hour

// systemMetricsInterval paces runtime statistics collection.
const systemMetricsInterval = 30 * time.Second

func generateBuildID() string {
	// Generate a deterministic build ID based on version and time
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	Engine          *reconcile.Engine
	Cache           *cache.Store
	Clock           *marketclock.Clock
	Registry        *adapters.Registry
	Storage         *storage.Store // nil when persistence is disabled
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Exporter        *exporter.ComparisonWriter
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.BusinessMetrics

	otelMiddleware *customMiddleware.OTelMiddleware
	systemMetrics  *infrastructure.SystemMetricsCollector
	sink           events.Sink
}

// NewApplication creates a new application instance with dependency injection.
// configPath may be empty, in which case well-known locations are searched.
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Resolve path-dependent config against the executable location before
	// anything opens files.
	if err := cfg.ResolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve application paths: %w", err)
	}

	// Initialize single infrastructure logger
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("build_id", BuildID))

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices wires the data path bottom-up: persistence, market
// clock, cache, source adapters, the reconciliation engine, then the
// services and HTTP surface on top of it.
func (a *Application) initializeServices() error {
	// WebSocket hub streams reconciliation traces to observers
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	// Persistent snapshot store. Optional: without it warm starts are
	// empty and last-known values live only as long as the process.
	var (
		lastKnown reconcile.LastKnownStore
		saver     reconcile.EntrySaver
		pinger    services.StorePinger
	)
	if a.Config.Cache.Persist {
		store, err := storage.New(a.Config.Cache.DBPath, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}
		a.Storage = store
		lastKnown = store
		saver = store
		pinger = store
	} else {
		a.Logger.Info("Snapshot persistence disabled, last-known values are in-memory only")
		lastKnown = storage.NewMemory()
	}

	// Market clock
	calendar, err := a.loadCalendar()
	if err != nil {
		return fmt.Errorf("failed to load market calendar: %w", err)
	}
	clock, err := marketclock.New(marketclock.Options{
		Timezone: a.Config.Market.Timezone,
		Open:     a.Config.Market.Open,
		Close:    a.Config.Market.Close,
		Calendar: calendar,
		Logger:   a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build market clock: %w", err)
	}
	a.Clock = clock

	// Snapshot cache, lazily invalidated against the clock's last close
	a.Cache = cache.New(cache.Options{
		MaxEntries: a.Config.Cache.MaxEntries,
		LastClose:  clock.LastClose,
		Logger:     a.Logger,
	})

	// Source adapters in priority order
	registry := adapters.Build(a.Config.EnabledSources(), a.Logger)
	if registry.Len() == 0 {
		a.Logger.Warn("No data sources enabled, requests will only be served from cache and last-known values")
	}
	a.Registry = registry

	// OpenTelemetry middleware owns the instrument set; the trace-event
	// sink below records onto the same instruments.
	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}
	a.otelMiddleware = otelMiddleware
	a.Metrics = otelMiddleware.Metrics()

	systemMetrics, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, systemMetricsInterval)
	if err != nil {
		return fmt.Errorf("failed to create system metrics collector: %w", err)
	}
	a.systemMetrics = systemMetrics

	// Every engine emission goes to connected WebSocket clients and to the
	// metrics pipeline through one fan-out.
	a.sink = events.MultiSink{hub.TraceSink(), a.metricsSink()}

	// Reconciliation engine
	a.Engine = reconcile.New(reconcile.Options{
		Registry:   registry,
		Clock:      clock,
		Cache:      a.Cache,
		LastKnown:  lastKnown,
		Saver:      saver,
		Thresholds: a.Config.Validation,
		TTL: cache.TTLPolicy{
			Quote:   a.Config.Cache.QuoteTTL,
			Fact:    a.Config.Cache.FactTTL,
			Default: a.Config.Cache.DefaultTTL,
		},
		TTLHints: reconcile.TTLHints(a.Config.Sources),
		Sink:     a.sink,
		Logger:   a.Logger,
	})

	// Analysis layer on top of the engine
	analyzer := liquidity.NewAnalyzer(a.Config.Costs, a.Config.Liquidity, a.Config.Premium, a.Logger)
	a.AnalysisService = services.NewAnalysisService(a.Engine, analyzer, a.Logger)
	a.Exporter = exporter.NewComparisonWriter(a.Logger)

	a.HealthService = services.NewHealthService(
		VERSION,
		BuildTime,
		BuildID,
		pinger,
		registry,
		hub,
		a.Cache,
		a.Logger,
	)

	return nil
}

// loadCalendar builds the holiday calendar from the configured file, or from
// the inline holiday and early-close lists when no file is given.
func (a *Application) loadCalendar() (*marketclock.Calendar, error) {
	if a.Config.Market.CalendarFile != "" {
		return marketclock.LoadCalendarFile(a.Config.Market.CalendarFile)
	}
	return marketclock.NewCalendar(a.Config.Market.Holidays, a.Config.Market.EarlyCloses)
}

// metricsSink translates engine trace events into OpenTelemetry counters.
// Trace events carry no timings, so every update here is a straight count;
// request latency lives in the HTTP middleware histograms.
func (a *Application) metricsSink() events.Sink {
	metrics := a.Metrics
	return events.SinkFunc(func(ctx context.Context, ev events.TraceEvent) {
		if metrics == nil {
			return
		}
		switch ev.Stage {
		case events.StageRequestStarted:
			metrics.SnapshotRequestsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("ticker", ev.Ticker)))
		case events.StageCacheHit:
			metrics.CacheHits.Add(ctx, 1)
		case events.StageCacheMiss:
			metrics.CacheMisses.Add(ctx, 1)
		case events.StageSourceFetch:
			metrics.AdapterRequestsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("source", string(ev.Source))))
		case events.StageSourceFailed:
			metrics.AdapterRequestsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("source", string(ev.Source))))
			metrics.AdapterFailuresTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("source", string(ev.Source)),
				attribute.String("kind", ev.Detail["kind"]),
			))
		case events.StageValidation:
			metrics.ValidationFlagsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("field", string(ev.Field)),
				attribute.String("severity", string(ev.Severity)),
			))
		case events.StageStaleFallback:
			metrics.StaleFieldsServed.Add(ctx, 1,
				metric.WithAttributes(attribute.String("field", string(ev.Field))))
		case events.StageNoData:
			metrics.NoDataTotal.Add(ctx, 1)
		case events.StageCloseInvalidated:
			// The detail carries how many entries one pass dropped.
			n := int64(1)
			if v, err := strconv.ParseInt(ev.Detail["entries"], 10, 64); err == nil {
				n = v
			}
			metrics.CacheInvalidations.Add(ctx, n)
		case events.StageAlert:
			infrastructure.RecordAlertMetrics(ctx, metrics, string(ev.Field), string(ev.Severity))
		}
	})
}

// invalidateCache runs one invalidation pass and reports it everywhere it
// matters: the trace stream, the metrics pipeline and the market-status
// broadcast. Both the close watcher and the HTTP endpoint funnel through
// here so operators see identical bookkeeping for either trigger.
func (a *Application) invalidateCache(ctx context.Context, reason string) int {
	// Manual flushes arrive on a bare context; give them an ID so the
	// trace frame and broadcast still correlate.
	ctx = infrastructure.EnsureTraceID(ctx)

	invalidated := a.Cache.InvalidateMarketClose()

	a.sink.Emit(ctx, events.TraceEvent{
		Stage:   events.StageCloseInvalidated,
		Message: reason,
		Detail:  map[string]string{"entries": strconv.Itoa(invalidated)},
	})

	now := time.Now()
	status, _ := a.Clock.Status(now)
	a.WebSocketHub.BroadcastMarketStatus(events.MarketStatusEvent{
		Status:      string(status),
		Invalidated: invalidated,
		At:          now,
	})

	return invalidated
}

// trackedCache routes handler-driven invalidation through the application's
// bookkeeping so manual flushes show up in metrics and on the trace stream
// exactly like scheduled ones.
type trackedCache struct {
	app *Application
}

func (t trackedCache) InvalidateMarketClose() int {
	return t.app.invalidateCache(context.Background(), "manual")
}

func (t trackedCache) Len() int { return t.app.Cache.Len() }

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't interfere with the WebSocket upgrade;
	// neither of these wraps the ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route registered before the full group so the upgrade
	// skips everything that hijacking a connection cannot tolerate.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	// Everything else gets the full middleware chain
	r.Group(func(r chi.Router) {
		r.Use(a.otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus endpoint outside the middleware group: scrapes should not
	// show up in request metrics, logs or rate limits.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.ContentTypeValidator("application/json"))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		errorHandler := apierrors.NewErrorHandler(a.Logger, false)

		healthHandler := transport.NewHealthHandler(a.HealthService, a.Logger)
		healthHandler.RegisterRoutes(r)

		analysisHandler := transport.NewAnalysisHandler(a.AnalysisService, a.Exporter, a.Logger, errorHandler)
		analysisHandler.RegisterRoutes(r)

		cacheHandler := transport.NewCacheHandler(trackedCache{app: a}, a.Logger, errorHandler)
		cacheHandler.RegisterRoutes(r)
	})
}

// getCORSConfig assembles the CORS policy: same-origin plus whatever the
// deployment explicitly allows, loosened for local development.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	corsConfig := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	corsConfig.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
	}

	if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	}

	if a.isDevelopmentMode() {
		// Local dashboards run on the Next.js dev port
		corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	}

	return corsConfig
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	return os.Getenv("ETF_ENV") == "development"
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server and the background loops. The passed cancel
// func is invoked when the server dies so the caller can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.Int("sources", a.Registry.Len()),
		slog.Bool("persistence", a.Storage != nil))

	// Rehydrate the cache before the first request can miss
	a.warmStart(ctx)

	// Background loops: close-boundary invalidation, expiry sweeping and
	// runtime statistics
	go a.watchMarketClose(ctx)
	go a.sweepCache(ctx)
	go a.systemMetrics.Start(ctx)

	// Start server
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// warmStart restores persisted snapshots into the cache and prunes records
// too old to ever be restored again. Failures degrade to a cold cache.
func (a *Application) warmStart(ctx context.Context) {
	if a.Storage == nil || !a.Config.Cache.WarmStart {
		return
	}

	entries, err := a.Storage.LoadEntries(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "Warm start skipped", slog.String("error", err.Error()))
		return
	}

	restored := a.Cache.Restore(entries)
	a.Logger.InfoContext(ctx, "Cache warm start complete",
		slog.Int("persisted", len(entries)),
		slog.Int("restored", restored))

	if pruned, err := a.Storage.PruneEntries(ctx, time.Now().Add(-persistRetention)); err != nil {
		a.Logger.WarnContext(ctx, "Failed to prune persisted snapshots", slog.String("error", err.Error()))
	} else if pruned > 0 {
		a.Logger.InfoContext(ctx, "Pruned persisted snapshots", slog.Int64("pruned", pruned))
	}
}

// watchMarketClose sleeps until the next session end, then drops every
// close-scoped cache entry and tells connected clients the market closed.
func (a *Application) watchMarketClose(ctx context.Context) {
	for {
		now := time.Now()
		next := a.Clock.NextClose(now)

		// The extra second keeps the pass strictly after the boundary so
		// the cache's own lazy check agrees with it.
		timer := time.NewTimer(next.Sub(now) + time.Second)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			invalidated := a.invalidateCache(ctx, "market_close")
			a.Logger.InfoContext(ctx, "Market close invalidation pass",
				slog.Time("close", next),
				slog.Int("invalidated", invalidated))
		}
	}
}

// sweepCache periodically evicts expired entries so memory tracks the live
// working set rather than everything ever requested.
func (a *Application) sweepCache(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.Cache.Sweep(); removed > 0 {
				a.Logger.Debug("Swept expired cache entries", slog.Int("removed", removed))
			}
		}
	}
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop server
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Stop background services
	a.WebSocketHub.Stop()
	a.systemMetrics.Stop()

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Error closing snapshot store")
		}
	}

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Error shutting down OpenTelemetry")
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
	}

	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start application
	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for interrupt or server failure
	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped, shutting down")
	}

	// Graceful shutdown
	return a.Stop(context.Background())
}

// handleWebSocket handles WebSocket connections
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Extract any available request ID (might not have middleware)
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = infrastructure.GenerateTraceID()
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// No origin: local tooling or same-origin request
			if origin == "" {
				return true
			}

			if a.isDevelopmentMode() {
				return true
			}

			for _, allowed := range a.getCORSConfig().AllowedOrigins {
				if origin == allowed {
					return true
				}
			}

			a.Logger.WarnContext(ctx, "WebSocket origin rejected",
				slog.String("origin", origin))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	// Create a new client with trace ID and register with hub
	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	client.SetHeartbeat(a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	// Start client goroutines with panic isolation
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}

// performStartupHealthCheck warns about states that will degrade every
// request. None of these are fatal: a sourceless server still answers from
// cache, and a calendar gap only downgrades confidence.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	if a.Registry.Len() == 0 {
		warnings = append(warnings, "no market data sources enabled")
	}

	if a.Storage != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.Storage.Ping(pingCtx); err != nil {
			warnings = append(warnings, fmt.Sprintf("snapshot store unreachable: %v", err))
		}
	}

	if _, confidence := a.Clock.Status(time.Now()); confidence == marketclock.ConfidenceUnknown {
		warnings = append(warnings, "market calendar missing, session answers degrade to weekday checks")
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
