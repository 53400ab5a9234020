package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"etfcli/pkg/contracts"
)

// StorePinger reports whether the persistence layer is reachable.
// *storage.Store satisfies it.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// SourceRegistry exposes how many source adapters are configured.
// *adapters.Registry satisfies it.
type SourceRegistry interface {
	Len() int
}

// ClientCounter reports connected websocket clients.
// *websocket.Hub satisfies it.
type ClientCounter interface {
	ClientCount() int
}

// CacheCounter reports live cache entries. *cache.Store satisfies it.
type CacheCounter interface {
	Len() int
}

// HealthService provides liveness and readiness checks.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	store     StorePinger
	registry  SourceRegistry
	hub       ClientCounter
	cache     CacheCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. Any collaborator may be nil,
// in which case its check reports "disabled" without failing readiness.
// The report binary, for example, runs without a websocket hub.
func NewHealthService(version, buildTime, buildID string, store StorePinger, registry SourceRegistry, hub ClientCounter, cacheStore CacheCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		store:     store,
		registry:  registry,
		hub:       hub,
		cache:     cacheStore,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall liveness. It never consults collaborators:
// a live process with a broken database is still live.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck verifies the subsystems a request would touch.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["sources"] = hs.checkSources()
	status.Services["storage"] = hs.checkStorage(ctx)
	status.Services["cache"] = hs.checkCache()
	status.Services["websocket"] = hs.checkWebSocket()

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status == "not_ready" {
			status.Status = "not_ready"
			hs.logger.Warn("readiness check failed",
				slog.String("subsystem", name),
				slog.String("message", sh.Message))
		}
	}

	return status
}

// Version returns build and runtime information. The API and data-format
// versions ride along so clients can detect incompatible upgrades before
// parsing anything else.
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"api_version":  contracts.APIVersion,
		"data_format":  contracts.DataFormatVersion,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	return result
}

func (hs *HealthService) checkSources() ServiceHealth {
	if hs.registry == nil {
		return ServiceHealth{Status: "disabled"}
	}
	if hs.registry.Len() == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no source adapters enabled"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkStorage(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: "disabled"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hs.store.Ping(pingCtx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkCache() ServiceHealth {
	if hs.cache == nil {
		return ServiceHealth{Status: "disabled"}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("entries: %d", hs.cache.Len())}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "disabled"}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("clients: %d", hs.hub.ClientCount())}
}
