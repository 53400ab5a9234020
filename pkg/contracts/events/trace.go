// Package events contains the event contracts the reconciliation engine
// emits and the WebSocket layer broadcasts.
package events

import (
	"context"
	"time"
)

// TraceStage identifies where in the reconciliation flow an event occurred.
type TraceStage string

const (
	StageRequestStarted   TraceStage = "request_started"
	StageCacheHit         TraceStage = "cache_hit"
	StageCacheMiss        TraceStage = "cache_miss"
	StageSourceFetch      TraceStage = "source_fetch"
	StageSourceFailed     TraceStage = "source_failed"
	StageFieldResolved    TraceStage = "field_resolved"
	StageValidation       TraceStage = "validation"
	StageStaleFallback    TraceStage = "stale_fallback"
	StageFieldAbsent      TraceStage = "field_absent"
	StageSnapshotCached   TraceStage = "snapshot_cached"
	StageCloseInvalidated TraceStage = "close_invalidated"
	StageRequestCompleted TraceStage = "request_completed"
	StageNoData           TraceStage = "no_data"
	StageAlert            TraceStage = "alert"
)

// TraceEvent is a single structured trace point. The engine emits these
// unconditionally; sinks decide whether and how to render them.
type TraceEvent struct {
	Stage     TraceStage        `json:"stage"`
	Ticker    string            `json:"ticker,omitempty"`
	Source    string            `json:"source,omitempty"`
	Field     string            `json:"field,omitempty"`
	Severity  string            `json:"severity,omitempty"`
	Message   string            `json:"message,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink receives trace events. Implementations must be safe for concurrent
// use and must never block the engine: drop rather than stall.
type Sink interface {
	Emit(ctx context.Context, ev TraceEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev TraceEvent)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, ev TraceEvent) { f(ctx, ev) }

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, ev TraceEvent) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, TraceEvent) {}
