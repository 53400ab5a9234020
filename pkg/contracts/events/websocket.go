package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Core trace stream - the primary event type
	MessageTypeReconcileTrace MessageType = "reconcile:trace"

	// Advisory alerts raised by validation or cost analysis
	MessageTypeAlert MessageType = "analysis:alert"

	// Market session transitions (close invalidation sweeps)
	MessageTypeMarketStatus MessageType = "market:status"

	// System messages
	MessageTypeSystemStatus MessageType = "system:status"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Request trace ID
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"` // Message payload
}

// MarketStatusEvent announces a session transition observed by the close
// watcher, including how many cache entries the sweep invalidated.
type MarketStatusEvent struct {
	Status      string    `json:"status"` // open|closed|unknown
	Invalidated int       `json:"invalidated_entries"`
	At          time.Time `json:"at"`
}

// SystemStatusEvent reports overall component health to observers.
type SystemStatusEvent struct {
	Status     string            `json:"status"` // healthy|degraded|unhealthy
	Components map[string]string `json:"components"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
}
