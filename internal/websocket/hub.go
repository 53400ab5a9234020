// Package websocket streams the reconciliation trace to connected
// observers. Clients are read-only: the server pushes trace, alert and
// market-status frames and ignores everything a client sends. A client
// that cannot keep up with the stream is disconnected rather than allowed
// to stall the hub.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"etfcli/internal/infrastructure"
	"etfcli/pkg/contracts/events"
)

// broadcastQueueSize bounds the frames waiting for the hub loop. The
// engine sink must never block, so an overflowing queue drops frames.
const broadcastQueueSize = 256

// Hub maintains the set of active clients and fans event frames out to them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound frames awaiting the hub loop
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger instance
	logger *slog.Logger

	// Metrics
	totalConnections int64
	messagesSent     int64
	framesDropped    int64
	clientsDropped   int64

	// Control
	quit        chan struct{}
	running     bool
	metricsQuit chan struct{}
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = infrastructure.WithComponent(logger, "websocket.hub")

	return &Hub{
		broadcast:   make(chan []byte, broadcastQueueSize),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		logger:      logger,
		quit:        make(chan struct{}),
		metricsQuit: make(chan struct{}),
	}
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportMetrics()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := context.Background()
			if client.traceID != "" {
				ctx = infrastructure.WithTraceID(ctx, client.traceID)
			}

			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			// Greet the new client so it can confirm the stream is live
			welcome := events.WebSocketMessage{
				BaseMessage: events.BaseMessage{
					ID:        uuid.New().String(),
					Type:      events.MessageTypeConnect,
					Timestamp: time.Now().UTC(),
					TraceID:   client.traceID,
				},
				Data: map[string]string{
					"status":    "connected",
					"client_id": client.id,
				},
			}
			if jsonData, err := json.Marshal(welcome); err == nil {
				select {
				case client.send <- jsonData:
				default:
					h.logger.WarnContext(ctx, "Failed to send welcome frame - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()

				ctx := context.Background()
				if client.traceID != "" {
					ctx = infrastructure.WithTraceID(ctx, client.traceID)
				}

				h.logger.InfoContext(ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case frame := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- frame:
					h.mu.Lock()
					h.messagesSent++
					h.mu.Unlock()
				default:
					// The client's send buffer is full. Drop the client,
					// not the stream.
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.clientsDropped++
					h.mu.Unlock()

					ctx := context.Background()
					if client.traceID != "" {
						ctx = infrastructure.WithTraceID(ctx, client.traceID)
					}
					h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

// TraceSink adapts the hub to the engine's event sink. Alert-stage events
// are re-typed so observers can subscribe to them without parsing every
// trace frame; everything else flows as a plain trace frame.
func (h *Hub) TraceSink() events.Sink {
	return events.SinkFunc(func(ctx context.Context, ev events.TraceEvent) {
		if ev.TraceID == "" {
			ev.TraceID = infrastructure.GetTraceID(ctx)
		}
		msgType := events.MessageTypeReconcileTrace
		if ev.Stage == events.StageAlert {
			msgType = events.MessageTypeAlert
		}
		h.publish(msgType, ev, ev.TraceID)
	})
}

// BroadcastMarketStatus announces a session transition and the cache sweep
// it triggered.
func (h *Hub) BroadcastMarketStatus(ev events.MarketStatusEvent) {
	h.publish(events.MessageTypeMarketStatus, ev, "")
}

// BroadcastSystemStatus reports overall component health to observers.
func (h *Hub) BroadcastSystemStatus(ev events.SystemStatusEvent) {
	h.publish(events.MessageTypeSystemStatus, ev, "")
}

// publish wraps data in the standard envelope and queues it without
// blocking. Frames overflowing the queue are dropped and counted.
func (h *Hub) publish(msgType events.MessageType, data interface{}, traceID string) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		ctx := context.Background()
		if traceID != "" {
			ctx = infrastructure.WithTraceID(ctx, traceID)
		}
		h.logger.ErrorContext(ctx, "Error marshaling frame",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msgType)))
		return
	}

	select {
	case h.broadcast <- jsonData:
	default:
		h.mu.Lock()
		h.framesDropped++
		dropped := h.framesDropped
		h.mu.Unlock()
		h.logger.Warn("broadcast queue full, dropping frame",
			slog.String("message_type", string(msgType)),
			slog.Int64("frames_dropped", dropped))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop gracefully stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	close(h.metricsQuit)

	// Close all client connections
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// reportMetrics periodically reports hub metrics
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.metricsQuit:
			h.logger.Info("Metrics reporting shutting down")
			return

		case <-ticker.C:
			h.mu.RLock()
			activeClients := len(h.clients)
			totalConnections := h.totalConnections
			messagesSent := h.messagesSent
			framesDropped := h.framesDropped
			h.mu.RUnlock()

			h.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", activeClients),
				slog.Int64("total_connections", totalConnections),
				slog.Int64("messages_sent", messagesSent),
				slog.Int64("frames_dropped", framesDropped),
				slog.Int("broadcast_queue", len(h.broadcast)),
			)
		}
	}
}

// Stats returns current hub counters for diagnostics.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"frames_dropped":    h.framesDropped,
		"clients_dropped":   h.clientsDropped,
	}
}
