package config

import "time"

// Shared defaults. Default() and the path helpers read these so the server,
// the report command and the tests agree on one set of values.
const (
	// HTTP surface rate limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	AdapterFetchTimeout = 10 * time.Second

	// WebSocket heartbeat and buffers
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// File paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultReportsDir = "data/reports"

	// Cache TTLs by field volatility
	DefaultQuoteTTL = 1 * time.Minute
	DefaultFactTTL  = 24 * time.Hour
	DefaultCacheTTL = 15 * time.Minute

	// Log settings
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	MaxLogFileSizeMB  = 100
	MaxLogFileAge     = 30 // days
	MaxLogFileBackups = 10
)
