// Package app provides application initialization and lifecycle management
// for the ETF market-data service. It handles the orchestration of all major
// components including configuration loading, service initialization, and
// graceful shutdown procedures.
//
// # Architecture
//
// The app package follows a dependency injection pattern where all components
// are wired together at startup. The data path is assembled bottom-up:
// persistence, market clock, snapshot cache, source adapters, then the
// reconciliation engine, the analysis services and the HTTP surface on top.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and observability
//	3. Open the snapshot store and build the market clock
//	4. Wire the cache, source adapters and reconciliation engine
//	5. Set up HTTP handlers and middleware
//	6. Configure and start the HTTP server
//	7. Set up graceful shutdown handlers
//
// # Background Loops
//
// Three loops run for the life of the server: one wakes at every market
// close to drop close-scoped cache entries and notify WebSocket observers,
// one periodically sweeps expired entries out of the cache, and one samples
// Go runtime statistics into the meter.
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication(configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The package handles SIGINT and SIGTERM signals to ensure:
//
//	- Active requests are completed
//	- WebSocket connections are closed cleanly
//	- The snapshot database is closed
//	- Final metrics are flushed
//
// # Error Handling
//
// All initialization errors are returned to the caller for proper
// handling. The app does not call os.Exit() directly, allowing
// the main function to control the exit process.
package app
