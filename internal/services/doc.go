// Package services implements the business logic layer between the HTTP
// handlers and the reconciliation/analytics engines. It keeps orchestration
// decisions (which fields an analysis needs, how a ranking degrades when one
// ticker fails) out of both the transport and the engines.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Per-item degradation: a batch never fails because one member did
//
// # Common Service Pattern
//
// Services take their collaborators as interfaces defined here, on the
// consumer side:
//
//	type AnalysisService struct {
//	    engine   SnapshotProvider
//	    analyzer CostAnalyzer
//	    logger   *slog.Logger
//	}
//
// # Available Services
//
//	- AnalysisService: snapshots, trading costs, liquidity scores,
//	  premium/discount, and multi-ticker tradability rankings
//	- HealthService: liveness and readiness checks over the cache,
//	  persistence, adapter registry, and websocket hub
//
// # Error Handling
//
// Services pass engine errors through unchanged (NoDataAvailable stays
// recognizable via errors.Is/As for the HTTP mapping) and translate analysis
// preconditions into the application error taxonomy.
package services
