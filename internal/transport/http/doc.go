// Package handlers implements HTTP request handlers for the ETF Pulse web
// service. It provides a thin layer between HTTP transport and the analysis
// services, keeping handlers focused solely on HTTP concerns.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - reconciliation and cost math live below
//	5. Consistent patterns - standardized request/response handling
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Engine
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Endpoints
//
// The analysis handler exposes the reconciled-snapshot surface:
//
//	GET  /api/ticker/{ticker}/snapshot   reconciled field snapshot
//	GET  /api/ticker/{ticker}/costs      trading cost breakdown
//	GET  /api/ticker/{ticker}/liquidity  liquidity score
//	GET  /api/ticker/{ticker}/premium    premium/discount vs indicative value
//	POST /api/rank                       rank several tickers by tradability
//	GET  /api/rank/export                ranking as a downloadable xlsx/csv report
//
// Alongside it sit the cache handler (POST /api/cache/invalidate) and the
// health handler (GET /api/healthz, /api/readyz, /api/version). The Prometheus
// /metrics endpoint is mounted by the application at the router root, outside
// the middleware chain.
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details, produced by the shared
// errors.ErrorHandler:
//
//	{
//	    "type": "https://etfpulse.app/errors/no-data",
//	    "title": "No Data Available",
//	    "status": 404,
//	    "detail": "no usable data for VTI from any source",
//	    "instance": "/api/ticker/VTI/snapshot",
//	    "error_code": "NO_DATA_AVAILABLE"
//	}
//
// A partial snapshot is not an error: missing fields are absent keys in a 200
// response, never zero-filled. Only a snapshot with no usable fields at all
// renders NO_DATA_AVAILABLE.
//
// # Request Validation
//
// Request DTOs from pkg/contracts/api/v1 carry go-playground/validator tags.
// Handlers validate after decoding and render failures as a 400
// VALIDATION_ERROR envelope listing the offending fields.
//
// # Testing
//
// Handlers are tested using httptest:
//
//	- Mock service dependencies
//	- Test various HTTP scenarios
//	- Verify error envelope codes
//	- Check content negotiation on exports
package http
