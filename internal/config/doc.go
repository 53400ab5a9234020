// Package config provides centralized configuration management for ETF Pulse.
// It handles loading configuration from multiple sources, validation, and
// provides a type-safe API for accessing configuration values throughout the
// application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern ETF_* for namespacing:
//
//	ETF_SERVER_PORT=8080
//	ETF_LOGGING_LEVEL=debug
//	ETF_MARKET_TIMEZONE=America/New_York
//	ETF_CACHE_QUOTE_TTL=30s
//
// Per-source settings (priority, rate limits, base URLs) are list-valued and
// therefore file-only.
//
// # Domain Configuration
//
// Beyond the usual server/logging blocks, the config carries the knobs the
// reliability core runs on: source priorities and rate limits, cross-source
// validation thresholds, trading-cost alert thresholds, the market-impact
// tier table, liquidity score weights, and the exchange session calendar.
// All of them ship with working defaults; treat the validation thresholds as
// defaults to tune, not as business rules.
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which resolves all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	db := paths.SnapshotDB
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
