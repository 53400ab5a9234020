package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"etfcli/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
	Market     MarketConfig     `yaml:"market" envconfig:"MARKET"`
	Cache      CacheConfig      `yaml:"cache" envconfig:"CACHE"`
	Sources    []SourceConfig   `yaml:"sources"`
	Validation ValidationConfig `yaml:"validation" envconfig:"VALIDATION"`
	Costs      CostsConfig      `yaml:"costs" envconfig:"COSTS"`
	Liquidity  LiquidityConfig  `yaml:"liquidity" envconfig:"LIQUIDITY"`
	Premium    PremiumConfig    `yaml:"premium" envconfig:"PREMIUM"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting for the HTTP surface itself
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	Format     string `yaml:"format" envconfig:"FORMAT"`
	Output     string `yaml:"output" envconfig:"OUTPUT"`
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" envconfig:"COMPRESS"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// MarketConfig describes the exchange trading session the market clock
// resolves against. Open/Close are local wall-clock times in the configured
// timezone. Holidays close the whole day; early closes shorten it.
type MarketConfig struct {
	Timezone    string            `yaml:"timezone" envconfig:"TIMEZONE"`
	Open        string            `yaml:"open" envconfig:"OPEN"`
	Close       string            `yaml:"close" envconfig:"CLOSE"`
	Holidays    []string          `yaml:"holidays" envconfig:"HOLIDAYS"`
	EarlyCloses map[string]string `yaml:"early_closes"`
	// CalendarFile optionally points at a YAML holiday calendar. When set it
	// supersedes the inline Holidays/EarlyCloses lists.
	CalendarFile string `yaml:"calendar_file" envconfig:"CALENDAR_FILE"`
}

// CacheConfig controls snapshot caching and persistence
type CacheConfig struct {
	QuoteTTL   time.Duration `yaml:"quote_ttl" envconfig:"QUOTE_TTL"`
	FactTTL    time.Duration `yaml:"fact_ttl" envconfig:"FACT_TTL"`
	DefaultTTL time.Duration `yaml:"default_ttl" envconfig:"DEFAULT_TTL"`
	MaxEntries int           `yaml:"max_entries" envconfig:"MAX_ENTRIES"`
	// Persist enables the on-disk snapshot store (warm starts and the
	// last-known-good archive survive restarts without it, but only within
	// the process lifetime).
	Persist   bool   `yaml:"persist" envconfig:"PERSIST"`
	DBPath    string `yaml:"db_path" envconfig:"DB_PATH"`
	WarmStart bool   `yaml:"warm_start" envconfig:"WARM_START"`
}

// SourceConfig describes one upstream data provider. Priority is the trust
// order during reconciliation: lower number wins ties.
type SourceConfig struct {
	Name          string        `yaml:"name"`
	Enabled       bool          `yaml:"enabled"`
	Priority      int           `yaml:"priority"`
	RatePerMinute float64       `yaml:"rate_per_minute"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ThresholdPair is a warning/error boundary pair for cross-source
// relative-difference classification.
type ThresholdPair struct {
	Warning float64 `yaml:"warning" envconfig:"WARNING"`
	Error   float64 `yaml:"error" envconfig:"ERROR"`
}

// ValidationConfig holds per-metric cross-source disagreement thresholds.
// Values are relative-difference fractions, not absolute prices.
type ValidationConfig struct {
	ExpenseRatio ThresholdPair `yaml:"expense_ratio" envconfig:"EXPENSE_RATIO"`
	AUM          ThresholdPair `yaml:"aum" envconfig:"AUM"`
	Volume       ThresholdPair `yaml:"volume" envconfig:"VOLUME"`
	Default      ThresholdPair `yaml:"default" envconfig:"DEFAULT"`
}

// ForField returns the threshold pair governing a field's cross-source
// comparison.
func (v ValidationConfig) ForField(f domain.Field) ThresholdPair {
	switch f {
	case domain.FieldExpenseRatio:
		return v.ExpenseRatio
	case domain.FieldAssets:
		return v.AUM
	case domain.FieldAvgDailyVolume:
		return v.Volume
	default:
		return v.Default
	}
}

// AlertThreshold is a warning/alert boundary pair for cost metrics.
type AlertThreshold struct {
	Warning float64 `yaml:"warning" envconfig:"WARNING"`
	Alert   float64 `yaml:"alert" envconfig:"ALERT"`
}

// ImpactTier is one row of the market-impact lookup table: trades up to
// MaxADVFraction of average daily volume use Factor times the spread.
type ImpactTier struct {
	MaxADVFraction float64 `yaml:"max_adv_fraction"`
	Factor         float64 `yaml:"factor"`
}

// CostsConfig holds trading cost thresholds and the impact tier table.
type CostsConfig struct {
	Spread       AlertThreshold `yaml:"spread" envconfig:"SPREAD"`
	MarketImpact AlertThreshold `yaml:"market_impact" envconfig:"MARKET_IMPACT"`
	TotalCost    AlertThreshold `yaml:"total_cost" envconfig:"TOTAL_COST"`
	ImpactTiers  []ImpactTier   `yaml:"impact_tiers"`
}

// LiquidityConfig holds the liquidity score weights. Caps must sum to 100.
type LiquidityConfig struct {
	VolumeCap float64 `yaml:"volume_cap" envconfig:"VOLUME_CAP"`
	SpreadCap float64 `yaml:"spread_cap" envconfig:"SPREAD_CAP"`
	AssetCap  float64 `yaml:"asset_cap" envconfig:"ASSET_CAP"`
}

// PremiumConfig holds premium/discount alerting thresholds.
type PremiumConfig struct {
	Warning float64 `yaml:"warning" envconfig:"WARNING"`
	Error   float64 `yaml:"error" envconfig:"ERROR"`
}

// Load loads configuration with precedence defaults < file < environment.
// path may be empty, in which case the conventional locations are searched.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment overrides everything; ETF_SERVER_PORT etc.
	if err := envconfig.Process("ETF", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML file values onto cfg. Keys absent from the file
// keep their current (default) values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// findConfigFile returns the first config file found in common locations.
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// EnabledSources returns the enabled sources sorted by priority, lowest
// (most trusted) first.
func (c *Config) EnabledSources() []SourceConfig {
	var enabled []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})
	return enabled
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	// Always JSON, always dual output; console-only is a dev override the
	// logger handles, not a config state.
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if _, err := parseSessionTime(c.Market.Open); err != nil {
		return fmt.Errorf("invalid market open %q: %w", c.Market.Open, err)
	}
	if _, err := parseSessionTime(c.Market.Close); err != nil {
		return fmt.Errorf("invalid market close %q: %w", c.Market.Close, err)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Enabled && s.Priority <= 0 {
			return fmt.Errorf("source %q: priority must be positive", s.Name)
		}
	}

	for _, tp := range []struct {
		name string
		pair ThresholdPair
	}{
		{"expense_ratio", c.Validation.ExpenseRatio},
		{"aum", c.Validation.AUM},
		{"volume", c.Validation.Volume},
		{"default", c.Validation.Default},
	} {
		if tp.pair.Warning <= 0 || tp.pair.Error <= tp.pair.Warning {
			return fmt.Errorf("validation thresholds for %s must satisfy 0 < warning < error", tp.name)
		}
	}

	if len(c.Costs.ImpactTiers) == 0 {
		return fmt.Errorf("at least one impact tier is required")
	}
	prev := 0.0
	for i, tier := range c.Costs.ImpactTiers {
		if tier.MaxADVFraction <= prev {
			return fmt.Errorf("impact tier %d: max_adv_fraction must increase (%.4f after %.4f)",
				i, tier.MaxADVFraction, prev)
		}
		if tier.Factor <= 0 {
			return fmt.Errorf("impact tier %d: factor must be positive", i)
		}
		prev = tier.MaxADVFraction
	}

	if c.Liquidity.VolumeCap <= 0 || c.Liquidity.SpreadCap <= 0 || c.Liquidity.AssetCap <= 0 {
		return fmt.Errorf("liquidity score caps must be positive")
	}

	if c.Cache.QuoteTTL <= 0 || c.Cache.FactTTL <= 0 || c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	return nil
}

// parseSessionTime parses an HH:MM wall-clock string.
func parseSessionTime(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: DefaultHTTPTimeout,
			RequestTimeout:  DefaultHTTPTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			Output:     "both",
			FilePath:   "logs/app.log",
			MaxSizeMB:  MaxLogFileSizeMB,
			MaxBackups: MaxLogFileBackups,
			MaxAgeDays: MaxLogFileAge,
			Compress:   true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
			Open:     "09:30",
			Close:    "16:00",
		},
		Cache: CacheConfig{
			QuoteTTL:   DefaultQuoteTTL,
			FactTTL:    DefaultFactTTL,
			DefaultTTL: DefaultCacheTTL,
			MaxEntries: 10000,
			Persist:    true,
			DBPath:     "", // resolved under the data directory when empty
			WarmStart:  true,
		},
		Sources: []SourceConfig{
			{
				Name:          "quotefeed",
				Enabled:       true,
				Priority:      1,
				RatePerMinute: 30,
				Burst:         5,
				CacheTTL:      DefaultQuoteTTL,
				BaseURL:       "https://feed.etfpulse.dev/v1",
				Timeout:       AdapterFetchTimeout,
			},
			{
				Name:          "fundfacts",
				Enabled:       true,
				Priority:      2,
				RatePerMinute: 10,
				Burst:         2,
				CacheTTL:      DefaultFactTTL,
				BaseURL:       "https://funds.etfpulse.dev/v1",
				Timeout:       15 * time.Second,
			},
		},
		Validation: ValidationConfig{
			ExpenseRatio: ThresholdPair{Warning: 0.0001, Error: 0.0005},
			AUM:          ThresholdPair{Warning: 0.10, Error: 0.25},
			Volume:       ThresholdPair{Warning: 0.15, Error: 0.30},
			Default:      ThresholdPair{Warning: 0.001, Error: 0.01},
		},
		Costs: CostsConfig{
			Spread:       AlertThreshold{Warning: 0.002, Alert: 0.005},
			MarketImpact: AlertThreshold{Warning: 0.001, Alert: 0.005},
			TotalCost:    AlertThreshold{Warning: 0.005, Alert: 0.01},
			ImpactTiers: []ImpactTier{
				{MaxADVFraction: 0.01, Factor: 0.10},
				{MaxADVFraction: 0.05, Factor: 0.20},
				{MaxADVFraction: 0.10, Factor: 0.40},
				{MaxADVFraction: 0.20, Factor: 0.80},
			},
		},
		Liquidity: LiquidityConfig{
			VolumeCap: 40,
			SpreadCap: 30,
			AssetCap:  30,
		},
		Premium: PremiumConfig{
			Warning: 0.01,
			Error:   0.03,
		},
	}
}
