// Package configs provides application configuration loaded from a YAML
// file with environment variable overlays. Credentials never live in the
// YAML file; they come from the environment (or a local .env file).
package configs

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds all application configuration.
// Load it once at startup using Load().
type AppConfig struct {
	// Database holds SQLite storage settings.
	Database DatabaseConfig `yaml:"database"`

	// RateLimits holds per-source request budgets and retry settings.
	RateLimits RateLimitsConfig `yaml:"rate_limits"`

	// Currency holds marketplace currency settings.
	Currency CurrencyConfig `yaml:"currency"`

	// Fees holds marketplace transaction cost settings.
	Fees FeesConfig `yaml:"fees"`

	// Risk holds holding-period risk model settings.
	Risk RiskConfig `yaml:"risk"`

	// Puller holds polling daemon settings.
	Puller PullerConfig `yaml:"puller"`

	// Server holds the read-only HTTP API settings.
	Server ServerConfig `yaml:"server"`

	// BuffCookie is the optional Buff session cookie. Environment only
	// (BUFF_COOKIE), never read from the YAML file.
	BuffCookie string `yaml:"-"`
}

// DatabaseConfig holds SQLite storage settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// SourceRateLimit holds the request budget for one marketplace.
type SourceRateLimit struct {
	// RequestsPerMinute caps requests within any rolling 60-second window.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// BackoffBase is the exponential backoff base in seconds
	// (sleep backoff_base^attempt between failed attempts).
	BackoffBase float64 `yaml:"backoff_base"`

	// MaxRetries is the number of attempts per logical API call.
	MaxRetries int `yaml:"max_retries"`
}

// RateLimitsConfig holds per-source budgets.
type RateLimitsConfig struct {
	Steam SourceRateLimit `yaml:"steam"`
	Buff  SourceRateLimit `yaml:"buff"`
}

// CurrencyConfig holds marketplace currency identifiers.
type CurrencyConfig struct {
	// SteamCurrencyID is Steam's numeric currency code.
	SteamCurrencyID int `yaml:"steam_currency_id"`
}

// FeesConfig holds transaction cost settings.
type FeesConfig struct {
	// SteamSaleFee is the fraction Steam keeps from a sale (0.15 = 15%).
	SteamSaleFee float64 `yaml:"steam_sale_fee"`
}

// RiskConfig holds holding-period risk model settings.
type RiskConfig struct {
	// HoldDays is the assumed forced holding period in days.
	HoldDays int `yaml:"hold_days"`

	// Simulations is the Monte Carlo draw count.
	Simulations int `yaml:"n_simulations"`

	// Drift is the assumed daily drift of log-returns.
	Drift float64 `yaml:"drift"`

	// ExecutionProbability discounts the expected PnL in the score.
	ExecutionProbability float64 `yaml:"execution_probability"`

	// RiskAversion scales the VaR penalty in the score (0-1).
	RiskAversion float64 `yaml:"risk_aversion"`

	// MinPnL is the minimum acceptable PnL for a candidate.
	MinPnL float64 `yaml:"min_pnl"`

	// MinProbPositive is the minimum acceptable probability of profit.
	MinProbPositive float64 `yaml:"min_prob_positive"`

	// HistoryWindowDays bounds the price history used for volatility.
	HistoryWindowDays int `yaml:"history_window_days"`
}

// PullerConfig holds polling daemon settings.
type PullerConfig struct {
	// IntervalSeconds is the sleep between fetch cycles.
	IntervalSeconds int `yaml:"interval_seconds"`

	// ItemPauseSeconds is the small pause between per-item steps.
	ItemPauseSeconds int `yaml:"item_pause_seconds"`

	// ItemsToTrack restricts polling to these item IDs (empty = all).
	ItemsToTrack []uint `yaml:"items_to_track"`
}

// ServerConfig holds the read API settings.
type ServerConfig struct {
	// ListenAddr is the gin listen address (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration used when no config file
// is present.
func Default() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: "db/arbitrage.sqlite"},
		RateLimits: RateLimitsConfig{
			Steam: SourceRateLimit{RequestsPerMinute: 10, BackoffBase: 2.0, MaxRetries: 3},
			Buff:  SourceRateLimit{RequestsPerMinute: 20, BackoffBase: 2.0, MaxRetries: 3},
		},
		Currency: CurrencyConfig{SteamCurrencyID: 3},
		Fees:     FeesConfig{SteamSaleFee: 0.15},
		Risk: RiskConfig{
			HoldDays:             7,
			Simulations:          10000,
			Drift:                0,
			ExecutionProbability: 0.6,
			RiskAversion:         0.5,
			MinPnL:               0.5,
			MinProbPositive:      0.6,
			HistoryWindowDays:    7,
		},
		Puller: PullerConfig{IntervalSeconds: 300, ItemPauseSeconds: 1},
		Server: ServerConfig{ListenAddr: ":8080"},
	}
}

// Load reads the YAML config at path, overlays environment variables,
// and validates the result. A missing config file is not an error; the
// defaults apply.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if dbPath := os.Getenv("ARBITRAGE_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if addr := os.Getenv("API_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if interval := getEnvInt("PULLER_INTERVAL_SECONDS", 0); interval > 0 {
		cfg.Puller.IntervalSeconds = interval
	}
	cfg.BuffCookie = os.Getenv("BUFF_COOKIE")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.RateLimits.Steam.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limits.steam.requests_per_minute must be positive")
	}
	if c.RateLimits.Buff.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limits.buff.requests_per_minute must be positive")
	}
	if c.Fees.SteamSaleFee < 0 || c.Fees.SteamSaleFee >= 1 {
		return fmt.Errorf("fees.steam_sale_fee must be in [0, 1)")
	}
	if c.Risk.Simulations <= 0 {
		return fmt.Errorf("risk.n_simulations must be positive")
	}
	if c.Risk.HoldDays <= 0 {
		return fmt.Errorf("risk.hold_days must be positive")
	}
	if c.Puller.IntervalSeconds <= 0 {
		return fmt.Errorf("puller.interval_seconds must be positive")
	}
	return nil
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
