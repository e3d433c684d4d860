// Package config defines the top-level configuration for the relay and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TVRELAY_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Relay    RelayConfig    `toml:"relay"`
	Binance  BinanceConfig  `toml:"binance"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the read API (/api/executions, /api/pnl). Empty
	// disables authentication on those routes.
	APIKey string `toml:"api_key"`
	// RateLimit caps webhook requests per client IP per RateWindow.
	// Zero disables rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// RelayConfig holds signal-routing and order-sizing parameters.
type RelayConfig struct {
	// Passphrase is the shared secret TradingView alerts must carry.
	Passphrase string `toml:"passphrase"`
	// MissingIDPolicy is "process" (assign a fresh UUID to id-less
	// alerts) or "sentinel" (use the literal "null" so they dedupe
	// against each other).
	MissingIDPolicy string `toml:"missing_id_policy"`
	// NotionalUSDT is the margin per order before leverage.
	NotionalUSDT float64 `toml:"notional_usdt"`
	Leverage     int     `toml:"leverage"`
	MinQty       float64 `toml:"min_qty"`
	// AllowShortOnSell opens a short when a sell signal arrives with no
	// long position to close.
	AllowShortOnSell bool `toml:"allow_short_on_sell"`
	// DryRun logs decisions without sending orders.
	DryRun   bool     `toml:"dry_run"`
	DedupTTL duration `toml:"dedup_ttl"`
	// PnLWindow is the lookback for the realized-PnL log line after a
	// closing order.
	PnLWindow duration `toml:"pnl_window"`
}

// BinanceConfig holds Binance USDⓈ-M futures API parameters.
type BinanceConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	// EncryptedSecretPath points at a JSON file produced by the
	// encrypt-secret command; used when api_secret is empty.
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
	RecvWindowMS        int64  `toml:"recv_window_ms"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	QtyPrecision        int    `toml:"qty_precision"`
}

// RedisConfig holds Redis connection parameters. Redis backs the alert
// dedup guard, webhook rate limiting, and the WebSocket event bus; when
// disabled the relay falls back to in-process equivalents.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the execution
// audit store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{},
			RateLimit:   60,
			RateWindow:  duration{time.Minute},
		},
		Relay: RelayConfig{
			MissingIDPolicy:  "process",
			NotionalUSDT:     50.0,
			Leverage:         1,
			MinQty:           0.001,
			AllowShortOnSell: false,
			DryRun:           false,
			DedupTTL:         duration{2 * time.Minute},
			PnLWindow:        duration{10 * time.Minute},
		},
		Binance: BinanceConfig{
			BaseURL:        "https://fapi.binance.com",
			RecvWindowMS:   5000,
			TimeoutSeconds: 15,
			QtyPrecision:   3,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "tvrelay",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Notify: NotifyConfig{
			Events: []string{"order_executed", "order_failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"check": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validMissingIDPolicies enumerates the accepted values for
// RelayConfig.MissingIDPolicy.
var validMissingIDPolicies = map[string]bool{
	"process":  true,
	"sentinel": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, check)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	// Relay
	if c.Relay.Passphrase == "" {
		errs = append(errs, "relay: passphrase must not be empty")
	}
	if !validMissingIDPolicies[strings.ToLower(c.Relay.MissingIDPolicy)] {
		errs = append(errs, fmt.Sprintf("relay: unknown missing_id_policy %q (valid: process, sentinel)", c.Relay.MissingIDPolicy))
	}
	if c.Relay.NotionalUSDT <= 0 {
		errs = append(errs, "relay: notional_usdt must be > 0")
	}
	if c.Relay.Leverage < 1 {
		errs = append(errs, "relay: leverage must be >= 1")
	}
	if c.Relay.MinQty <= 0 {
		errs = append(errs, "relay: min_qty must be > 0")
	}
	if c.Relay.DedupTTL.Duration <= 0 {
		errs = append(errs, "relay: dedup_ttl must be > 0")
	}

	// Binance — key and secret must be set together, or both empty
	// (credential-less mode skips live orders).
	hasKey := c.Binance.APIKey != ""
	hasSecret := c.Binance.APISecret != "" || c.Binance.EncryptedSecretPath != ""
	if hasKey != hasSecret {
		errs = append(errs, "binance: api_key and api_secret (or encrypted_secret_path) must be set together")
	}
	if c.Binance.EncryptedSecretPath != "" && c.Binance.SecretPassword == "" {
		errs = append(errs, "binance: secret_password is required when encrypted_secret_path is set")
	}
	if c.Binance.BaseURL == "" {
		errs = append(errs, "binance: base_url must not be empty")
	}
	if c.Binance.RecvWindowMS <= 0 {
		errs = append(errs, "binance: recv_window_ms must be > 0")
	}
	if c.Binance.TimeoutSeconds <= 0 {
		errs = append(errs, "binance: timeout_seconds must be > 0")
	}
	if c.Binance.QtyPrecision < 0 || c.Binance.QtyPrecision > 8 {
		errs = append(errs, fmt.Sprintf("binance: qty_precision must be 0-8, got %d", c.Binance.QtyPrecision))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
