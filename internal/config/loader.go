package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TVRELAY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TVRELAY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "TVRELAY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TVRELAY_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TVRELAY_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TVRELAY_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TVRELAY_SERVER_RATE_WINDOW")

	// ── Relay ──
	setStr(&cfg.Relay.Passphrase, "TVRELAY_RELAY_PASSPHRASE")
	setStr(&cfg.Relay.MissingIDPolicy, "TVRELAY_RELAY_MISSING_ID_POLICY")
	setFloat64(&cfg.Relay.NotionalUSDT, "TVRELAY_RELAY_NOTIONAL_USDT")
	setInt(&cfg.Relay.Leverage, "TVRELAY_RELAY_LEVERAGE")
	setFloat64(&cfg.Relay.MinQty, "TVRELAY_RELAY_MIN_QTY")
	setBool(&cfg.Relay.AllowShortOnSell, "TVRELAY_RELAY_ALLOW_SHORT_ON_SELL")
	setBool(&cfg.Relay.DryRun, "TVRELAY_RELAY_DRY_RUN")
	setDuration(&cfg.Relay.DedupTTL, "TVRELAY_RELAY_DEDUP_TTL")
	setDuration(&cfg.Relay.PnLWindow, "TVRELAY_RELAY_PNL_WINDOW")

	// ── Binance ──
	setStr(&cfg.Binance.BaseURL, "TVRELAY_BINANCE_BASE_URL")
	setStr(&cfg.Binance.APIKey, "TVRELAY_BINANCE_API_KEY")
	setStr(&cfg.Binance.APISecret, "TVRELAY_BINANCE_API_SECRET")
	setStr(&cfg.Binance.EncryptedSecretPath, "TVRELAY_BINANCE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Binance.SecretPassword, "TVRELAY_BINANCE_SECRET_PASSWORD")
	setInt64(&cfg.Binance.RecvWindowMS, "TVRELAY_BINANCE_RECV_WINDOW_MS")
	setInt(&cfg.Binance.TimeoutSeconds, "TVRELAY_BINANCE_TIMEOUT_SECONDS")
	setInt(&cfg.Binance.QtyPrecision, "TVRELAY_BINANCE_QTY_PRECISION")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TVRELAY_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TVRELAY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TVRELAY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TVRELAY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TVRELAY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TVRELAY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TVRELAY_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TVRELAY_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TVRELAY_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TVRELAY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TVRELAY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TVRELAY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TVRELAY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TVRELAY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TVRELAY_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TVRELAY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TVRELAY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TVRELAY_POSTGRES_RUN_MIGRATIONS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TVRELAY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TVRELAY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TVRELAY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TVRELAY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TVRELAY_MODE")
	setStr(&cfg.LogLevel, "TVRELAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
