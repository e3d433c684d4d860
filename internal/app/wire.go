package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tvrelay/internal/cache/redis"
	"github.com/alanyoungcy/tvrelay/internal/config"
	"github.com/alanyoungcy/tvrelay/internal/crypto"
	"github.com/alanyoungcy/tvrelay/internal/domain"
	"github.com/alanyoungcy/tvrelay/internal/executor"
	"github.com/alanyoungcy/tvrelay/internal/notify"
	"github.com/alanyoungcy/tvrelay/internal/platform/binance"
	"github.com/alanyoungcy/tvrelay/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Exchange client; always non-nil, may be unconfigured.
	Exchange *binance.Client

	// Guard deduplicates alerts. Redis-backed when Redis is enabled,
	// otherwise the in-process dedup below.
	Guard domain.AlertGuard
	// Dedup is the in-process guard; nil when Redis handles dedup.
	Dedup *executor.Dedup

	// Redis-backed extras; nil when Redis is disabled.
	RedisClient *redis.Client
	RateLimiter domain.RateLimiter
	EventBus    domain.EventBus

	// Postgres-backed audit store; nil when Postgres is disabled.
	PgClient       *postgres.Client
	ExecutionStore domain.ExecutionStore

	// Notifications
	Notifier *notify.Notifier

	// Router turns alerts into orders.
	Router *executor.Router
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Binance exchange client ---
	apiSecret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           cfg.Binance.APISecret,
		EncryptedSecretPath: cfg.Binance.EncryptedSecretPath,
		SecretPassword:      cfg.Binance.SecretPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: binance secret: %w", err)
	}
	deps.Exchange = binance.NewClient(binance.Config{
		BaseURL:      cfg.Binance.BaseURL,
		APIKey:       cfg.Binance.APIKey,
		APISecret:    apiSecret,
		RecvWindowMS: cfg.Binance.RecvWindowMS,
		Timeout:      time.Duration(cfg.Binance.TimeoutSeconds) * time.Second,
		QtyPrecision: cfg.Binance.QtyPrecision,
	}, logger)
	if !deps.Exchange.Configured() {
		logger.Warn("wire: binance credentials missing, orders will be skipped")
	}

	// --- Redis (dedup guard, rate limiter, event bus) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RedisClient = redisClient
		deps.Guard = redis.NewAlertGuard(redisClient, cfg.Relay.DedupTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
	} else {
		deps.Dedup = executor.NewDedup(cfg.Relay.DedupTTL.Duration)
		deps.Guard = deps.Dedup
	}

	// --- PostgreSQL execution audit store ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.PgClient = pgClient
		deps.ExecutionStore = postgres.NewExecutionStore(pgClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Signal router ---
	router := executor.NewRouter(deps.Exchange, deps.Guard, executor.Config{
		NotionalUSDT:     cfg.Relay.NotionalUSDT,
		Leverage:         cfg.Relay.Leverage,
		MinQty:           cfg.Relay.MinQty,
		AllowShortOnSell: cfg.Relay.AllowShortOnSell,
		DryRun:           cfg.Relay.DryRun,
		PnLWindow:        cfg.Relay.PnLWindow.Duration,
	}, logger)
	if deps.ExecutionStore != nil {
		router.SetExecutionStore(deps.ExecutionStore)
	}
	if deps.EventBus != nil {
		router.SetEventBus(deps.EventBus)
	}
	if len(senders) > 0 {
		router.SetNotifier(deps.Notifier)
	}
	deps.Router = router

	return deps, cleanup, nil
}
