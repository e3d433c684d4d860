package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tvrelay/internal/server"
	"github.com/alanyoungcy/tvrelay/internal/server/handler"
	"github.com/alanyoungcy/tvrelay/internal/server/ws"
)

// dedupCleanupInterval is how often the in-process dedup guard evicts
// expired alert IDs.
const dedupCleanupInterval = time.Minute

// ServeMode runs the webhook relay: the HTTP server, the WebSocket hub when
// the event bus is available, and the dedup cleanup loop. It blocks until the
// context is cancelled or a component fails.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub — requires the Redis event bus.
	var hub *ws.Hub
	if deps.EventBus != nil {
		hub = ws.NewHub(deps.EventBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "redis disabled, /ws endpoint not registered")
	}

	webhookH := handler.NewWebhookHandler(handler.WebhookConfig{
		Passphrase:      a.cfg.Relay.Passphrase,
		MissingIDPolicy: a.cfg.Relay.MissingIDPolicy,
	}, deps.Router, a.logger)
	if deps.EventBus != nil {
		webhookH.SetEventBus(deps.EventBus)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		Limiter:     deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Webhook:    webhookH,
		Executions: handler.NewExecutionHandler(deps.ExecutionStore, a.logger),
		PnL:        handler.NewPnLHandler(deps.Exchange, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// In-process dedup needs periodic eviction; Redis handles its own TTLs.
	if deps.Dedup != nil {
		g.Go(func() error {
			ticker := time.NewTicker(dedupCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					deps.Dedup.Cleanup()
				}
			}
		})
	}

	return g.Wait()
}

// CheckMode verifies connectivity to every configured dependency and exits.
// It is intended for deploy-time smoke tests.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting check mode")

	var failures int

	if err := deps.Exchange.Ping(ctx); err != nil {
		a.logger.ErrorContext(ctx, "check: binance ping failed",
			slog.String("error", err.Error()),
		)
		failures++
	} else {
		a.logger.InfoContext(ctx, "check: binance reachable")
	}

	if deps.Exchange.Configured() {
		a.logger.InfoContext(ctx, "check: binance credentials present")
	} else {
		a.logger.WarnContext(ctx, "check: binance credentials missing, relay would run in skip mode")
	}

	if deps.RedisClient != nil {
		if err := deps.RedisClient.Ping(ctx); err != nil {
			a.logger.ErrorContext(ctx, "check: redis ping failed",
				slog.String("error", err.Error()),
			)
			failures++
		} else {
			a.logger.InfoContext(ctx, "check: redis ok")
		}
	}

	if deps.PgClient != nil {
		if err := deps.PgClient.Ping(ctx); err != nil {
			a.logger.ErrorContext(ctx, "check: postgres ping failed",
				slog.String("error", err.Error()),
			)
			failures++
		} else {
			a.logger.InfoContext(ctx, "check: postgres ok")
		}
	}

	if failures > 0 {
		return fmt.Errorf("app: check failed for %d dependencies", failures)
	}

	a.logger.InfoContext(ctx, "check: all configured dependencies reachable")
	return nil
}
