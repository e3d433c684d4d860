// Package server wires HTTP routing, middleware, and the WebSocket hub for
// the relay's API surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tvrelay/internal/domain"
	"github.com/alanyoungcy/tvrelay/internal/server/handler"
	"github.com/alanyoungcy/tvrelay/internal/server/middleware"
	"github.com/alanyoungcy/tvrelay/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, API authentication is disabled

	// Webhook rate limiting; disabled when Limiter is nil or Limit <= 0.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Webhook    *handler.WebhookHandler
	Executions *handler.ExecutionHandler
	PnL        *handler.PnLHandler
}

// Server is the headless HTTP + WebSocket API server for the relay.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// The webhook endpoint authenticates via the alert passphrase and is rate
// limited per client IP; the /api routes (except health) require the API key.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Alert ingestion endpoint, authenticated by passphrase inside the
	// payload rather than the API key.
	var webhook http.Handler = http.HandlerFunc(handlers.Webhook.HandleWebhook)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		webhook = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)(webhook)
	}
	mux.Handle("POST /webhook", webhook)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Authenticated API routes.
	auth := middleware.Auth(cfg.APIKey)
	mux.Handle("GET /api/executions", auth(http.HandlerFunc(handlers.Executions.ListExecutions)))
	mux.Handle("GET /api/executions/{id}", auth(http.HandlerFunc(handlers.Executions.GetExecution)))
	mux.Handle("GET /api/pnl", auth(http.HandlerFunc(handlers.PnL.GetPnL)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
