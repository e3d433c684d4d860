// Command tvrelay is the entry point for the TradingView-to-Binance webhook
// relay. It loads configuration, validates it, wires dependencies, sets up
// signal handling, and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/tvrelay/internal/app"
	"github.com/alanyoungcy/tvrelay/internal/config"
	"github.com/alanyoungcy/tvrelay/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encryptSecret := flag.Bool("encrypt-secret", false,
		"encrypt the API secret from TVRELAY_BINANCE_API_SECRET with TVRELAY_BINANCE_SECRET_PASSWORD and write it to -out")
	outPath := flag.String("out", "binance-secret.json", "output path for -encrypt-secret")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *encryptSecret {
		if err := runEncryptSecret(*outPath); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("relay starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("effective_config", config.RedactedConfig(cfg)),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("relay stopped")
}

// runEncryptSecret encrypts the API secret from the environment and writes
// the JSON blob to outPath so the plaintext never lands in the config file.
func runEncryptSecret(outPath string) error {
	secret := os.Getenv("TVRELAY_BINANCE_API_SECRET")
	password := os.Getenv("TVRELAY_BINANCE_SECRET_PASSWORD")
	if secret == "" || password == "" {
		return fmt.Errorf("encrypt-secret: TVRELAY_BINANCE_API_SECRET and TVRELAY_BINANCE_SECRET_PASSWORD must be set")
	}

	blob, err := crypto.EncryptSecret(secret, password)
	if err != nil {
		return fmt.Errorf("encrypt-secret: %w", err)
	}
	if err := os.WriteFile(outPath, blob, 0o600); err != nil {
		return fmt.Errorf("encrypt-secret: writing %s: %w", outPath, err)
	}

	fmt.Printf("encrypted secret written to %s\n", outPath)
	return nil
}
