package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/arena-auth/internal/api"
	"github.com/mcoot/arena-auth/internal/backend/memory"
	"github.com/mcoot/arena-auth/internal/config"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/dependencies/random"
)

func main() {
	dotenv := config.LoadDotEnv()

	cfg, err := config.LoadDevServer()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	if dotenv {
		logger.Debug("loaded .env")
	}

	// The directory is the whole backend: accounts, sessions and profiles
	clk := clock.New()
	opts := memory.DefaultOptions()
	opts.ProfileLag = cfg.ProfileLag
	opts.RequireEmailConfirmation = cfg.RequireConfirmation
	opts.JWTSecret = []byte(cfg.JWTSecret)
	dir := memory.NewDirectory(opts, clk, random.New(), logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Directory: dir,
		AnonKey:   cfg.AnonKey,
		Clock:     clk,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := server.Listen(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Serve in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	logger.Info("development backend started",
		slog.String("url", server.URL()),
		slog.Int("profile_lag", cfg.ProfileLag),
		slog.Bool("require_confirmation", cfg.RequireConfirmation))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
