package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/speechgateway/internal/api"
	"github.com/nikhilbhutani/speechgateway/internal/api/handlers"
	"github.com/nikhilbhutani/speechgateway/internal/auth"
	"github.com/nikhilbhutani/speechgateway/internal/cache"
	"github.com/nikhilbhutani/speechgateway/internal/config"
	"github.com/nikhilbhutani/speechgateway/internal/metrics"
	"github.com/nikhilbhutani/speechgateway/internal/queue"
	"github.com/nikhilbhutani/speechgateway/internal/speech"
	"github.com/nikhilbhutani/speechgateway/internal/usage"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	backends, err := config.LoadBackends(cfg.Recognition.BackendsFile)
	if err != nil {
		slog.Error("failed to load backends", "error", err)
		os.Exit(1)
	}
	registry, err := speech.RegistryFromConfig(ctx, backends)
	if err != nil {
		slog.Error("failed to build backend registry", "error", err)
		os.Exit(1)
	}
	slog.Info("backends registered", "count", len(backends.Backends), "languages", registry.Languages())

	deps := api.Dependencies{
		Keys:      auth.NewKeySet(cfg.Auth.APIKeys),
		Registry:  registry,
		Metrics:   metrics.New(),
		Logger:    logger,
		Readiness: map[string]handlers.Pinger{},
	}

	// Usage accounting (optional)
	if cfg.Usage.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, usage counters will fail until it is reachable", "error", err)
		}

		queueClient := queue.NewClient(cfg.Redis)
		defer queueClient.Close()

		counter := cache.NewUsageCounter(rdb)
		deps.Usage = usage.NewService(counter, queueClient)
		deps.Counters = counter
		deps.Readiness["redis"] = counter
	}

	router, err := api.NewRouter(cfg, deps)
	if err != nil {
		slog.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "usage", cfg.Usage.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	router.Close()
	slog.Info("server stopped")
}
