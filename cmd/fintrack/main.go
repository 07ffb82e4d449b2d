package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(ctx, backend.ConfigFromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	st := store.New(result.Persister)
	if err := st.Load(ctx); err != nil {
		logger.Error("Failed to load persisted state", "error", err)
		os.Exit(1)
	}

	// Without a sync ledger the service degrades to plain store writes.
	var ledger services.SyncLedger
	var publisher services.SyncPublisher
	if result.Ledger != nil {
		ledger = result.Ledger
	}
	if result.AMQP != nil {
		publisher = result.AMQP
	}
	txService := services.NewTransactionService(st, ledger, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, st, txService)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Request-scoped loggers, honoring an upstream proxy's request ID.
	httpLogger := logger.WithComponent(applog.ComponentHTTP)
	handler := applog.RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-Id")
	})(srv.Handler)
	srv.Handler = applog.Middleware(httpLogger)(handler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
