package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/coin-collector/internal/api"
	"github.com/maltedev/coin-collector/internal/app"
	"github.com/maltedev/coin-collector/internal/config"
	"github.com/maltedev/coin-collector/internal/runs"
	"github.com/maltedev/coin-collector/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	logger := logger.New(cfg.Logging.Level, "json")

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis stream and run history
	sc, err := app.OpenSideChannels(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open side channels", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// Browser setup
	session, err := app.Launch(cfg, nil, logger)
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	manager := runs.NewManager(session.Collector, sc.Publisher, sc.Recorder, logger)
	handlers := api.NewHandlers(manager, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Error("run did not stop in time", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	<-stopped
	logger.Info("server stopped")
}
