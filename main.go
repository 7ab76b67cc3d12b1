package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/HydroTrack/hydrotrack-backend/handlers"
	"github.com/HydroTrack/hydrotrack-backend/internal/bootstrap"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/HydroTrack/hydrotrack-backend/router"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	// Wait for interrupt signal to gracefully shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		logger.SetMode(logger.ModeProduction)
	}

	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer components.Close()

	healthHandler := handlers.NewHealthHandler(components.Health, components.Diagnostics)

	r := router.SetupRouter(router.Dependencies{
		Config:        cfg,
		HealthHandler: healthHandler,
		ErrorRecorder: components.Health,
		Redis:         components.Redis,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"context", cfg.Server.Context,
			"version", cfg.Server.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, draining connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown failed", "error", err)
	}
	log.Info("Server stopped")
}
