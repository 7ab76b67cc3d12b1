// Package bootstrap builds the health monitor and diagnostics runner from loaded
// configuration. It is shared by the API server and the diagnose command.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/HydroTrack/hydrotrack-backend/config"
	"github.com/HydroTrack/hydrotrack-backend/db"
	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/HydroTrack/hydrotrack-backend/services"
	"github.com/HydroTrack/hydrotrack-backend/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Components holds the long-lived collaborators of a running process.
type Components struct {
	Config      *config.Config
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Health      *services.HealthService
	Diagnostics *services.DiagnosticsService
}

// Options controls which optional connections Build establishes.
type Options struct {
	// SkipRedis leaves Components.Redis nil. The diagnose command does not rate limit.
	SkipRedis bool
	// SkipMigrations ignores DATABASE.RUN_MIGRATIONS.
	SkipMigrations bool
}

// Build connects to the document store (and Redis unless skipped) and creates the
// health and diagnostics services. An unreachable store is not fatal: the health
// monitor reports it instead.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	log := logger.GetLogger()
	c := &Components{Config: cfg}

	poolConfig, err := config.PostgresPoolConfig(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to build database config: %w", err)
	}
	c.Pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if cfg.Database.RunMigrations && !opts.SkipMigrations {
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			log.Warnw("Database migrations failed; document store probes will report it",
				"error", err,
				"database", logger.MaskConnectionString(cfg.Database.URL()))
		}
	}

	if !opts.SkipRedis {
		c.Redis = redis.NewClient(config.RedisOptions(&cfg.Redis))
		if err := config.PingRedis(ctx, c.Redis, 3, time.Second); err != nil {
			log.Warnw("Redis unreachable; diagnostics rate limiting will fail open",
				"address", cfg.Redis.Address, "error", err)
		}
	}

	source := cfg.EnvSource()
	validator := config.NewEnvValidator(source)
	credential, _ := source.Lookup(config.KeyFirebaseServiceAccount)
	identity := services.NewJWKSIdentityService(
		cfg.Identity.JWKSURL,
		credential,
		time.Duration(cfg.Identity.TimeoutSeconds)*time.Second,
	)
	store := postgres.NewDocumentStore(c.Pool)

	c.Health = services.NewHealthService(services.HealthDependencies{
		Validator: validator,
		Gateways:  source,
		Store:     store,
		Identity:  identity,
	}, services.HealthServiceConfig{
		Context:         cfg.Server.Context,
		Version:         cfg.Server.Version,
		CacheTTL:        time.Duration(cfg.Monitor.CacheTTLSeconds) * time.Second,
		ProbeTimeout:    time.Duration(cfg.Monitor.ProbeTimeoutSeconds) * time.Second,
		ProbeCollection: cfg.Monitor.ProbeCollection,
	})

	c.Diagnostics = services.NewDiagnosticsService(services.DiagnosticsDependencies{
		Source:    source,
		Validator: validator,
		Store:     store,
		Identity:  identity,
		Health:    c.Health,
	}, cfg.Server.Context, cfg.Monitor.ProbeCollection)

	return c, nil
}

// Close releases the connections opened by Build.
func (c *Components) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.GetLogger().Warnw("Failed to close Redis client", "error", err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
