// Package config handles loading and validation of application configuration
// from environment variables, and validation of the client and server
// environment key sets shared with the mobile and web clients.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment" validate:"oneof=development production"`
	Port           string      `mapstructure:"PORT" yaml:"port" validate:"required"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	// Context selects which environment key set this process must satisfy.
	Context Context `mapstructure:"CONTEXT" yaml:"context" validate:"oneof=client server"`
}

// DatabaseConfig holds PostgreSQL connection details for the document store.
type DatabaseConfig struct {
	Host           string `mapstructure:"HOST" yaml:"host" validate:"required"`
	Port           int    `mapstructure:"PORT" yaml:"port"`
	User           string `mapstructure:"USER" yaml:"user" validate:"required"`
	Password       string `mapstructure:"PASSWORD" yaml:"password"`
	Name           string `mapstructure:"NAME" yaml:"name" validate:"required"`
	SSLMode        string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxConnections int    `mapstructure:"MAX_CONNECTIONS" yaml:"max_connections" validate:"gte=0"`
	RunMigrations  bool   `mapstructure:"RUN_MIGRATIONS" yaml:"run_migrations"`
}

// URL returns a postgres:// connection URL suitable for pgxpool and golang-migrate.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	Address  string `mapstructure:"ADDRESS" yaml:"address" validate:"required"`
	Password string `mapstructure:"PASSWORD" yaml:"password"`
	DB       int    `mapstructure:"DB" yaml:"db"`
	UseTLS   bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
}

// IdentityConfig holds the identity provider endpoints probed by the health monitor.
type IdentityConfig struct {
	// JWKSURL is the public key set of the identity provider.
	JWKSURL        string `mapstructure:"JWKS_URL" yaml:"jwks_url" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"TIMEOUT_SECONDS" yaml:"timeout_seconds" validate:"gt=0"`
}

// MonitorConfig tunes the health monitor.
type MonitorConfig struct {
	CacheTTLSeconds     int    `mapstructure:"CACHE_TTL_SECONDS" yaml:"cache_ttl_seconds" validate:"gt=0"`
	ProbeTimeoutSeconds int    `mapstructure:"PROBE_TIMEOUT_SECONDS" yaml:"probe_timeout_seconds" validate:"gt=0"`
	ProbeCollection     string `mapstructure:"PROBE_COLLECTION" yaml:"probe_collection" validate:"required"`
}

// RateLimitConfig holds configuration for rate limiting the diagnostics endpoint.
type RateLimitConfig struct {
	DiagnosticsRequestsPerMinute int `mapstructure:"DIAGNOSTICS_REQUESTS_PER_MINUTE" yaml:"diagnostics_requests_per_minute" validate:"gt=0"`
	WindowSeconds                int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds" validate:"gt=0"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server    ServerConfig    `mapstructure:"SERVER" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"DATABASE" yaml:"database"`
	Redis     RedisConfig     `mapstructure:"REDIS" yaml:"redis"`
	Identity  IdentityConfig  `mapstructure:"IDENTITY" yaml:"identity"`
	Monitor   MonitorConfig   `mapstructure:"MONITOR" yaml:"monitor"`
	RateLimit RateLimitConfig `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`

	v *viper.Viper
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// EnvSource exposes the loaded viper instance as a Source for EnvValidator.
func (c *Config) EnvSource() Source {
	return NewViperSource(c.v)
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper,
// sets default values, binds environment variables to config struct fields,
// unmarshals the configuration, and validates it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", string(EnvDevelopment))
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.VERSION", "dev")
	v.SetDefault("SERVER.CONTEXT", string(ContextServer))
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "hydrotrack_dev")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_CONNECTIONS", 5)
	v.SetDefault("DATABASE.RUN_MIGRATIONS", true)
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 3)
	v.SetDefault("IDENTITY.JWKS_URL", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com")
	v.SetDefault("IDENTITY.TIMEOUT_SECONDS", 5)
	v.SetDefault("MONITOR.CACHE_TTL_SECONDS", 30)
	v.SetDefault("MONITOR.PROBE_TIMEOUT_SECONDS", 5)
	v.SetDefault("MONITOR.PROBE_COLLECTION", "health_checks")
	v.SetDefault("RATE_LIMIT.DIAGNOSTICS_REQUESTS_PER_MINUTE", 6)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		// Server config
		{"SERVER.ENVIRONMENT", "ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"SERVER.CONTEXT", "APP_CONTEXT"},
		// Database config
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		{"DATABASE.RUN_MIGRATIONS", "DB_RUN_MIGRATIONS"},
		// Redis config
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		// Identity provider
		{"IDENTITY.JWKS_URL", "IDENTITY_JWKS_URL"},
		{"IDENTITY.TIMEOUT_SECONDS", "IDENTITY_TIMEOUT_SECONDS"},
		// Health monitor
		{"MONITOR.CACHE_TTL_SECONDS", "MONITOR_CACHE_TTL_SECONDS"},
		{"MONITOR.PROBE_TIMEOUT_SECONDS", "MONITOR_PROBE_TIMEOUT_SECONDS"},
		{"MONITOR.PROBE_COLLECTION", "MONITOR_PROBE_COLLECTION"},
		// Rate limit config
		{"RATE_LIMIT.DIAGNOSTICS_REQUESTS_PER_MINUTE", "RATE_LIMIT_DIAGNOSTICS_REQUESTS_PER_MINUTE"},
		{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", v.GetString("SERVER.ENVIRONMENT"),
		"context", v.GetString("SERVER.CONTEXT"),
		"server_port", v.GetString("SERVER.PORT"),
		"db_host", v.GetString("DATABASE.HOST"),
		"redis_address", v.GetString("REDIS.ADDRESS"),
		"allowed_origins", v.GetStringSlice("SERVER.ALLOWED_ORIGINS"),
	)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	cfg.v = v

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info("Configuration validated successfully")
	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid. Field rules
// live in the validate struct tags; cross-field rules are checked here.
func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}

	if cfg.Database.Password == "" {
		log.Warn("Database password is not set. Ensure this is intended (e.g., using trusted auth).")
	}

	return nil
}

// containsWildcard checks if the list of allowed origins contains the wildcard "*".
func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
