package config

import (
	"os"
	"testing"

	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.IsTest = true
	os.Exit(m.Run())
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
	}{
		{
			name:        "defaults",
			envVars:     map[string]string{},
			expectError: false,
		},
		{
			name: "production client context",
			envVars: map[string]string{
				"ENVIRONMENT":     "production",
				"APP_CONTEXT":     "client",
				"PORT":            "9090",
				"ALLOWED_ORIGINS": "https://app.hydrotrack.io",
			},
			expectError: false,
		},
		{
			name:        "unknown context",
			envVars:     map[string]string{"APP_CONTEXT": "kiosk"},
			expectError: true,
		},
		{
			name:        "unknown environment",
			envVars:     map[string]string{"ENVIRONMENT": "staging"},
			expectError: true,
		},
		{
			name:        "invalid origin",
			envVars:     map[string]string{"ALLOWED_ORIGINS": "not a url"},
			expectError: true,
		},
		{
			name:        "malformed identity url",
			envVars:     map[string]string{"IDENTITY_JWKS_URL": "not a url"},
			expectError: true,
		},
		{
			name:        "non-positive cache ttl",
			envVars:     map[string]string{"MONITOR_CACHE_TTL_SECONDS": "0"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := LoadConfig()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			if env, ok := tt.envVars["ENVIRONMENT"]; ok {
				assert.Equal(t, Environment(env), cfg.Server.Environment)
				assert.True(t, cfg.IsProduction())
			} else {
				assert.True(t, cfg.IsDevelopment())
			}
			if port, ok := tt.envVars["PORT"]; ok {
				assert.Equal(t, port, cfg.Server.Port)
			}
			if ctx, ok := tt.envVars["APP_CONTEXT"]; ok {
				assert.Equal(t, Context(ctx), cfg.Server.Context)
			} else {
				assert.Equal(t, ContextServer, cfg.Server.Context)
			}
			assert.Equal(t, 30, cfg.Monitor.CacheTTLSeconds)
		})
	}
}

func TestValidateConfig_ReportsEveryField(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Environment: EnvDevelopment, Port: "8080", Context: ContextServer, AllowedOrigins: []string{"*"}},
		Database:  DatabaseConfig{Host: "db", User: "hydro", Name: "hydrotrack", Password: "secret"},
		Redis:     RedisConfig{Address: "localhost:6379"},
		Identity:  IdentityConfig{TimeoutSeconds: 5},
		Monitor:   MonitorConfig{CacheTTLSeconds: 0, ProbeTimeoutSeconds: 5},
		RateLimit: RateLimitConfig{DiagnosticsRequestsPerMinute: 6, WindowSeconds: 60},
	}

	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Monitor.CacheTTLSeconds")
	assert.Contains(t, err.Error(), "Config.Monitor.ProbeCollection")

	cfg.Monitor.CacheTTLSeconds = 30
	cfg.Monitor.ProbeCollection = "health_checks"
	assert.NoError(t, validateConfig(cfg))
}

func TestConfig_EnvSource(t *testing.T) {
	t.Setenv(KeyFirebaseServiceAccount, `{"client_email":"svc@example.com"}`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	v := NewEnvValidator(cfg.EnvSource())
	assert.True(t, v.IsValid(ContextServer))
}

func TestDatabaseConfig_URL(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "hydro", Password: "p@ss word", Name: "hydrotrack"}
	assert.Equal(t, "postgres://hydro:p%40ss+word@db:5432/hydrotrack?sslmode=disable", c.URL())

	c.SSLMode = "require"
	assert.Contains(t, c.URL(), "sslmode=require")
}
