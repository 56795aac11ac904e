package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Matching.OverFetchFactor)
	assert.Equal(t, 10, cfg.Matching.DefaultLimit)
	assert.Equal(t, 20, cfg.Matching.DefaultPageSize)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3001"}, cfg.CORS.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("MATCHING_OVER_FETCH_FACTOR", "5")
	t.Setenv("MATCHING_ATTRIBUTE_TIMEOUT", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Matching.OverFetchFactor)
	assert.Equal(t, 250*time.Millisecond, cfg.Matching.AttributeTimeout)
	assert.Equal(t, 2*time.Second, cfg.Matching.CandidateFetchTimeout, "untouched keys keep defaults")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	opts := cfg.EngineOptions()
	assert.Equal(t, 5, opts.OverFetchFactor)
	assert.Equal(t, 250*time.Millisecond, opts.AttributeTimeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
matching:
  max_limit: 40
  default_limit: 15
breaker:
  consecutive_failures: 9
`), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("MATCHING_MAX_LIMIT", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Matching.MaxLimit, "env wins over file")
	assert.Equal(t, 15, cfg.Matching.DefaultLimit)
	assert.Equal(t, uint32(9), cfg.BreakerSettings().ConsecutiveFailures)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without url", func(c *Config) { c.Database.URL = " " }},
		{"production without secret", func(c *Config) { c.Server.Environment = "production" }},
		{"zero over-fetch", func(c *Config) { c.Matching.OverFetchFactor = 0 }},
		{"default above max", func(c *Config) { c.Matching.DefaultLimit = 500 }},
		{"zero page size", func(c *Config) { c.Matching.MaxPageSize = 0 }},
		{"zero timeout", func(c *Config) { c.Matching.AttributeTimeout = 0 }},
		{"breaker without threshold", func(c *Config) { c.Breaker.ConsecutiveFailures = 0 }},
		{"rate limit without window", func(c *Config) { c.RateLimit.Window = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvTransformSkipsUnknown(t *testing.T) {
	assert.Equal(t, "server.port", envTransformFunc("PORT"))
	assert.Equal(t, "auth.jwt_secret", envTransformFunc("JWT_SECRET"))
	assert.Equal(t, "", envTransformFunc("HOME"))
}
