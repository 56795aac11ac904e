// Package config loads service configuration in three layers:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the variable that points at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "/etc/match-engine/config.yaml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Matching  MatchingConfig  `koanf:"matching"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Redis     RedisConfig     `koanf:"redis"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	Environment     string        `koanf:"environment"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type MatchingConfig struct {
	OverFetchFactor       int           `koanf:"over_fetch_factor"`
	MaxLimit              int           `koanf:"max_limit"`
	DefaultLimit          int           `koanf:"default_limit"`
	MaxPageSize           int           `koanf:"max_page_size"`
	DefaultPageSize       int           `koanf:"default_page_size"`
	CandidateFetchTimeout time.Duration `koanf:"candidate_fetch_timeout"`
	AttributeTimeout      time.Duration `koanf:"attribute_timeout"`
	BatchWait             time.Duration `koanf:"batch_wait"`
}

type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

type RedisConfig struct {
	// Addr empty disables the cross-instance event relay.
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// Default returns the built-in settings every layer starts from.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			URL:             "user=admin password=password dbname=interlinkdb sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Matching: MatchingConfig{
			OverFetchFactor:       3,
			MaxLimit:              100,
			DefaultLimit:          10,
			MaxPageSize:           100,
			DefaultPageSize:       20,
			CandidateFetchTimeout: 2 * time.Second,
			AttributeTimeout:      500 * time.Millisecond,
			BatchWait:             2 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			MaxRequests:         3,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
		},
		Redis: RedisConfig{
			Channel: "match-events",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3001"},
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 120,
			Window:   time.Minute,
		},
	}
}

// IsProduction reports whether GO_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Server.Environment) {
	case "prod", "production":
		return true
	}
	return false
}

// Load builds the configuration. Precedence: env > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"cors.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings keeps the variable names the service has always used.
var envMappings = map[string]string{
	"port":                             "server.port",
	"go_env":                           "server.environment",
	"server_read_timeout":              "server.read_timeout",
	"server_write_timeout":             "server.write_timeout",
	"server_shutdown_timeout":          "server.shutdown_timeout",
	"database_driver":                  "database.driver",
	"database_url":                     "database.url",
	"database_max_open_conns":          "database.max_open_conns",
	"database_max_idle_conns":          "database.max_idle_conns",
	"database_conn_max_lifetime":       "database.conn_max_lifetime",
	"database_auto_migrate":            "database.auto_migrate",
	"jwt_secret":                       "auth.jwt_secret",
	"matching_over_fetch_factor":       "matching.over_fetch_factor",
	"matching_max_limit":               "matching.max_limit",
	"matching_default_limit":           "matching.default_limit",
	"matching_max_page_size":           "matching.max_page_size",
	"matching_default_page_size":       "matching.default_page_size",
	"matching_candidate_fetch_timeout": "matching.candidate_fetch_timeout",
	"matching_attribute_timeout":       "matching.attribute_timeout",
	"matching_batch_wait":              "matching.batch_wait",
	"breaker_enabled":                  "breaker.enabled",
	"breaker_max_requests":             "breaker.max_requests",
	"breaker_interval":                 "breaker.interval",
	"breaker_timeout":                  "breaker.timeout",
	"breaker_consecutive_failures":     "breaker.consecutive_failures",
	"redis_addr":                       "redis.addr",
	"redis_password":                   "redis.password",
	"redis_db":                         "redis.db",
	"redis_channel":                    "redis.channel",
	"cors_allowed_origins":             "cors.allowed_origins",
	"rate_limit_enabled":               "rate_limit.enabled",
	"rate_limit_requests":              "rate_limit.requests",
	"rate_limit_window":                "rate_limit.window",
	"log_level":                        "logging.level",
}

// envTransformFunc maps an environment variable to its koanf path. Unknown
// variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
