package config

import (
	"errors"
	"fmt"
	"strings"

	"gitea.kood.tech/petrkubec/match-engine/match"
	"gitea.kood.tech/petrkubec/match-engine/store"
)

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}

	switch c.Database.Driver {
	case "postgres":
		if strings.TrimSpace(c.Database.URL) == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required in production"))
	}

	m := c.Matching
	if m.OverFetchFactor < 1 {
		errs = append(errs, fmt.Errorf("matching.over_fetch_factor must be positive, got %d", m.OverFetchFactor))
	}
	if m.MaxLimit < 1 {
		errs = append(errs, fmt.Errorf("matching.max_limit must be positive, got %d", m.MaxLimit))
	}
	if m.DefaultLimit < 1 || m.DefaultLimit > m.MaxLimit {
		errs = append(errs, fmt.Errorf("matching.default_limit must be 1-%d, got %d", m.MaxLimit, m.DefaultLimit))
	}
	if m.MaxPageSize < 1 {
		errs = append(errs, fmt.Errorf("matching.max_page_size must be positive, got %d", m.MaxPageSize))
	}
	if m.DefaultPageSize < 1 || m.DefaultPageSize > m.MaxPageSize {
		errs = append(errs, fmt.Errorf("matching.default_page_size must be 1-%d, got %d", m.MaxPageSize, m.DefaultPageSize))
	}
	if m.CandidateFetchTimeout <= 0 || m.AttributeTimeout <= 0 || m.BatchWait <= 0 {
		errs = append(errs, errors.New("matching timeouts and batch_wait must be positive"))
	}

	if c.Breaker.Enabled && c.Breaker.ConsecutiveFailures == 0 {
		errs = append(errs, errors.New("breaker.consecutive_failures must be positive"))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}

	return errors.Join(errs...)
}

// EngineOptions translates the matching section for match.NewEngine.
func (c *Config) EngineOptions() match.Options {
	return match.Options{
		OverFetchFactor:       c.Matching.OverFetchFactor,
		MaxLimit:              c.Matching.MaxLimit,
		MaxPageSize:           c.Matching.MaxPageSize,
		CandidateFetchTimeout: c.Matching.CandidateFetchTimeout,
		AttributeTimeout:      c.Matching.AttributeTimeout,
		BatchWait:             c.Matching.BatchWait,
	}
}

// BreakerSettings translates the breaker section.
func (c *Config) BreakerSettings() match.BreakerConfig {
	return match.BreakerConfig{
		Name:                "attribute-store",
		MaxRequests:         c.Breaker.MaxRequests,
		Interval:            c.Breaker.Interval,
		Timeout:             c.Breaker.Timeout,
		ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
	}
}

// Pool translates the database pool settings.
func (c *Config) Pool() store.PoolConfig {
	return store.PoolConfig{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}
