package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/metrics"
)

// BreakerConfig tunes the circuit breaker in front of the attribute store.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures that trip the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "attribute-store",
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerSource guards a BatchAttributeSource with a circuit breaker. While
// open, every call fails fast with ErrDependencyFailure, which the ranking
// path turns into degraded zero scores instead of piling up timeouts.
type BreakerSource struct {
	src BatchAttributeSource
	cb  *gobreaker.CircuitBreaker[any]
	log *logger.Logger
}

func NewBreakerSource(src BatchAttributeSource, cfg BreakerConfig, log *logger.Logger) *BreakerSource {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig().Name
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerConfig().ConsecutiveFailures
	}

	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	b := &BreakerSource{src: src, log: log}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a missing user or an abandoned request says nothing about store health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrInvalidArgument) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("attribute breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return b
}

// State exposes the current breaker state.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerSource) GetUserAttributes(ctx context.Context, id string) (*UserRecord, error) {
	return execute(b, func() (*UserRecord, error) { return b.src.GetUserAttributes(ctx, id) })
}

func (b *BreakerSource) GetTagSet(ctx context.Context, id string) ([]UserTag, error) {
	return execute(b, func() ([]UserTag, error) { return b.src.GetTagSet(ctx, id) })
}

func (b *BreakerSource) GetPersonality(ctx context.Context, id string) (*PersonalityProfile, error) {
	return execute(b, func() (*PersonalityProfile, error) { return b.src.GetPersonality(ctx, id) })
}

func (b *BreakerSource) AttributesByIDs(ctx context.Context, ids []string) (map[string]*Attributes, error) {
	return execute(b, func() (map[string]*Attributes, error) { return b.src.AttributesByIDs(ctx, ids) })
}

func execute[T any](b *BreakerSource, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrDependencyFailure, err)
		}
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected breaker result %T", ErrDependencyFailure, res)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
