package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
)

// RedisOptions configures the relay connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisRelay publishes match events on a Redis channel and forwards every
// message it receives into the local Hub, so each instance serves its own
// sockets regardless of which instance handled the request.
type RedisRelay struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
	hub     *Hub
}

var _ match.EventPublisher = (*RedisRelay)(nil)

func NewRedisRelay(opts RedisOptions, hub *Hub, log *logger.Logger) (*RedisRelay, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	if opts.Channel == "" {
		opts.Channel = "match-events"
	}
	if log == nil {
		log = logger.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisRelay{
		log:     log.With("component", "redis-relay"),
		rdb:     rdb,
		channel: opts.Channel,
		hub:     hub,
	}, nil
}

func (r *RedisRelay) PublishMatchEvent(ctx context.Context, evt match.MatchEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, raw).Err()
}

// Start subscribes and forwards messages until ctx ends.
func (r *RedisRelay) Start(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var evt match.MatchEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					r.log.Warn("bad match event payload", "error", err)
					continue
				}
				r.hub.Deliver(evt)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
