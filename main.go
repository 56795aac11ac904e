package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gitea.kood.tech/petrkubec/match-engine/config"
	"gitea.kood.tech/petrkubec/match-engine/events"
	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
)

// devJWTSecret is only accepted outside production; config validation
// requires JWT_SECRET there.
const devJWTSecret = "your_secret_key_please_change_in_production"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Environment, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	var attrs match.AttributeSource = be.store
	if cfg.Breaker.Enabled {
		attrs = match.NewBreakerSource(be.store, cfg.BreakerSettings(), log)
	}

	hub := events.NewHub()
	defer hub.Close()

	var publisher match.EventPublisher = hub
	if cfg.Redis.Addr != "" {
		relay, err := events.NewRedisRelay(events.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, hub, log)
		if err != nil {
			return err
		}
		defer relay.Close()
		if err := relay.Start(ctx); err != nil {
			return err
		}
		publisher = relay
		log.Info("match events relayed through redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	opts := cfg.EngineOptions()
	opts.Publisher = publisher
	engine := match.NewEngine(attrs, be.store, be.store, opts, log)

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		log.Warn("JWT_SECRET not set, using development secret")
		secret = []byte(devJWTSecret)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(routerDeps{
			cfg:       cfg,
			log:       log,
			svc:       engine,
			hub:       hub,
			jwtSecret: secret,
			ping:      be.ping,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Server.Environment, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
