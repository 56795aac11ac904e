package main

import (
	"context"
	"fmt"

	"gitea.kood.tech/petrkubec/match-engine/config"
	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
	"gitea.kood.tech/petrkubec/match-engine/store"
)

// storage is what both store implementations provide.
type storage interface {
	match.Store
	match.BatchAttributeSource
}

type backend struct {
	store storage
	ping  func(ctx context.Context) error
	close func() error
}

// openBackend connects the configured store. The memory driver starts empty
// and is meant for local runs and demos.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return &backend{
			store: store.NewMemory(),
			close: func() error { return nil },
		}, nil

	case "postgres":
		db, err := store.Open(ctx, cfg.Database.URL, cfg.Pool())
		if err != nil {
			return nil, err
		}
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			if err := store.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
			log.Info("database schema applied")
		}
		return &backend{
			store: store.NewPostgres(db, log),
			ping:  db.PingContext,
			close: db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
