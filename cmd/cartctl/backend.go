package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront-cart/internal/config"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/nikolayk812/storefront-cart/internal/repository"
)

// backend is an opened key-value store. watcher is nil when the store cannot
// report changes made by other writers.
type backend struct {
	kv      port.KVStore
	watcher port.Watcher
	close   func() error
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		kv := repository.NewMemoryKV()
		return backend{kv: kv, watcher: kv, close: func() error { return nil }}, nil

	case config.BackendSQLite:
		kv, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return backend{}, fmt.Errorf("repository.OpenSQLite: %w", err)
		}
		return backend{kv: kv, close: kv.Close}, nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return backend{}, fmt.Errorf("pgxpool.New: %w", err)
		}
		kv, err := repository.NewPostgresKV(pool)
		if err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("repository.NewPostgresKV: %w", err)
		}
		if err := kv.Migrate(ctx); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("kv.Migrate: %w", err)
		}
		return backend{kv: kv, watcher: kv, close: func() error {
			pool.Close()
			return nil
		}}, nil

	case config.BackendRedis:
		kv, err := repository.NewRedisKV(cfg.RedisAddr)
		if err != nil {
			return backend{}, fmt.Errorf("repository.NewRedisKV: %w", err)
		}
		if err := kv.Ping(ctx); err != nil {
			_ = kv.Close()
			return backend{}, fmt.Errorf("kv.Ping: %w", err)
		}
		return backend{kv: kv, watcher: kv, close: kv.Close}, nil

	default:
		return backend{}, fmt.Errorf("backend[%s] is not valid", cfg.Backend)
	}
}
