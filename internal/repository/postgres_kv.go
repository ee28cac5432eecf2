package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront-cart/internal/repository/migrations"
)

const kvChangesChannel = "kv_changes"

// PostgresKV stores entries in the kv_entries table. Every write is followed
// by a NOTIFY carrying the key, so Watch can follow other writers.
type PostgresKV struct {
	pool *pgxpool.Pool
}

func NewPostgresKV(pool *pgxpool.Pool) (*PostgresKV, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresKV{pool: pool}, nil
}

// Migrate creates the kv_entries table when it does not exist yet.
func (p *PostgresKV) Migrate(ctx context.Context) error {
	schema, err := migrations.FS.ReadFile("01_kv_entries.up.sql")
	if err != nil {
		return fmt.Errorf("migrations.ReadFile: %w", err)
	}
	if _, err := p.pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pool.QueryRow: %w", err)
	}
	return []byte(value), true, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := withTx(ctx, p.pool, func(tx pgx.Tx) (struct{}, error) {
		_, err := tx.Exec(ctx,
			`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(value), time.Now().UTC().UnixMilli(),
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("upsert kv entry: %w", err)
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, kvChangesChannel, key); err != nil {
			return struct{}{}, fmt.Errorf("pg_notify: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := withTx(ctx, p.pool, func(tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
		if err != nil {
			return 0, fmt.Errorf("delete kv entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return 0, nil
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, kvChangesChannel, key); err != nil {
			return 0, fmt.Errorf("pg_notify: %w", err)
		}
		return tag.RowsAffected(), nil
	})
	return err
}

// Watch holds one pooled connection in LISTEN mode until ctx is done.
func (p *PostgresKV) Watch(ctx context.Context, key string, fn func()) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pool.Acquire: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+kvChangesChannel)
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+kvChangesChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("conn.WaitForNotification: %w", err)
		}
		if n.Payload == key {
			fn()
		}
	}
}
