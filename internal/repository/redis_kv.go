package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisChangesPrefix = "kv-changes:"

// RedisKV keeps each key as a plain string and publishes the key on a
// per-key channel after every write.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV accepts either a redis:// URL or a bare host:port.
func NewRedisKV(addr string) (*RedisKV, error) {
	if addr == "" {
		return nil, fmt.Errorf("addr is empty")
	}

	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}

	return &RedisKV{client: redis.NewClient(opts)}, nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("client.Ping: %w", err)
	}
	return nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("client.Get: %w", err)
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}
	if err := r.client.Publish(ctx, redisChangesPrefix+key, key).Err(); err != nil {
		return fmt.Errorf("client.Publish: %w", err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}
	if err := r.client.Publish(ctx, redisChangesPrefix+key, key).Err(); err != nil {
		return fmt.Errorf("client.Publish: %w", err)
	}
	return nil
}

func (r *RedisKV) Watch(ctx context.Context, key string, fn func()) error {
	sub := r.client.Subscribe(ctx, redisChangesPrefix+key)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("sub.Receive: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			fn()
		}
	}
}
