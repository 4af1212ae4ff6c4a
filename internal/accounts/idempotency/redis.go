package idempotency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingMarker = "pending"
	donePrefix    = "done:"
)

// Redis is a Ledger shared across replicas. Reservation is a SETNX with the
// pending TTL; completion overwrites the value with the result and full TTL.
type Redis struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	pendingTTL time.Duration
}

type RedisConfig struct {
	Prefix     string        // Optional: default "coachdesk:idem:"
	TTL        time.Duration // Optional: default 24h
	PendingTTL time.Duration // Optional: default 5m
}

func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "coachdesk:idem:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	return &Redis{
		client:     client,
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		pendingTTL: cfg.PendingTTL,
	}
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Reserve(ctx context.Context, key string) ([]byte, error) {
	// Two rounds cover a key expiring between SETNX and GET.
	for range 2 {
		ok, err := r.client.SetNX(ctx, r.key(key), pendingMarker, r.pendingTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("idempotency: reserve: %w", err)
		}
		if ok {
			return nil, nil
		}

		val, err := r.client.Get(ctx, r.key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("idempotency: read: %w", err)
		}
		if result, found := bytes.CutPrefix(val, []byte(donePrefix)); found {
			return result, nil
		}
		return nil, ErrInFlight
	}
	return nil, ErrInFlight
}

func (r *Redis) Complete(ctx context.Context, key string, result []byte) error {
	val := append([]byte(donePrefix), result...)
	if err := r.client.Set(ctx, r.key(key), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
