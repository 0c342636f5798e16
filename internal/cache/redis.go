package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces keys written by Redis.
const DefaultPrefix = "atelier:"

// Redis stores entries in a Redis server.
type Redis struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to addr and pings it. A zero ttl never expires entries.
func NewRedis(ctx context.Context, addr string, db int, prefix string, ttl time.Duration) (*Redis, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("cache: redis address is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

// Get returns the value for key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: redis get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
