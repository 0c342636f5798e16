// Package cache provides key/value stores for memoized summaries.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache stores string values by key. A miss is (""/false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	TTL       time.Duration
	RedisAddr string
	RedisDB   int
	Prefix    string
}

// New builds the configured backend. BackendNone (or "") returns nil, nil.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemory(cfg.TTL), nil
	case BackendRedis:
		r, err := NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.Prefix, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process cache. A zero TTL never expires entries.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a Memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the value for key unless it has expired.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	e := entry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
