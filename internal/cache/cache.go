// Package cache stores rendered output between requests.
//
// Backends:
//   - none: never stores anything
//   - memory: in-process expirable LRU
//   - redis: shared Redis instance for multi-process deployments
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl of zero uses the backend default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Purge removes every entry owned by this cache.
	Purge(ctx context.Context) error
	Close() error
}

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and sizes a backend.
type Config struct {
	Backend   string
	Size      int
	TTL       time.Duration
	RedisAddr string
	Prefix    string
}

// New creates the backend named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendMemory:
		return NewMemoryCache(cfg.Size, cfg.TTL), nil
	case BackendRedis:
		return NewRedisCache(ctx, RedisConfig{Addr: cfg.RedisAddr, Prefix: cfg.Prefix, TTL: cfg.TTL})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Key derives a cache key from prefix and parts.
// The key format is: prefix:sha256(parts...)
func Key(prefix string, parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}
