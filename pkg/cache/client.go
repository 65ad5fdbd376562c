package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mo-amir99/wb-simple-server-go/pkg/metrics"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Client defines the interface for cache operations.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	// Backend names the store actually serving requests.
	Backend() string
	Close() error
}

// Options controls how New picks a backend.
type Options struct {
	URL string
	// AllowFallback serves from memory when Redis cannot be reached at startup.
	AllowFallback bool
}

// New returns a Redis client for opts.URL. Without a URL, or when Redis is
// unreachable and fallback is allowed, it returns a MemoryCache instead.
func New(ctx context.Context, opts Options, logger *slog.Logger) (Client, error) {
	if opts.URL == "" {
		logger.Warn("REDIS_URL not set, using in-memory cache")
		return NewMemoryCache(), nil
	}

	client, err := NewRedisClient(ctx, opts.URL)
	if err == nil {
		logger.Info("redis cache connected")
		return client, nil
	}

	if !opts.AllowFallback {
		return nil, err
	}

	logger.Warn("redis unreachable, falling back to in-memory cache", slog.String("error", err.Error()))
	return NewMemoryCache(), nil
}

// SetJSON stores a JSON-serialized value in cache.
func SetJSON(ctx context.Context, c Client, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.Set(ctx, key, string(data), expiration)
}

// GetJSON retrieves and deserializes a JSON value from cache.
func GetJSON(ctx context.Context, c Client, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

// Invalidate deletes keys and logs failures. Cache errors never fail a write.
func Invalidate(ctx context.Context, c Client, logger *slog.Logger, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil && logger != nil {
		logger.Warn("cache invalidation failed",
			slog.Any("keys", keys),
			slog.String("error", err.Error()))
	}
}

// Fetch fills dest from key and reports whether it was a hit. Misses and
// backend errors both report false; errors other than ErrMiss are logged.
func Fetch(ctx context.Context, c Client, logger *slog.Logger, resource, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	err := GetJSON(ctx, c, key, dest)
	hit := err == nil
	metrics.RecordCacheLookup(resource, hit)
	if err != nil && !errors.Is(err, ErrMiss) && logger != nil {
		logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return hit
}

// Store writes value under key, logging rather than returning failures.
func Store(ctx context.Context, c Client, logger *slog.Logger, key string, value interface{}, expiration time.Duration) {
	if c == nil {
		return
	}
	if err := SetJSON(ctx, c, key, value, expiration); err != nil && logger != nil {
		logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
