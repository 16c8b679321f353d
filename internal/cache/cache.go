// Package cache provides the key-value store used for short-code bindings
// and redemption guards.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the subset of key-value operations the service relies on.
type Cache interface {
	// SetNX stores value under key only when the key is absent. It reports
	// whether the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the value stored under key or ErrMiss.
	Get(ctx context.Context, key string) (string, error)
	// Del removes key; removing an absent key is not an error.
	Del(ctx context.Context, key string) error
	// DelIfEqual removes key only while it still holds value. It reports
	// whether the key was removed.
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}

// New builds the Cache selected by cfg.Driver.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.CacheAddr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}
