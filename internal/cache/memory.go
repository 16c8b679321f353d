package cache

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many SetNX writes pass between full expiry sweeps.
const sweepEvery = 256

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is an in-process Cache for single-node setups and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	writes  int
}

// NewMemory returns an empty MemoryCache using the wall clock.
func NewMemory() *MemoryCache {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock returns an empty MemoryCache that reads time from now.
func NewMemoryWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

// lookup returns the live entry for key, dropping it when expired.
// Callers must hold mu.
func (c *MemoryCache) lookup(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// sweep drops every expired entry. Callers must hold mu.
func (c *MemoryCache) sweep() {
	now := c.now()
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// SetNX implements Cache.
func (c *MemoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if c.writes%sweepEvery == 0 {
		c.sweep()
	}
	if _, ok := c.lookup(key); ok {
		return false, nil
	}
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return true, nil
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookup(key)
	if !ok {
		return "", ErrMiss
	}
	return entry.value, nil
}

// Del implements Cache.
func (c *MemoryCache) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DelIfEqual implements Cache.
func (c *MemoryCache) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookup(key)
	if !ok || entry.value != value {
		return false, nil
	}
	delete(c.entries, key)
	return true, nil
}

// Ping implements Cache.
func (c *MemoryCache) Ping(ctx context.Context) error { return ctx.Err() }

// Close implements Cache.
func (c *MemoryCache) Close() error { return nil }
