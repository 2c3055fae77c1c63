// Package ristretto implements the cache port using dgraph-io/ristretto as
// the in-process snapshot cache for the query layer. Cached entries are
// serialized workflow, history and status snapshots keyed by version, so
// eviction is purely a capacity concern and never a correctness one.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto cache for query-layer snapshots.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a ristretto-backed snapshot cache. maxSizeMB is the maximum
// total size of cached values in megabytes.
func New(maxSizeMB int64) (*Cache, error) {
	maxCost := maxSizeMB * 1024 * 1024
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost / 1024 * 10, // ~10x expected snapshot count at ~1KB each
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get retrieves a snapshot from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a snapshot with the given TTL. Writes are buffered; call Wait
// when a subsequent Get must observe the value.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete removes a snapshot from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Wait blocks until all buffered writes have been applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
