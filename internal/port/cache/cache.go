// Package cache defines the port interface for the query-layer snapshot
// cache.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Cache is the port interface for key-value caching. Values are opaque
// bytes; TTL of zero means the implementation's default.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builders for the query layer. Keys embed the workflow version where
// it matters, so a stale snapshot can never be served for a newer state.
const (
	workflowPrefix = "wf:"
	historyPrefix  = "hist:"
	statusKey      = "status"
)

// WorkflowKey returns the cache key for a workflow snapshot at a version.
func WorkflowKey(id string, version int) string {
	return workflowPrefix + id + ":" + strconv.Itoa(version)
}

// HistoryKey returns the cache key for a workflow history at a version.
func HistoryKey(id string, version int) string {
	return historyPrefix + id + ":" + strconv.Itoa(version)
}

// StatusKey returns the cache key for the system status snapshot. Status
// entries ride on the TTL alone: a status may lag live state by up to one
// cache TTL.
func StatusKey() string { return statusKey }
