package ristretto

import (
	"context"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCacheSetGetDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "wf:abc:3", []byte(`{"version":3}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.Wait()

	val, found, err := c.Get(ctx, "wf:abc:3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected hit after Set and Wait")
	}
	if string(val) != `{"version":3}` {
		t.Fatalf("got %s", val)
	}

	if err := c.Delete(ctx, "wf:abc:3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	c.Wait()

	if _, found, _ := c.Get(ctx, "wf:abc:3"); found {
		t.Fatal("expected miss after Delete")
	}
}

func TestCacheMiss(t *testing.T) {
	c := newTestCache(t)

	if _, found, err := c.Get(context.Background(), "never-set"); err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "status", []byte("stale"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.Wait()
	time.Sleep(250 * time.Millisecond)

	if _, found, _ := c.Get(ctx, "status"); found {
		t.Fatal("expected miss after TTL expiry")
	}
}
