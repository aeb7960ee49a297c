package toolcache

import (
	"context"
	"testing"
	"time"

	"github.com/quibble-ai/quibble/internal/mcpclient"
)

func TestMemoryRoundtrip(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "https://velo.example/api/mcp"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	tools := []mcpclient.Tool{{Name: "search_shop_catalog"}}
	c.Put(ctx, "https://velo.example/api/mcp", tools)
	got, ok := c.Get(ctx, "https://velo.example/api/mcp")
	if !ok || len(got) != 1 || got[0].Name != "search_shop_catalog" {
		t.Fatalf("roundtrip failed: %+v (ok=%v)", got, ok)
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory(time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Put(ctx, "k", []mcpclient.Tool{{Name: "t"}})
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after TTL")
	}
}

func TestMemoryEvictsExpiredEntries(t *testing.T) {
	c := NewMemory(time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Put(ctx, "a", []mcpclient.Tool{{Name: "t"}})
	c.Put(ctx, "b", []mcpclient.Tool{{Name: "t"}})
	now = now.Add(2 * time.Minute)

	// an expired read deletes its entry, a write sweeps the rest
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after TTL")
	}
	c.Put(ctx, "c", []mcpclient.Tool{{Name: "t"}})

	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	if n != 1 {
		t.Fatalf("expired entries must be evicted, %d remain", n)
	}
}
