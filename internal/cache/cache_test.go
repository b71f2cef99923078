package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/nightfall-sdk/internal/cache"
)

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := cache.New[string, int](0)
	defer c.Close()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	c.Set(ctx, "a", 1, 0)
	got, ok := c.Get(ctx, "a")
	if !ok || got != 1 {
		t.Fatalf("expected (1, true), got (%d, %v)", got, ok)
	}

	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := cache.New[string, string](5 * time.Millisecond)
	defer c.Close()

	c.Set(ctx, "short", "v", 10*time.Millisecond)
	c.Set(ctx, "forever", "v", 0)

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expected expired entry to be gone")
	}
	if _, ok := c.Get(ctx, "forever"); !ok {
		t.Error("expected entry without ttl to survive")
	}
	if c.Len() != 1 {
		t.Errorf("expected janitor to evict expired entry, len=%d", c.Len())
	}
}
