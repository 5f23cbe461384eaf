package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", sample{Name: "rex", Score: 42}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got sample
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "rex" || got.Score != 42 {
		t.Fatalf("got %+v", got)
	}
	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryCacheExpiresAndEvicts(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "short", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	var s string
	if err := mc.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key returned %q, %v", s, err)
	}

	_ = mc.Set(ctx, "a", "1", 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", "3", 0)
	if ok, _ := mc.Exists(ctx, "a"); ok {
		t.Fatalf("least recently used key survived")
	}
	if mc.Len() != 2 {
		t.Fatalf("len = %d", mc.Len())
	}
}

func TestLayeredCacheFallsBackToRemote(t *testing.T) {
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, WithLayeredLocalTTL(time.Minute))
	defer lc.Close()
	ctx := context.Background()

	_ = remote.Set(ctx, "k", sample{Name: "fido", Score: 7}, time.Hour)
	var got sample
	if err := lc.Get(ctx, "k", &got); err != nil || got.Name != "fido" {
		t.Fatalf("get %+v %v", got, err)
	}

	_ = remote.Delete(ctx, "k")
	got = sample{}
	if err := lc.Get(ctx, "k", &got); err != nil || got.Name != "fido" {
		t.Fatalf("L1 did not serve value: %+v %v", got, err)
	}

	if err := lc.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := lc.Exists(ctx, "k"); ok {
		t.Fatalf("key still present after delete")
	}
}

func TestMemoryCacheGetRefreshesRecency(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	_ = mc.Set(ctx, "b", "2", 0)
	var s string
	if err := mc.Get(ctx, "a", &s); err != nil {
		t.Fatalf("get a: %v", err)
	}
	_ = mc.Set(ctx, "c", "3", 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a"); !ok {
		t.Fatalf("recently read key a was evicted")
	}
}

func TestMemoryCachePurgeExpired(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	_ = mc.Set(ctx, "short", "v", time.Minute)
	_ = mc.Set(ctx, "long", "v", time.Hour)
	now = now.Add(2 * time.Minute)

	if n := mc.purgeExpired(); n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if mc.Len() != 1 {
		t.Fatalf("len = %d", mc.Len())
	}
}

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("latest", "dog-7"); got != "latest:dog-7" {
		t.Fatalf("key = %q", got)
	}
}
