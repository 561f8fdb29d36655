package enrich

import (
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	clock := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCacheWithClock(1*time.Hour, func() time.Time { return clock })

	cache.Set("k", 42)

	if v, ok := cache.Get("k"); !ok || v.(int) != 42 {
		t.Fatalf("expected fresh hit, got %v, %v", v, ok)
	}

	clock = clock.Add(59 * time.Minute)
	if _, ok := cache.Get("k"); !ok {
		t.Error("entry expired before its TTL")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestCacheSetRefreshesTTL(t *testing.T) {
	clock := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCacheWithClock(1*time.Hour, func() time.Time { return clock })

	cache.Set("k", "a")
	clock = clock.Add(50 * time.Minute)
	cache.Set("k", "b")
	clock = clock.Add(50 * time.Minute)

	v, ok := cache.Get("k")
	if !ok || v.(string) != "b" {
		t.Errorf("expected refreshed entry, got %v, %v", v, ok)
	}
}

func TestCachePurge(t *testing.T) {
	clock := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCacheWithClock(10*time.Minute, func() time.Time { return clock })

	cache.Set("old", 1)
	clock = clock.Add(11 * time.Minute)
	cache.Set("fresh", 2)

	if removed := cache.Purge(); removed != 1 {
		t.Errorf("purged %d entries, want 1", removed)
	}
	if cache.Len() != 1 {
		t.Errorf("len = %d, want 1", cache.Len())
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Error("fresh entry lost during purge")
	}
}
