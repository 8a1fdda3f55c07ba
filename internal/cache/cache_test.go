package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/unigate/gateway/internal/cache"
	"github.com/unigate/gateway/pkg/models"
)

func TestGetInsertRemove(t *testing.T) {
	c := cache.New[string, int](0, 0)
	defer c.Close()

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() on empty cache should miss")
	}
	c.Insert("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get() = %v, %v; want 1, true", v, ok)
	}
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() after Remove() should miss")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := cache.New[string, int](0, 20*time.Millisecond)
	defer c.Close()

	c.Insert("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get() immediately after Insert() should hit")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() after ttl elapsed should miss")
	}
}

func TestCapacityEviction(t *testing.T) {
	c := cache.New[string, int](2, 0)
	defer c.Close()

	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("c", 3)

	if got := c.Len(); got > 2 {
		t.Fatalf("Len() = %d, want <= 2", got)
	}
}

func TestGetOrInsertWithFn(t *testing.T) {
	c := cache.New[string, int](0, 0)
	defer c.Close()

	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := cache.GetOrInsertWithFn(c, "k", compute)
	if err != nil || v != 42 {
		t.Fatalf("GetOrInsertWithFn() = %v, %v; want 42, nil", v, err)
	}
	v, err = cache.GetOrInsertWithFn(c, "k", compute)
	if err != nil || v != 42 {
		t.Fatalf("second GetOrInsertWithFn() = %v, %v; want 42, nil", v, err)
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1 (second call should hit cache)", calls)
	}
}

func TestGetOrInsertWithFn_PropagatesError(t *testing.T) {
	c := cache.New[string, int](0, 0)
	defer c.Close()

	wantErr := errors.New("boom")
	_, err := cache.GetOrInsertWithFn(c, "k", func() (int, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrInsertWithFn() error = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("a failed compute should not populate the cache")
	}
}

func TestNamedCacheConstructors(t *testing.T) {
	caches := cache.NewCaches(100, time.Minute)
	defer caches.Close()

	caches.Connection.Insert("conn-1", models.Connection{ID: "conn-1", Platform: "stripe"})
	got, ok := caches.Connection.Get("conn-1")
	if !ok || got.Platform != "stripe" {
		t.Fatalf("Connection cache Get() = %v, %v; want stripe connection", got, ok)
	}
}
