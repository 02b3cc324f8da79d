package cache

import (
	"testing"
	"time"
)

func TestLRUBasics(t *testing.T) {
	c := NewLRU[[]string](2, time.Minute)

	c.Set("g1", []string{"u1", "u2"})
	got, ok := c.Get("g1")
	if !ok || len(got) != 2 {
		t.Fatalf("expected hit with 2 members, got %v, %v", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	c.Delete("g1")
	if _, ok := c.Get("g1"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // touch so b is oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used entry should survive")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should not be returned")
	}
}

func TestLRUPurge(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after purge = %d, want 0", c.Len())
	}
}
