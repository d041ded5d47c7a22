package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 1*time.Second)
	val, ok := c.Get("key1")
	if !ok || val != "value1" {
		t.Fatalf("expected value1, got %v, exists=%v", val, ok)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New()
	c.Set("collection:client", "customers", 0)
	time.Sleep(50 * time.Millisecond)
	val, ok := c.GetString("collection:client")
	if !ok || val != "customers" {
		t.Fatalf("expected permanent entry, got %q, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 100*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected expired key to return false")
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("key1", "value1", 1*time.Second)
	c.Delete("key1")
	_, ok := c.Get("key1")
	if ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestGetStringTypeMismatch(t *testing.T) {
	c := New()
	c.Set("key1", 42, 0)
	_, ok := c.GetString("key1")
	if ok {
		t.Fatalf("expected type mismatch to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	c.Set("collection:client", "c1", 0)
	c.Set("collection:ticket", "c2", 0)
	c.Set("session:1", "s1", 0)
	c.Invalidate("collection:")
	_, ok1 := c.Get("collection:client")
	_, ok2 := c.Get("collection:ticket")
	_, ok3 := c.Get("session:1")
	if ok1 || ok2 {
		t.Fatalf("expected collection keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected session:1 to still exist")
	}
}
