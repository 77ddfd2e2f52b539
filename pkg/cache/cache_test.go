package cache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("avatar:alice", "https://example.com/a.png")

	got, ok := c.Get("avatar:alice")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "https://example.com/a.png" {
		t.Errorf("value = %q", got)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected cache miss")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("short", "value", 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Fatal("expected expired entry to miss")
	}
}
