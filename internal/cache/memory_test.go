package cache

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("Expected miss for unknown key")
	}

	if err := c.Set("key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, found := c.Get("key")
	if !found {
		t.Fatal("Expected hit after Set")
	}
	if string(val) != "value" {
		t.Errorf("Expected %q, got %q", "value", val)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("key", []byte("value"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, found := c.Get("key"); found {
		t.Error("Expected entry to expire")
	}
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("a", []byte("1"), time.Minute)
	_ = c.Set("b", []byte("2"), time.Minute)

	if err := c.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get("a"); found {
		t.Error("Expected deleted key to miss")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, found := c.Get("b"); found {
		t.Error("Expected cleared cache to miss")
	}
}

func TestKeys_Distinct(t *testing.T) {
	if EvidenceKey("src-a", "claim") == EvidenceKey("src-b", "claim") {
		t.Error("Different sources must yield different evidence keys")
	}
	if EvidenceKey("src-a", "claim one") == EvidenceKey("src-a", "claim two") {
		t.Error("Different claims must yield different evidence keys")
	}
	if EvidenceKey("src", "x") == ContentKey("x") {
		t.Error("Evidence and content key namespaces must not collide")
	}
	if ContentKey("same") != ContentKey("same") {
		t.Error("Content keys must be stable")
	}
}
