package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_PerKeyIsolated(t *testing.T) {
	l := NewLimiter(1, 2, 0)

	if !l.Allow("client-a") || !l.Allow("client-a") {
		t.Fatal("expected client-a to get its full burst")
	}
	if l.Allow("client-a") {
		t.Fatal("expected client-a to be exhausted")
	}
	if !l.Allow("client-b") {
		t.Fatal("expected client-b to have its own independent bucket")
	}
}

func TestLimiter_EvictsIdleBuckets(t *testing.T) {
	l := NewLimiter(1, 2, 20*time.Millisecond)
	l.Allow("client-a")

	l.mu.RLock()
	_, ok := l.buckets["client-a"]
	l.mu.RUnlock()
	if !ok {
		t.Fatal("expected bucket to be created on first use")
	}

	time.Sleep(30 * time.Millisecond)
	l.evictIdle()

	l.mu.RLock()
	_, ok = l.buckets["client-a"]
	l.mu.RUnlock()
	if ok {
		t.Fatal("expected idle bucket to be evicted")
	}
}
