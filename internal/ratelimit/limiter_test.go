package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(0.001, 2)
	defer l.Stop()

	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatal("expected burst to be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("expected third request to be denied")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatal("keys must be limited independently")
	}
}

func TestLimiter_EvictsIdleVisitors(t *testing.T) {
	l := NewLimiter(1, 1)
	defer l.Stop()

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(visitorTTL)
	l.Allow("fresh")

	l.evictIdle()
	if l.size() != 1 {
		t.Fatalf("expected only the fresh visitor to remain, got %d", l.size())
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := NewLimiter(1, 1)
	l.Stop()
	l.Stop()
}
