package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowAndRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected the first two calls to pass")
	}
	if l.Allow("a") {
		t.Fatalf("expected the bucket to be empty")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share buckets")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatalf("expected a refilled token")
	}
	if l.Allow("a") {
		t.Fatalf("expected only one refilled token")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("a")
	l.Allow("b")
	if n := l.Prune(); n != 0 {
		t.Fatalf("expected nothing pruned, got %d", n)
	}

	now = now.Add(time.Minute)
	if n := l.Prune(); n != 2 {
		t.Fatalf("expected 2 pruned, got %d", n)
	}
}
