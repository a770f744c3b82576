package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewUserLimiter(60, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("request %d within burst must be allowed", i+1)
		}
	}
	if l.Allow("alice") {
		t.Error("request beyond burst must be denied")
	}
}

func TestUsersAreIndependent(t *testing.T) {
	l := NewUserLimiter(60, 1, time.Minute)

	if !l.Allow("alice") {
		t.Fatal("first request for alice must pass")
	}
	if l.Allow("alice") {
		t.Error("second request for alice must be denied")
	}
	if !l.Allow("bob") {
		t.Error("bob must have his own bucket")
	}
}

func TestIdleBucketsEvicted(t *testing.T) {
	l := NewUserLimiter(60, 1, time.Minute)

	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("alice")
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}

	// Move past the TTL and trigger a sweep via call count.
	current = current.Add(2 * time.Minute)
	l.calls = sweepEvery - 1
	l.Allow("bob")

	if l.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1 (alice evicted, bob kept)", l.Len())
	}
}
