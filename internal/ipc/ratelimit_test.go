package ipc

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow("127.0.0.1") {
			t.Errorf("attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow("127.0.0.1") {
		t.Error("4th attempt should be rejected")
	}

	// Other clients have their own budget.
	if !rl.Allow("local") {
		t.Error("different client should be allowed")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(2, 100*time.Millisecond)

	rl.Allow("local")
	rl.Allow("local")
	if rl.Allow("local") {
		t.Error("third attempt should be rejected")
	}

	time.Sleep(150 * time.Millisecond)

	if !rl.Allow("local") {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiterRemaining(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	if got := rl.Remaining("local"); got != 3 {
		t.Fatalf("Remaining = %d, want 3", got)
	}
	rl.Allow("local")
	rl.Allow("local")
	if got := rl.Remaining("local"); got != 1 {
		t.Fatalf("Remaining = %d, want 1", got)
	}
	rl.Allow("local")
	rl.Allow("local") // rejected
	if got := rl.Remaining("local"); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	rl.Allow("local")
	if rl.Allow("local") {
		t.Error("second should be rejected")
	}

	rl.Reset()

	if !rl.Allow("local") {
		t.Error("should be allowed after reset")
	}
}

func TestRateLimiterSweepsExpiredClients(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	for i := 0; i < sweepThreshold; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}
	time.Sleep(20 * time.Millisecond)

	// This attempt pushes the map past the threshold and triggers the
	// sweep of the expired entries above.
	rl.Allow("fresh")

	rl.mu.Lock()
	tracked := len(rl.attempts)
	rl.mu.Unlock()
	if tracked != 1 {
		t.Fatalf("tracked clients = %d, want 1", tracked)
	}
}
