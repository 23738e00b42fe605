package ipc

import (
	"sync"
	"time"
)

// sweepThreshold bounds how many clients we track before dropping the
// ones whose attempts have all expired.
const sweepThreshold = 64

// RateLimiter caps connection attempts per client over a sliding
// window. In-memory only; both the bridge and the control socket are
// local endpoints.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewRateLimiter allows maxAttempts per client within each window.
func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
	}
}

// Allow reports whether the client may connect now, recording the
// attempt when it may.
func (r *RateLimiter) Allow(client string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	pruned := r.pruneLocked(client, now)

	if len(pruned) >= r.maxAttempts {
		r.attempts[client] = pruned
		return false
	}

	r.attempts[client] = append(pruned, now)
	if len(r.attempts) > sweepThreshold {
		r.sweepLocked(now)
	}
	return true
}

// Remaining returns how many attempts the client has left in the
// current window.
func (r *RateLimiter) Remaining(client string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := r.maxAttempts - len(r.pruneLocked(client, time.Now()))
	if left < 0 {
		return 0
	}
	return left
}

// Reset clears all recorded attempts.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = make(map[string][]time.Time)
}

func (r *RateLimiter) pruneLocked(client string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	existing := r.attempts[client]
	pruned := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	return pruned
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	for client, times := range r.attempts {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(r.attempts, client)
		}
	}
}
