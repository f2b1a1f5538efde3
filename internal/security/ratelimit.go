package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key exceeds its allowance.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// maxKeys bounds the number of tracked keys; idle keys are evicted first.
const maxKeys = 4096

// RateLimiter is a per-key sliding-window limiter. The gateway keys it by
// sender so one noisy client cannot flood the discussion buffer.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// NewRateLimiter allows limit events per key within window. A limit of
// zero or less disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		Now:     time.Now,
	}
}

// Allow records one event for key, or returns ErrRateLimited.
func (rl *RateLimiter) Allow(key string) error {
	if rl == nil || rl.limit <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.Now()
	events := evict(rl.buckets[key], now.Add(-rl.window))
	if len(events) >= rl.limit {
		rl.buckets[key] = events
		return ErrRateLimited
	}

	if _, ok := rl.buckets[key]; !ok && len(rl.buckets) >= maxKeys {
		rl.pruneLocked(now)
	}
	rl.buckets[key] = append(events, now)
	return nil
}

// evict drops events at or before cutoff. events is sorted ascending.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rl.window)
	for k, events := range rl.buckets {
		if len(evict(events, cutoff)) == 0 {
			delete(rl.buckets, k)
		}
	}
}
