package security

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.Now = func() time.Time { return now }

	for i := range 2 {
		if err := rl.Allow("alice"); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}
	if err := rl.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third event err = %v, want ErrRateLimited", err)
	}
	if err := rl.Allow("bob"); err != nil {
		t.Errorf("other key limited: %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := rl.Allow("alice"); err != nil {
		t.Errorf("after window err = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, time.Minute)
	for range 100 {
		if err := rl.Allow("k"); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}

	var nilRL *RateLimiter
	if err := nilRL.Allow("k"); err != nil {
		t.Errorf("nil limiter returned %v", err)
	}
}

func TestRateLimiter_PrunesIdleKeys(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Second)
	rl.Now = func() time.Time { return now }

	for i := range maxKeys {
		_ = rl.Allow(string(rune('a'+i%26)) + time.Duration(i).String())
	}
	now = now.Add(2 * time.Second)
	if err := rl.Allow("fresh"); err != nil {
		t.Fatal(err)
	}
	if n := len(rl.buckets); n != 1 {
		t.Errorf("buckets = %d, want 1 after prune", n)
	}
}
