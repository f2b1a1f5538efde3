package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestPolicyDelay(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 3, Base: time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}

	capped := Policy{MaxRetries: 5, Base: time.Second, MaxInterval: 3 * time.Second}
	if got := capped.Delay(4); got != 3*time.Second {
		t.Errorf("capped Delay(4) = %v, want 3s", got)
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, Base: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsAndReturnsLastError(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		waits []time.Duration
	)
	final := errors.New("attempt 4")
	calls := 0

	err := Do(context.Background(), Policy{MaxRetries: 3, Base: time.Millisecond}, func(context.Context) error {
		calls++
		if calls == 4 {
			return final
		}
		return errors.New("earlier attempt")
	}, WithNotify(func(_ int, _ error, wait time.Duration) {
		mu.Lock()
		waits = append(waits, wait)
		mu.Unlock()
	}), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), "test"))

	if err != final {
		t.Fatalf("err = %v, want the final error unmodified", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", calls)
	}

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %d entries", waits, len(want))
	}
	for i := range want {
		if waits[i] < want[i] || waits[i] > want[i]+time.Microsecond {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 0, Base: time.Millisecond}, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, Policy{MaxRetries: 5, Base: time.Hour}, func(context.Context) error {
			calls++
			return errors.New("fail")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestValue_ReturnsResult(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Value(context.Background(), Policy{MaxRetries: 2, Base: time.Millisecond}, func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("first")
		}
		return []string{"fact"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "fact" {
		t.Errorf("got %v", got)
	}
}
