package learning_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/learning"
	"github.com/flemzord/recall/internal/learning/learningtest"
)

func TestLoop_RecoversFromFailuresAndPanics(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := make(chan struct{})
	cycler := learningtest.CyclerFunc(func(context.Context) (learning.CycleReport, error) {
		switch calls.Add(1) {
		case 1:
			return learning.CycleReport{}, errors.New("audit source down")
		case 2:
			panic("unexpected nil")
		case 3:
			close(done)
		}
		return learning.CycleReport{}, nil
	})

	loop := learning.NewLoop(cycler, learning.LoopConfig{
		Interval:         time.Hour,
		RecoveryInterval: time.Millisecond,
		Logger:           discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop stalled after %d cycles", calls.Load())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("cycles = %d, want 3 (third succeeds, then waits the long interval)", n)
	}
}

func TestLoop_CancelledContextRunsNothing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	loop := learning.NewLoop(learningtest.CyclerFunc(func(context.Context) (learning.CycleReport, error) {
		calls.Add(1)
		return learning.CycleReport{}, nil
	}), learning.LoopConfig{Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 0 {
		t.Errorf("cycles = %d, want 0", calls.Load())
	}
}

func TestLoop_CycleNotInterruptedByCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var cycleCtxErr error
	var mu sync.Mutex

	loop := learning.NewLoop(learningtest.CyclerFunc(func(ctx context.Context) (learning.CycleReport, error) {
		close(started)
		<-release
		mu.Lock()
		cycleCtxErr = ctx.Err()
		mu.Unlock()
		return learning.CycleReport{}, nil
	}), learning.LoopConfig{Interval: time.Hour, Logger: discardLogger()})

	if err := loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started

	stopErr := make(chan error, 1)
	go func() { stopErr <- loop.Stop(context.Background()) }()

	// Stop must wait for the running cycle.
	select {
	case <-stopErr:
		t.Fatal("Stop returned while a cycle was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	if err := <-stopErr; err != nil {
		t.Fatalf("Stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if cycleCtxErr != nil {
		t.Errorf("cycle context was cancelled: %v", cycleCtxErr)
	}
}

func TestLoop_StartTwice(t *testing.T) {
	t.Parallel()

	loop := learning.NewLoop(learningtest.CyclerFunc(func(context.Context) (learning.CycleReport, error) {
		return learning.CycleReport{}, nil
	}), learning.LoopConfig{Interval: time.Hour, Logger: discardLogger()})

	if err := loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := loop.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}
	if err := loop.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := loop.Stop(context.Background()); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestPipeline_RejectsOverlappingCycles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10, nil, entry(1, "a"))
	block := make(chan struct{})
	entered := make(chan struct{})
	blocking := &blockingSource{inner: f.log, entered: entered, block: block}

	p := learning.NewPipeline(learning.Config{
		Source: blocking, Extractor: f.extractor, Facts: f.facts, Checkpoint: f.checkpoint, Logger: discardLogger(),
	})

	go func() { _, _ = p.DigestContext(context.Background()) }()
	<-entered

	if _, err := p.DigestContext(context.Background()); !errors.Is(err, learning.ErrCycleInProgress) {
		t.Errorf("err = %v, want ErrCycleInProgress", err)
	}
	close(block)
}

type blockingSource struct {
	inner   learning.AuditSource
	entered chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (b *blockingSource) GetAuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.block
	return b.inner.GetAuditLog(ctx, limit)
}
