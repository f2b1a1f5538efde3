package learning

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Defaults for a Loop.
const (
	DefaultInterval         = 6 * time.Hour
	DefaultRecoveryInterval = 10 * time.Minute
)

// Cycler runs one learning cycle.
type Cycler interface {
	DigestContext(ctx context.Context) (CycleReport, error)
}

// Compile-time interface check.
var _ Cycler = (*Pipeline)(nil)

// LoopConfig configures a Loop.
type LoopConfig struct {
	Interval         time.Duration
	RecoveryInterval time.Duration
	Logger           *slog.Logger
}

// Loop runs a Cycler on a fixed interval. A failed or panicking cycle is
// logged and retried after the shorter recovery interval. Cancellation
// interrupts the wait between cycles, never a running cycle.
type Loop struct {
	cycler   Cycler
	interval time.Duration
	recovery time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a Loop.
func NewLoop(cycler Cycler, cfg LoopConfig) *Loop {
	l := &Loop{
		cycler:   cycler,
		interval: cfg.Interval,
		recovery: cfg.RecoveryInterval,
		logger:   cfg.Logger,
	}
	if l.interval <= 0 {
		l.interval = DefaultInterval
	}
	if l.recovery <= 0 {
		l.recovery = DefaultRecoveryInterval
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Run blocks, running cycles until ctx is cancelled. It always returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("learning: loop started", "interval", l.interval, "recovery_interval", l.recovery)
	for ctx.Err() == nil {
		wait := l.interval
		if err := l.runCycle(context.WithoutCancel(ctx)); err != nil {
			l.logger.Error("learning: cycle failed, retrying after recovery interval",
				"error", err,
				"retry_in", l.recovery,
			)
			wait = l.recovery
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	l.logger.Info("learning: loop stopped")
	return nil
}

func (l *Loop) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("learning: cycle panicked: %v", r)
		}
	}()
	_, err = l.cycler.DigestContext(ctx)
	return err
}

// Start runs the loop in a goroutine. It implements core.Starter.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return fmt.Errorf("learning: loop already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		_ = l.Run(runCtx)
	}()
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish, or for
// ctx to expire. It implements core.Stopper.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("learning: waiting for loop to stop: %w", ctx.Err())
	}
}
