// Package retry wraps fallible calls with exponential backoff. It is used
// around single oracle calls; whole learning cycles use the fixed recovery
// delay of learning.Loop instead.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy configures exponential backoff: after the n-th failed attempt
// (0-based) the wrapper waits Base * 2^n, for at most MaxRetries retries.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	// MaxInterval caps a single wait. Zero leaves waits uncapped.
	MaxInterval time.Duration
}

// DefaultPolicy returns 3 retries with a 1s base delay.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Base: time.Second}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Base <= 0 {
		p.Base = time.Second
	}
	return p
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.Base
	for range attempt {
		d *= 2
		if p.MaxInterval > 0 && d >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = p.Delay(p.MaxRetries)
	}
	b.Reset()
	return b
}

type options struct {
	logger *slog.Logger
	name   string
	notify func(attempt int, err error, wait time.Duration)
}

// Option customizes a single Do or Value call.
type Option func(*options)

// WithLogger logs every retry at Warn and the final failure at Error,
// tagging entries with the operation name.
func WithLogger(logger *slog.Logger, name string) Option {
	return func(o *options) {
		o.logger = logger
		o.name = name
	}
}

// WithNotify registers a callback invoked before each wait.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// Do runs op until it succeeds or the policy is exhausted. The last error
// is returned unmodified. Cancelling ctx aborts the wait.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, opts ...Option) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	p = p.withDefaults()
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	attempt := 0
	notify := func(err error, wait time.Duration) {
		if o.logger != nil {
			o.logger.Warn("retry: operation failed, backing off",
				"op", o.name,
				"attempt", attempt+1,
				"wait", wait,
				"error", err,
			)
		}
		if o.notify != nil {
			o.notify(attempt, err, wait)
		}
		attempt++
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		return op(ctx)
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil && o.logger != nil {
		o.logger.Error("retry: operation failed after retries",
			"op", o.name,
			"retries", attempt,
			"error", err,
		)
	}
	return res, err
}
