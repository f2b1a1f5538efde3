// Package core owns process lifecycle: components are started in
// registration order and stopped in reverse.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of named components.
type App struct {
	components []component
	logger     *slog.Logger
}

type component struct {
	name    string
	value   any
	started bool
}

// NewApp creates an empty App.
func NewApp(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{logger: logger.With("component", "core")}
}

// Register adds a component. c must implement Starter, Stopper, or both.
func (a *App) Register(name string, c any) error {
	_, isStarter := c.(Starter)
	_, isStopper := c.(Stopper)
	if !isStarter && !isStopper {
		return fmt.Errorf("core: component %s implements neither Starter nor Stopper", name)
	}
	for _, existing := range a.components {
		if existing.name == name {
			return fmt.Errorf("core: duplicate component %s", name)
		}
	}
	a.components = append(a.components, component{name: name, value: c})
	return nil
}

// Start starts every component in order. If one fails, the ones already
// started are stopped in reverse order. Components that only implement
// Stopper count as started so they are released on shutdown.
func (a *App) Start(ctx context.Context) error {
	for i := range a.components {
		c := &a.components[i]
		if s, ok := c.value.(Starter); ok {
			a.logger.Info("starting component", "name", c.name)
			if err := s.Start(ctx); err != nil {
				a.logger.Error("component start failed", "name", c.name, "error", err)
				a.stopFrom(i - 1)
				return fmt.Errorf("starting component %s: %w", c.name, err)
			}
		}
		c.started = true
	}
	a.logger.Info("all components started", "count", len(a.components))
	return nil
}

// Stop stops started components in reverse order, bounded by a 30 s
// timeout.
func (a *App) Stop() {
	a.stopFrom(len(a.components) - 1)
}

func (a *App) stopFrom(index int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := index; i >= 0; i-- {
		c := &a.components[i]
		if !c.started {
			continue
		}
		if s, ok := c.value.(Stopper); ok {
			a.logger.Info("stopping component", "name", c.name)
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("component stop error", "name", c.name, "error", err)
			}
		}
		c.started = false
	}
}

// Run starts all components and blocks until SIGINT, SIGTERM or ctx
// cancellation, then stops them.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("shutdown requested", "reason", context.Cause(ctx))
	}

	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
