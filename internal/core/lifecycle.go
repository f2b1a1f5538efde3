package core

import "context"

// Starter is implemented by components that run background work
// (goroutines, listeners). Start must not block.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by components that hold resources. Called during
// shutdown in reverse registration order.
type Stopper interface {
	Stop(ctx context.Context) error
}
