// Package provider defines the completion interface the analysis oracles
// are built on. Concrete clients live in subpackages (e.g. openaicompat).
package provider

import "context"

// Provider is the interface for communicating with an LLM.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active probing from the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
