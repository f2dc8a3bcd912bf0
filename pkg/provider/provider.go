package provider

import (
	"context"
)

// Generator abstracts an LLM inference backend that produces structured
// JSON documents. The interface is protocol-agnostic: each adapter handles
// its own backend protocol (Chat Completions, etc.) internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Generator interface {
	// Name returns the provider identifier (e.g., "openaicompat").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Generate performs a single inference call and returns one or more
	// candidate payloads, each expected to conform to req.Schema.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// ListModels returns available models from the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
