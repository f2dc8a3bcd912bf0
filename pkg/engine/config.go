package engine

import (
	"time"

	"github.com/storyloom/storyloom/pkg/api"
)

// Config holds configuration for the orchestration engine.
type Config struct {
	// DefaultModel is used when a generation request omits the model.
	// Empty string means a model is always required in the request.
	DefaultModel string

	// Workers bounds the number of generations executing concurrently.
	// Zero or negative means the default of 3.
	Workers int

	// MaxAttempts is the maximum number of provider calls per generation
	// attempt-chain. Zero or negative means the default of 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Doubles per
	// attempt up to MaxBackoff. Zero means the default of 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay. Zero means the default of 5s.
	MaxBackoff time.Duration

	// AttemptTimeout bounds a single provider call. Exceeding it counts
	// as a transient failure. Zero means the default of 120s.
	AttemptTimeout time.Duration

	// ContextBudget is the maximum serialized context size in bytes.
	// Siblings and roster entries are dropped oldest-first to fit; target
	// fields and instructions are never dropped. Zero means 64 KiB.
	ContextBudget int

	// Variants is the number of candidate payloads requested per
	// generation, clamped to [MinVariants, MaxVariants]. Zero means 1.
	Variants int
}

func (c Config) workers() int64 {
	if c.Workers <= 0 {
		return 3
	}
	return int64(c.Workers)
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 3
	}
	return c.MaxAttempts
}

func (c Config) initialBackoff() time.Duration {
	if c.InitialBackoff <= 0 {
		return 500 * time.Millisecond
	}
	return c.InitialBackoff
}

func (c Config) maxBackoff() time.Duration {
	if c.MaxBackoff <= 0 {
		return 5 * time.Second
	}
	return c.MaxBackoff
}

func (c Config) attemptTimeout() time.Duration {
	if c.AttemptTimeout <= 0 {
		return 120 * time.Second
	}
	return c.AttemptTimeout
}

func (c Config) contextBudget() int {
	if c.ContextBudget <= 0 {
		return 64 * 1024
	}
	return c.ContextBudget
}

func (c Config) variants() int {
	switch {
	case c.Variants < api.MinVariants:
		return api.MinVariants
	case c.Variants > api.MaxVariants:
		return api.MaxVariants
	}
	return c.Variants
}
