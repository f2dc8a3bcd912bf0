// Package provider defines the protocol-agnostic interface for LLM inference
// backends used by the generation engine. Each adapter implementation
// (e.g., openaicompat) handles its own backend protocol translation
// internally. The interface operates on the engine's own types (Request,
// Result), keeping backend protocol details invisible to the engine.
package provider
