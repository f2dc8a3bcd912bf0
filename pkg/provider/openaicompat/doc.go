// Package openaicompat adapts any OpenAI-compatible Chat Completions
// backend to the provider.Generator interface. It handles request
// serialization, schema-constrained response_format, multi-choice variant
// requests, response parsing, and error mapping into the engine's error
// taxonomy (transient vs. permanent).
package openaicompat
