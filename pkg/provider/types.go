package provider

import (
	"encoding/json"

	"github.com/storyloom/storyloom/pkg/api"
)

// Capabilities declares what features the backend supports. Used by the
// engine for early request validation.
type Capabilities struct {
	// StructuredOutput indicates whether the provider supports schema-
	// constrained JSON output (response_format json_schema).
	StructuredOutput bool

	// MaxVariants is the largest number of candidate payloads the provider
	// can produce in a single call (0 = one at a time only).
	MaxVariants int

	// MaxContextWindow is the maximum token count (0 = unknown/unlimited).
	MaxContextWindow int

	// SupportedModels lists models this provider can serve.
	// Empty means "ask ListModels()".
	SupportedModels []string
}

// Request is the backend-facing generation request. It contains only the
// information the provider needs, stripped of orchestration and storage
// concerns.
type Request struct {
	// Model identifies the backend model to use. Always set by the caller.
	Model string `json:"model"`

	// System is the task framing: what to produce and in which role.
	System string `json:"system"`

	// Input is the assembled context document the model works from.
	Input string `json:"input"`

	// Schema constrains the output shape. The provider is expected to
	// return payloads that parse against it.
	Schema *api.OutputSchema `json:"schema,omitempty"`

	// Variants is the number of candidate payloads requested (>= 1).
	Variants int `json:"variants"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Result is the backend's complete response.
type Result struct {
	// Payloads holds one raw JSON document per requested variant.
	Payloads []json.RawMessage `json:"payloads"`

	// Model is the model that actually served the request.
	Model string `json:"model"`

	// Usage reports token accounting when the backend provides it.
	Usage Usage `json:"usage"`
}

// Usage holds token accounting for a single inference call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ModelInfo holds information about a model served by the provider.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ValidateCapabilities checks whether the given request is compatible with
// the provider's declared capabilities. Returns an *api.Error identifying
// the unsupported feature, or nil if the request is compatible.
func ValidateCapabilities(caps Capabilities, req *Request) *api.Error {
	if req.Schema != nil && !caps.StructuredOutput {
		return api.NewCapabilityError(
			"the configured provider does not support structured output", false)
	}
	if caps.MaxVariants > 0 && req.Variants > caps.MaxVariants {
		return api.NewCapabilityError(
			"the configured provider cannot produce the requested number of variants", false)
	}
	if len(caps.SupportedModels) > 0 {
		found := false
		for _, m := range caps.SupportedModels {
			if m == req.Model {
				found = true
				break
			}
		}
		if !found {
			return api.NewCapabilityError(
				"the configured provider does not serve model "+req.Model, false)
		}
	}
	return nil
}
