package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/debug"
	"github.com/storyloom/storyloom/pkg/provider"
)

// Client performs HTTP requests against an OpenAI-compatible Chat
// Completions backend and implements provider.Generator on top of it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	name       string

	// ModelMapper is an optional function that transforms the model name
	// before sending it to the backend. If nil, the model name is used as-is.
	ModelMapper func(string) string
}

// Ensure Client implements provider.Generator at compile time.
var _ provider.Generator = (*Client)(nil)

// NewClient creates a new Client for an OpenAI-compatible backend.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	// Normalize: remove trailing slash from base URL.
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		name:    "openaicompat",
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.name
}

// Capabilities reports structured-output support. The backend advertises
// no fixed model list here; callers consult ListModels.
func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		StructuredOutput: true,
		MaxVariants:      api.MaxVariants,
	}
}

// Generate performs a single inference call against the Chat Completions
// endpoint. Variants are requested via the n parameter; each returned
// choice becomes one candidate payload.
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	model := req.Model
	if c.ModelMapper != nil {
		model = c.ModelMapper(model)
	}

	n := req.Variants
	if n < 1 {
		n = 1
	}

	chatReq := ChatCompletionRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Input},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		N:           n,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = ChatResponseFormat{
			Type: "json_schema",
			JSONSchema: &ChatJSONSchema{
				Name:   req.Schema.Name,
				Strict: true,
				Schema: req.Schema.JSONSchema(),
			},
		}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/chat/completions"
	debug.Log("providers", "chat completion request",
		"url", url, "model", model, "variants", n, "input_bytes", len(body))
	debug.Raw("providers", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	if len(chatResp.Choices) == 0 {
		return nil, api.NewCapabilityError("backend returned no choices", true)
	}
	debug.Log("providers", "chat completion response",
		"model", chatResp.Model, "choices", len(chatResp.Choices))

	result := &provider.Result{
		Model: chatResp.Model,
	}
	for _, choice := range chatResp.Choices {
		if choice.Message.Content == nil || *choice.Message.Content == "" {
			return nil, api.NewCapabilityError("backend returned an empty choice", true)
		}
		payload := json.RawMessage(strings.TrimSpace(*choice.Message.Content))
		if !json.Valid(payload) {
			// Malformed output counts as a transient failure: a retry with
			// the same frozen context may well produce valid JSON.
			return nil, api.NewValidationError("", "backend returned malformed JSON")
		}
		result.Payloads = append(result.Payloads, payload)
	}

	if chatResp.Usage != nil {
		result.Usage = provider.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		}
	}

	return result, nil
}

// ListModels returns available models from the backend by querying
// the /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	url := c.baseURL + "/v1/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	var models []provider.ModelInfo
	for _, m := range modelsResp.Data {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  m.Object,
			OwnedBy: m.OwnedBy,
		})
	}

	return models, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
