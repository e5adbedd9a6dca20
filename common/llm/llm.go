package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string // Model name
	MaxTokens int    // Default completion budget when the request leaves it 0
}

// Client is the provider boundary. Everything above it (retry, failure
// classification, mocking, metrics) lives in the gateway, not here.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Model() string
}

// ChatRequest is one chat completion exchange.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64 // nil = model default, explicit 0 = deterministic
	JSONMode    bool     // ask the provider for a JSON object response when supported
}

// Message represents a conversation message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatResponse contains the model's reply.
type ChatResponse struct {
	Content          string
	FinishReason     string // "stop", "length", ...
	PromptTokens     int
	CompletionTokens int
}

// APIError normalizes provider transport failures so callers never
// inspect SDK-specific error types.
type APIError struct {
	StatusCode int           // 0 when the request never reached the provider
	RetryAfter time.Duration // provider-advertised wait, 0 if absent
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm api error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm api error: %v", e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// AsAPIError extracts an APIError from err, if present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// New creates a Client for the configured provider. Defaults to OpenAI
// when no provider is specified.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// GenerateSchemaFrom generates a JSON schema from an instance value.
// Useful when the type is not known at compile time.
func GenerateSchemaFrom(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// SchemaJSON renders a schema as indented JSON for embedding into a
// prompt as a structural hint.
func SchemaJSON(v any) string {
	data, err := json.MarshalIndent(GenerateSchemaFrom(v), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
