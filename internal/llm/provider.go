package llm

import (
	"context"
	"errors"
)

var (
	// ErrTimeout means an extractor call exceeded its deadline
	ErrTimeout = errors.New("extractor timeout")

	// ErrUnparseable means a response did not contain a valid item
	ErrUnparseable = errors.New("unparseable extractor response")
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw completion text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single prompt sent to a provider
type CompletionRequest struct {
	// System carries the item schema and extraction rules
	System string

	// Prompt is the user turn holding the chunk text
	Prompt string

	// Model overrides the provider default when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	Temperature float32
}

// CompletionResponse is the raw provider output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for HTTP requests, in seconds. Per-call deadlines come from the context.
	Timeout int

	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     30,
		Temperature: 0.1,
	}
}
