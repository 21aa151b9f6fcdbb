package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/cache"
	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// Extractor turns one chunk of text into a raw item response via a Provider.
// Successful responses are cached by provider, model, mode and text.
type Extractor struct {
	provider    Provider
	cache       cache.Cache
	cacheTTL    time.Duration
	model       string
	temperature float32
}

// NewExtractor wraps a provider. c may be nil to disable caching.
func NewExtractor(provider Provider, c cache.Cache, config Config) *Extractor {
	return &Extractor{
		provider:    provider,
		cache:       c,
		model:       config.Model,
		temperature: config.Temperature,
	}
}

// WithCacheTTL overrides the cache default TTL for stored responses
func (e *Extractor) WithCacheTTL(ttl time.Duration) *Extractor {
	e.cacheTTL = ttl
	return e
}

// Name returns the backing provider name
func (e *Extractor) Name() string {
	return e.provider.Name()
}

// Model returns the configured model name
func (e *Extractor) Model() string {
	return e.model
}

// Extract runs one extraction call. A context deadline is reported as ErrTimeout.
func (e *Extractor) Extract(ctx context.Context, mode model.PromptMode, text string, maxTokens int) (string, error) {
	key := cache.CacheKey(e.provider.Name(), e.model, string(mode), text)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return string(cached), nil
		}
	}

	system, prompt := BuildPrompt(mode, text)
	resp, err := e.provider.Complete(ctx, CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Model:       e.model,
		MaxTokens:   maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s: %v", ErrTimeout, mode, err)
		}
		return "", fmt.Errorf("extract %s: %w", mode, err)
	}

	if e.cache != nil {
		// Only parseable responses are cached
		if _, perr := ParseItem(resp.Text); perr == nil {
			_ = e.cache.Set(key, []byte(resp.Text), e.cacheTTL)
		}
	}
	return resp.Text, nil
}
