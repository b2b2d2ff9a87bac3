package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/a-yousafzai/ai-analyst-agent/config"
	openai_provider "github.com/a-yousafzai/ai-analyst-agent/provider/openai"
)

// ErrNotConfigured indicates no reasoning backend is available; callers are
// expected to use their deterministic fallback path.
var ErrNotConfigured = errors.New("llm provider not configured")

// Provider is the text-completion capability consumed by the planner, the
// /analyze endpoint and the ingest consumer. Implementations are stateless
// per call and safe for concurrent use.
type Provider interface {
	// Complete sends a system prompt plus user prompt and returns the raw
	// completion text.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// New creates a provider from configuration. An empty API key returns
// ErrNotConfigured rather than a provider that fails on every call.
func New(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case "", "openai":
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
