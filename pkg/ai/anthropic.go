package ai

import (
	"context"
	"fmt"
)

// AnthropicConfig placeholder for anthropic integration configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AnthropicSummarizer is a stub implementation that can be expanded once the SDK is available.
type AnthropicSummarizer struct{}

// NewAnthropicSummarizer constructs a new stub summarizer.
func NewAnthropicSummarizer(cfg AnthropicConfig) (*AnthropicSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicSummarizer{}, nil
}

// Summarize is not yet implemented for Anthropic models.
func (a *AnthropicSummarizer) Summarize(ctx context.Context, input NarrativeInput) (NarrativeResult, error) {
	return NarrativeResult{}, fmt.Errorf("anthropic summarizer not implemented")
}
