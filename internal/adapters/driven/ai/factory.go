package ai

import (
	"fmt"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct {
	opts []Option
}

// NewFactory creates a new AI service factory. Options apply to every
// client it creates, after the per-settings request rate.
func NewFactory(opts ...Option) *Factory {
	return &Factory{opts: opts}
}

// CreateEmbeddingService creates an embedding service from settings.
// Returns nil, nil if settings are not configured.
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	opts := f.options(settings.RequestsPerSecond)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL, opts...)
	case domain.AIProviderOllama:
		return NewOllamaEmbedding(settings.Model, settings.BaseURL, opts...)
	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("%w: anthropic does not provide embeddings", domain.ErrInvalidProvider)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateLLMService creates an LLM service from settings.
// Returns nil, nil if settings are not configured.
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	opts := f.options(settings.RequestsPerSecond)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAILLM(settings, opts...)
	case domain.AIProviderAnthropic:
		return NewAnthropicLLM(settings, opts...)
	case domain.AIProviderOllama:
		return NewOllamaLLM(settings, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

func (f *Factory) options(rps float64) []Option {
	opts := make([]Option, 0, len(f.opts)+1)
	opts = append(opts, WithRequestsPerSecond(rps))
	return append(opts, f.opts...)
}
