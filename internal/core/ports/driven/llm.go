package driven

import (
	"context"
)

// LLMService provides single-turn completions for answer synthesis
type LLMService interface {
	// Complete sends one system prompt and one user prompt and returns the reply text
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
