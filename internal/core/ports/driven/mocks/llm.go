package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Ensure MockLLMService implements LLMService
var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService is a mock implementation of LLMService for testing.
// By default it echoes the user prompt back so tests can assert on the context it saw.
type MockLLMService struct {
	mu    sync.Mutex
	calls int

	LastSystemPrompt string
	LastUserPrompt   string

	// Custom behavior hooks (optional)
	CompleteFn func(systemPrompt, userPrompt string) (string, error)
	PingErr    error
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{}
}

func (m *MockLLMService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.LastSystemPrompt = systemPrompt
	m.LastUserPrompt = userPrompt
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(systemPrompt, userPrompt)
	}
	return "Based on the documentation: " + userPrompt, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm-model"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns how many times Complete was called
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
