package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/support-rag/internal/runtime"
)

func newTestSynthesizer(llm *mocks.MockLLMService, maxContext int) *Synthesizer {
	services := runtime.NewServices(domain.NewRuntimeConfig("memory", ""))
	if llm != nil {
		services.SetLLMService(llm)
	}
	return NewSynthesizer(SynthesizerConfig{Services: services, MaxContextChunks: maxContext})
}

func threeHits() []*domain.SearchHit {
	return []*domain.SearchHit{
		{Content: "Dial *72 then the number.", Label: "call forwarding", Category: domain.CategoryPhone, Distance: 0.1},
		{Content: "Dial *73 to cancel forwarding.", Label: "cancel forwarding", Category: domain.CategoryPhone, Distance: 0.3},
		{Content: "Forwarding is free on all plans.", Label: "pricing", Category: domain.CategoryPhone, Distance: 0.5},
	}
}

func TestSynthesizer_NoHits(t *testing.T) {
	llm := mocks.NewMockLLMService()
	s := newTestSynthesizer(llm, 0)

	out := s.Synthesize(context.Background(), "anything", domain.CategoryEmail, nil)
	assert.Equal(t, NoResultsResponse, out.Response)
	assert.NotNil(t, out.Sources)
	assert.Empty(t, out.Sources)
	assert.False(t, out.Degraded)
	assert.Equal(t, 0, llm.Calls(), "model must not be called without context")
}

func TestSynthesizer_GroundedPrompt(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(systemPrompt, userPrompt string) (string, error) {
		return "  Dial *72 followed by the number.  ", nil
	}
	s := newTestSynthesizer(llm, 0)

	out := s.Synthesize(context.Background(), "how do I forward calls", domain.CategoryPhone, threeHits())
	assert.Equal(t, "Dial *72 followed by the number.", out.Response)
	assert.False(t, out.Degraded)
	require.Len(t, out.Sources, 3)
	assert.Equal(t, "call forwarding", out.Sources[0].Label)
	assert.Equal(t, 0.1, out.Sources[0].Distance)

	assert.Equal(t, 1, llm.Calls())
	assert.Equal(t, SystemPrompt, llm.LastSystemPrompt)
	assert.Contains(t, llm.LastUserPrompt, "1. [call forwarding/phone] Dial *72 then the number.")
	assert.Contains(t, llm.LastUserPrompt, "3. [pricing/phone]")
	assert.Contains(t, llm.LastUserPrompt, "Question about phone: how do I forward calls")
}

func TestSynthesizer_MaxContextChunks(t *testing.T) {
	llm := mocks.NewMockLLMService()
	s := newTestSynthesizer(llm, 2)

	out := s.Synthesize(context.Background(), "forwarding", domain.CategoryPhone, threeHits())
	assert.Len(t, out.Sources, 2)
	assert.NotContains(t, llm.LastUserPrompt, "pricing")
}

func TestSynthesizer_DegradedOnError(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(systemPrompt, userPrompt string) (string, error) {
		return "", errors.New("429 too many requests")
	}
	s := newTestSynthesizer(llm, 0)
	hits := threeHits()

	out := s.Synthesize(context.Background(), "forwarding", domain.CategoryPhone, hits)
	assert.True(t, out.Degraded)
	assert.Len(t, out.Sources, 3)
	require.True(t, strings.HasPrefix(out.Response, DegradedNote))

	raw := strings.TrimPrefix(out.Response, DegradedNote+"\n\n")
	assert.Equal(t, "Dial *72 then the number.\n\nDial *73 to cancel forwarding.\n\nForwarding is free on all plans.", raw)
	assert.Equal(t, RawContext(hits), raw)
}

func TestSynthesizer_DegradedWithoutModel(t *testing.T) {
	s := newTestSynthesizer(nil, 0)

	out := s.Synthesize(context.Background(), "forwarding", domain.CategoryPhone, threeHits())
	assert.True(t, out.Degraded)
	assert.True(t, strings.HasPrefix(out.Response, DegradedNote))
}

func TestSynthesizer_DegradedOnEmptyAnswer(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(systemPrompt, userPrompt string) (string, error) {
		return "   ", nil
	}
	s := newTestSynthesizer(llm, 0)

	out := s.Synthesize(context.Background(), "forwarding", domain.CategoryPhone, threeHits())
	assert.True(t, out.Degraded)
}
