package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
	"github.com/custodia-labs/support-rag/internal/runtime"
)

// SystemPrompt is the fixed instruction header sent with every grounding prompt.
const SystemPrompt = `You are an IT support assistant for phone, fibre, broadband and email services.
Answer only from the provided context. If the context does not contain enough information to answer, say so and suggest contacting support.
Give clear, step-by-step instructions where needed and use numbered lists for multi-step procedures.`

// NoResultsResponse is returned without calling the model when nothing was retrieved.
const NoResultsResponse = "I couldn't find relevant information to answer your question. Please contact support for further help."

// DegradedNote prefixes the raw context when the language model cannot be used.
const DegradedNote = "The answer service is currently unavailable. Here is the most relevant documentation I found:"

var errNoLLM = errors.New("no language model configured")

// Synthesis is the outcome of answer synthesis.
type Synthesis struct {
	Response string
	Sources  []domain.Source
	Degraded bool
}

// Synthesizer turns ranked candidates into an answer with sources.
type Synthesizer struct {
	services         *runtime.Services
	maxContextChunks int
	logger           *slog.Logger
}

// SynthesizerConfig holds dependencies for Synthesizer.
type SynthesizerConfig struct {
	Services *runtime.Services

	// MaxContextChunks caps how many candidates enter the prompt; zero means all.
	MaxContextChunks int

	Logger *slog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		services:         cfg.Services,
		maxContextChunks: cfg.MaxContextChunks,
		logger:           logger,
	}
}

// Synthesize calls the language model once with a grounding prompt built from hits.
// It never fails: without candidates it returns NoResultsResponse, and when the
// model is missing or errors it returns DegradedNote followed by the raw context.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, category domain.Category, hits []*domain.SearchHit) *Synthesis {
	if len(hits) == 0 {
		return &Synthesis{Response: NoResultsResponse, Sources: []domain.Source{}}
	}

	included := hits
	if s.maxContextChunks > 0 && len(included) > s.maxContextChunks {
		included = included[:s.maxContextChunks]
	}

	sources := make([]domain.Source, len(included))
	for i, h := range included {
		sources[i] = domain.Source{Content: h.Content, Distance: h.Distance, Label: h.Label}
	}

	answer, err := s.complete(ctx, BuildUserPrompt(query, category, included))
	if err != nil {
		s.logger.Warn("answer synthesis degraded to raw context",
			"category", category,
			"sources", len(sources),
			"error", err,
		)
		return &Synthesis{
			Response: DegradedNote + "\n\n" + RawContext(included),
			Sources:  sources,
			Degraded: true,
		}
	}

	return &Synthesis{Response: answer, Sources: sources}
}

func (s *Synthesizer) complete(ctx context.Context, userPrompt string) (string, error) {
	var llm driven.LLMService
	if s.services != nil {
		llm = s.services.LLMService()
	}
	if llm == nil {
		return "", errNoLLM
	}

	answer, err := llm.Complete(ctx, SystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("language model returned an empty answer")
	}
	return answer, nil
}

// BuildUserPrompt renders the numbered, labelled context followed by the question.
func BuildUserPrompt(query string, category domain.Category, hits []*domain.SearchHit) string {
	var b strings.Builder
	b.WriteString("Here is relevant information from our knowledge base:\n\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s/%s] %s\n\n", i+1, h.Label, h.Category, strings.TrimSpace(h.Content))
	}
	fmt.Fprintf(&b, "Question about %s: %s\n", category, strings.TrimSpace(query))
	b.WriteString("Please provide a clear, concise response based on the above context.")
	return b.String()
}

// RawContext concatenates candidate contents in rank order.
func RawContext(hits []*domain.SearchHit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = strings.TrimSpace(h.Content)
	}
	return strings.Join(parts, "\n\n")
}
