package domain

import (
	"errors"
	"testing"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(string(c))
		if err != nil || got != c {
			t.Errorf("expected %s, got %s (%v)", c, got, err)
		}
	}

	for _, bad := range []string{"", "Phone", "fiber", " email"} {
		if _, err := ParseCategory(bad); !errors.Is(err, ErrInvalidCategory) {
			t.Errorf("expected ErrInvalidCategory for %q, got %v", bad, err)
		}
	}
}

func TestQueryRequest_Validate(t *testing.T) {
	q := &QueryRequest{Query: "how to forward calls", Category: CategoryPhone}
	if err := q.Validate(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit != DefaultRetrievalLimit {
		t.Errorf("expected default limit %d, got %d", DefaultRetrievalLimit, q.Limit)
	}

	q = &QueryRequest{Query: "x", Category: CategoryPhone, Limit: 500}
	if err := q.Validate(20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit != 20 {
		t.Errorf("expected capped limit 20, got %d", q.Limit)
	}

	tests := []struct {
		name    string
		req     QueryRequest
		wantErr error
	}{
		{"empty query", QueryRequest{Query: " ", Category: CategoryPhone}, ErrInvalidInput},
		{"missing category", QueryRequest{Query: "x"}, ErrInvalidInput},
		{"unknown category", QueryRequest{Query: "x", Category: "tv"}, ErrInvalidCategory},
		{"negative limit", QueryRequest{Query: "x", Category: CategoryFibre, Limit: -1}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(0); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfidenceConfig_Label(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	tests := []struct {
		score float64
		want  string
	}{
		{1.0, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.79, ConfidenceMedium},
		{0.5, ConfidenceMedium},
		{0.49, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tt := range tests {
		if got := cfg.Label(tt.score); got != tt.want {
			t.Errorf("Label(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestConfidenceConfig_Validate(t *testing.T) {
	if err := DefaultConfidenceConfig().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	cfg := DefaultConfidenceConfig()
	cfg.MediumThreshold = 0.9
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for inverted thresholds, got %v", err)
	}

	cfg = DefaultConfidenceConfig()
	cfg.DocCountSaturate = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero saturation, got %v", err)
	}
}

func TestRuntimeConfig(t *testing.T) {
	rc := NewRuntimeConfig("memory", "")
	if rc.GroupLockingEnabled() {
		t.Error("expected locking disabled")
	}
	rc.SetLLMAvailable(true)
	if !rc.LLMAvailable() {
		t.Error("expected llm available")
	}
	if rc.EmbeddingAvailable() {
		t.Error("expected embedding unavailable")
	}
	if !NewRuntimeConfig("vespa", "redis").GroupLockingEnabled() {
		t.Error("expected locking enabled")
	}
}

func TestAIProvider(t *testing.T) {
	if AIProviderOllama.RequiresAPIKey() {
		t.Error("ollama should not require an api key")
	}
	if !AIProviderAnthropic.IsValid() || AIProvider("cohere").IsValid() {
		t.Error("unexpected provider validity")
	}
	s := LLMSettings{Provider: AIProviderOpenAI}
	if s.IsConfigured() {
		t.Error("openai without key should not be configured")
	}
	e := EmbeddingSettings{Provider: AIProviderOllama, BaseURL: "http://localhost:11434"}
	if !e.IsConfigured() {
		t.Error("ollama without key should be configured")
	}
}
