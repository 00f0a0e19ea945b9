package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

func TestNewOpenAILLM_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAILLM(&domain.LLMSettings{Provider: domain.AIProviderOpenAI})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewOpenAILLM_Defaults(t *testing.T) {
	svc, err := NewOpenAILLM(&domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	llm := svc.(*OpenAILLM)
	if llm.model != "gpt-3.5-turbo" {
		t.Errorf("expected gpt-3.5-turbo, got %s", llm.model)
	}
	if llm.temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", llm.temperature)
	}
	if llm.maxTokens != 300 {
		t.Errorf("expected max tokens 300, got %d", llm.maxTokens)
	}
	if llm.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", llm.baseURL)
	}
}

func TestOpenAILLM_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected Authorization header")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Messages[1].Content != "How do I forward calls?" {
			t.Errorf("unexpected user prompt %q", req.Messages[1].Content)
		}
		if req.Model != "gpt-4o-mini" || req.MaxTokens != 120 || req.Temperature != 0.2 {
			t.Errorf("unexpected generation parameters %+v", req)
		}

		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Dial *72."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	svc, err := NewOpenAILLM(&domain.LLMSettings{
		Provider:    domain.AIProviderOpenAI,
		APIKey:      "sk-test",
		BaseURL:     server.URL,
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   120,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer, err := svc.Complete(context.Background(), "system", "How do I forward calls?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Dial *72." {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestOpenAILLM_Complete_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`},
		{"server error", http.StatusBadGateway, `bad gateway`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			svc, err := NewOpenAILLM(&domain.LLMSettings{APIKey: "sk-test", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, err = svc.Complete(context.Background(), "s", "u")
			if !errors.Is(err, domain.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	}
}

func TestOpenAILLM_Ping(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	svc, err := NewOpenAILLM(&domain.LLMSettings{APIKey: "sk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy ping, got %v", err)
	}

	status = http.StatusUnauthorized
	if err := svc.Ping(context.Background()); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}

	if err := svc.Close(); err != nil {
		t.Errorf("expected no error from Close, got %v", err)
	}
}

func TestOllamaLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("expected no Authorization header")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Restart the router."}}]}`))
	}))
	defer server.Close()

	svc, err := NewOllamaLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Model() != "llama3.2" {
		t.Errorf("expected default ollama model, got %s", svc.Model())
	}

	answer, err := svc.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Restart the router." {
		t.Errorf("unexpected answer %q", answer)
	}
}
