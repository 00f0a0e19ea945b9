package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

const defaultOllamaLLM = "llama3.2"

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

// OpenAILLM implements LLMService using the chat completions API. It also
// serves Ollama, which exposes the same API under /v1.
type OpenAILLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
	limiter     *rate.Limiter
}

// NewOpenAILLM creates an LLM service backed by OpenAI chat completions
func NewOpenAILLM(settings *domain.LLMSettings, opts ...Option) (driven.LLMService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return newChatLLM(settings, settings.APIKey, baseURL, domain.DefaultLLMModel, opts), nil
}

// NewOllamaLLM creates an LLM service backed by a local Ollama server
func NewOllamaLLM(settings *domain.LLMSettings, opts ...Option) (driven.LLMService, error) {
	return newChatLLM(settings, "", ollamaBaseURL(settings.BaseURL), defaultOllamaLLM, opts), nil
}

func newChatLLM(settings *domain.LLMSettings, apiKey, baseURL, defaultModel string, opts []Option) *OpenAILLM {
	o := applyOptions(opts)
	model, temperature, maxTokens := llmDefaults(settings, defaultModel)
	return &OpenAILLM{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      o.client,
		limiter:     o.limiter(),
	}
}

// llmDefaults fills unset generation parameters
func llmDefaults(settings *domain.LLMSettings, defaultModel string) (string, float64, int) {
	model := settings.Model
	if model == "" {
		model = defaultModel
	}
	temperature := settings.Temperature
	if temperature <= 0 {
		temperature = domain.DefaultLLMTemperature
	}
	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = domain.DefaultLLMMaxTokens
	}
	return model, temperature, maxTokens
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// Complete sends one system and one user message and returns the reply
func (l *OpenAILLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := wait(ctx, l.limiter); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := l.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("%w: chat API returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: chat API error: %s (type: %s)",
			domain.ErrServiceUnavailable, chatResp.Error.Message, chatResp.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: chat API returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat API returned no choices", domain.ErrServiceUnavailable)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping lists models to verify the endpoint and credentials
func (l *OpenAILLM) Ping(ctx context.Context) error {
	resp, err := l.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: models endpoint returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OpenAILLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

func (l *OpenAILLM) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: chat request failed: %w", domain.ErrServiceUnavailable, err)
	}
	return resp, nil
}
