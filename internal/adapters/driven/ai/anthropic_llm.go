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

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-3-5-haiku-latest"
	anthropicVersion        = "2023-06-01"
)

// Ensure AnthropicLLM implements LLMService
var _ driven.LLMService = (*AnthropicLLM)(nil)

// AnthropicLLM implements LLMService using the Anthropic messages API
type AnthropicLLM struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
	limiter     *rate.Limiter
}

// NewAnthropicLLM creates an LLM service backed by the Anthropic messages API
func NewAnthropicLLM(settings *domain.LLMSettings, opts ...Option) (driven.LLMService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is required", domain.ErrInvalidInput)
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	o := applyOptions(opts)
	// The OpenAI default model name means nothing to Anthropic
	model := settings.Model
	if model == domain.DefaultLLMModel {
		model = ""
	}
	s := *settings
	s.Model = model
	model, temperature, maxTokens := llmDefaults(&s, defaultAnthropicModel)
	if temperature > 1 {
		temperature = 1
	}

	return &AnthropicLLM{
		apiKey:      settings.APIKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      o.client,
		limiter:     o.limiter(),
	}, nil
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the system prompt and one user message and returns the text reply
func (a *AnthropicLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := wait(ctx, a.limiter); err != nil {
		return "", err
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       a.model,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: userPrompt}},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := a.do(ctx, http.MethodPost, "/messages", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("%w: messages API returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("%w: messages API error: %s (type: %s)",
			domain.ErrServiceUnavailable, msgResp.Error.Message, msgResp.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: messages API returned status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	var b strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// Model returns the model name being used
func (a *AnthropicLLM) Model() string {
	return a.model
}

// Ping lists models to verify the endpoint and credentials
func (a *AnthropicLLM) Ping(ctx context.Context) error {
	resp, err := a.do(ctx, http.MethodGet, "/models", nil)
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
func (a *AnthropicLLM) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *AnthropicLLM) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: messages request failed: %w", domain.ErrServiceUnavailable, err)
	}
	return resp, nil
}
