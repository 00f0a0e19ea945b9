package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
)

// Default model settings for answer synthesis
const (
	DefaultLLMModel       = "gpt-3.5-turbo"
	DefaultLLMTemperature = 0.7
	DefaultLLMMaxTokens   = 300
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider AIProvider `yaml:"provider" json:"provider"`
	Model    string     `yaml:"model" json:"model"`
	APIKey   string     `yaml:"api_key" json:"-"` // Never serialize to JSON
	BaseURL  string     `yaml:"base_url" json:"base_url,omitempty"`

	// RequestsPerSecond throttles outbound calls; zero disables throttling
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second,omitempty"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings configures the LLM service
type LLMSettings struct {
	Provider    AIProvider `yaml:"provider" json:"provider"`
	Model       string     `yaml:"model" json:"model"`
	APIKey      string     `yaml:"api_key" json:"-"` // Never serialize to JSON
	BaseURL     string     `yaml:"base_url" json:"base_url,omitempty"`
	Temperature float64    `yaml:"temperature" json:"temperature"`
	MaxTokens   int        `yaml:"max_tokens" json:"max_tokens"`

	// RequestsPerSecond throttles outbound calls; zero disables throttling
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama:
		return true
	default:
		return false
	}
}
