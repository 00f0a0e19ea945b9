// Package config loads process configuration from a YAML file, an optional
// .env file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/postprocessors"
)

// Vector store backends
const (
	BackendVespa  = "vespa"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Group lock backends. An empty backend leaves single-writer-per-group to callers.
const (
	LockNone     = ""
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig               `yaml:"server"`
	Auth        AuthConfig                 `yaml:"auth"`
	Log         LogConfig                  `yaml:"log"`
	VectorStore VectorStoreConfig          `yaml:"vector_store"`
	Embedding   domain.EmbeddingSettings   `yaml:"embedding"`
	LLM         domain.LLMSettings         `yaml:"llm"`
	Postgres    PostgresConfig             `yaml:"postgres"`
	Redis       RedisConfig                `yaml:"redis"`
	Chunking    postprocessors.ChunkConfig `yaml:"chunking"`
	Retrieval   RetrievalConfig            `yaml:"retrieval"`
	Confidence  domain.ConfidenceConfig    `yaml:"confidence"`
	Ingest      IngestConfig               `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// MonitorInterval is how often backing services are re-probed
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// AuthConfig holds the API credentials. PasswordHash (bcrypt) wins over Password.
type AuthConfig struct {
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	Backend string       `yaml:"backend"`
	Vespa   VespaConfig  `yaml:"vespa"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

// VespaConfig holds Vespa endpoints.
type VespaConfig struct {
	URL        string        `yaml:"url"`
	ConfigURL  string        `yaml:"config_url"`
	Namespace  string        `yaml:"namespace"`
	Cluster    string        `yaml:"cluster"`
	TargetHits int           `yaml:"target_hits"`
	Timeout    time.Duration `yaml:"timeout"`

	// Deploy pushes the chunk schema to ConfigURL on startup
	Deploy bool `yaml:"deploy"`
}

// SQLiteConfig holds the on-disk store location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig enables the query log (and optionally advisory group locks).
type PostgresConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig enables Redis group locks.
type RedisConfig struct {
	URL        string `yaml:"url"`
	LockPrefix string `yaml:"lock_prefix"`
}

// RetrievalConfig bounds candidate retrieval and prompt context.
type RetrievalConfig struct {
	DefaultLimit     int `yaml:"default_limit"`
	MaxLimit         int `yaml:"max_limit"`
	MaxContextChunks int `yaml:"max_context_chunks"`
}

// IngestConfig controls document writes.
type IngestConfig struct {
	Atomic           bool          `yaml:"atomic"`
	MinContentLength int           `yaml:"min_content_length"`
	LockBackend      string        `yaml:"lock_backend"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MonitorInterval: 30 * time.Second,
		},
		Auth: AuthConfig{
			Username: "testuser",
			Password: "testpass123",
			TokenTTL: time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		VectorStore: VectorStoreConfig{
			Backend: BackendSQLite,
			Vespa: VespaConfig{
				URL:        "http://localhost:8080",
				ConfigURL:  "http://localhost:19071",
				Namespace:  "support",
				Cluster:    "support",
				TargetHits: 100,
				Timeout:    30 * time.Second,
			},
			SQLite: SQLiteConfig{Path: "data/support-rag.db"},
		},
		Embedding: domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI,
			Model:    domain.DefaultEmbeddingModel,
		},
		LLM: domain.LLMSettings{
			Provider:    domain.AIProviderOpenAI,
			Model:       domain.DefaultLLMModel,
			Temperature: domain.DefaultLLMTemperature,
			MaxTokens:   domain.DefaultLLMMaxTokens,
		},
		Postgres: PostgresConfig{MaxOpenConns: 10, MaxIdleConns: 2},
		Redis:    RedisConfig{LockPrefix: "supportrag:lock:"},
		Chunking: postprocessors.DefaultChunkConfig(),
		Retrieval: RetrievalConfig{
			DefaultLimit:     domain.DefaultRetrievalLimit,
			MaxLimit:         domain.MaxRetrievalLimit,
			MaxContextChunks: 3,
		},
		Confidence: domain.DefaultConfidenceConfig(),
		Ingest: IngestConfig{
			Atomic:           true,
			MinContentLength: domain.DefaultMinContentLength,
			LockTTL:          2 * time.Minute,
		},
	}
}

// Load builds the configuration. Values in the YAML file at path override
// the defaults; variables from envFile and the process environment override
// both. Empty path or envFile skip that layer, as does a missing envFile.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envFile != "" {
		// Existing environment variables take precedence over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SUPPORT_RAG_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SUPPORT_RAG_PORT", cfg.Server.Port)
	if origins := os.Getenv("SUPPORT_RAG_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	cfg.Auth.Username = getEnv("SUPPORT_RAG_USERNAME", cfg.Auth.Username)
	cfg.Auth.Password = getEnv("SUPPORT_RAG_PASSWORD", cfg.Auth.Password)
	cfg.Auth.PasswordHash = getEnv("SUPPORT_RAG_PASSWORD_HASH", cfg.Auth.PasswordHash)
	cfg.Auth.JWTSecret = getEnv("SUPPORT_RAG_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getEnvDuration("SUPPORT_RAG_TOKEN_TTL", cfg.Auth.TokenTTL)

	cfg.Log.Level = getEnv("SUPPORT_RAG_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("SUPPORT_RAG_LOG_FORMAT", cfg.Log.Format)

	cfg.VectorStore.Backend = getEnv("SUPPORT_RAG_VECTOR_BACKEND", cfg.VectorStore.Backend)
	cfg.VectorStore.Vespa.URL = getEnv("VESPA_URL", cfg.VectorStore.Vespa.URL)
	cfg.VectorStore.Vespa.ConfigURL = getEnv("VESPA_CONFIG_URL", cfg.VectorStore.Vespa.ConfigURL)
	cfg.VectorStore.Vespa.Deploy = getEnvBool("VESPA_DEPLOY", cfg.VectorStore.Vespa.Deploy)
	cfg.VectorStore.SQLite.Path = getEnv("SUPPORT_RAG_SQLITE_PATH", cfg.VectorStore.SQLite.Path)

	cfg.Embedding.Provider = domain.AIProvider(getEnv("SUPPORT_RAG_EMBEDDING_PROVIDER", string(cfg.Embedding.Provider)))
	cfg.Embedding.Model = getEnv("SUPPORT_RAG_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = getEnv("SUPPORT_RAG_EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.LLM.Provider = domain.AIProvider(getEnv("SUPPORT_RAG_LLM_PROVIDER", string(cfg.LLM.Provider)))
	cfg.LLM.Model = getEnv("SUPPORT_RAG_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("SUPPORT_RAG_LLM_BASE_URL", cfg.LLM.BaseURL)

	// Provider keys only fill settings that name that provider.
	cfg.Embedding.APIKey = providerKey(cfg.Embedding.Provider, cfg.Embedding.APIKey)
	cfg.LLM.APIKey = providerKey(cfg.LLM.Provider, cfg.LLM.APIKey)

	cfg.Postgres.URL = getEnv("DATABASE_URL", cfg.Postgres.URL)
	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.Retrieval.MaxContextChunks = getEnvInt("MAX_CONTEXT_DOCS", cfg.Retrieval.MaxContextChunks)

	cfg.Ingest.Atomic = getEnvBool("SUPPORT_RAG_INGEST_ATOMIC", cfg.Ingest.Atomic)
	cfg.Ingest.LockBackend = getEnv("SUPPORT_RAG_LOCK_BACKEND", cfg.Ingest.LockBackend)
}

func providerKey(provider domain.AIProvider, current string) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return getEnv("OPENAI_API_KEY", current)
	case domain.AIProviderAnthropic:
		return getEnv("ANTHROPIC_API_KEY", current)
	default:
		return current
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", domain.ErrInvalidInput, c.Server.Port)
	}
	if strings.TrimSpace(c.Auth.Username) == "" {
		return fmt.Errorf("%w: auth.username is required", domain.ErrInvalidInput)
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		return fmt.Errorf("%w: auth.password or auth.password_hash is required", domain.ErrInvalidInput)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be text or json", domain.ErrInvalidInput)
	}

	switch c.VectorStore.Backend {
	case BackendVespa:
		if c.VectorStore.Vespa.URL == "" {
			return fmt.Errorf("%w: vector_store.vespa.url is required", domain.ErrInvalidInput)
		}
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown vector_store.backend %q", domain.ErrInvalidInput, c.VectorStore.Backend)
	}

	if c.Embedding.Provider != "" && !c.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: embedding.provider %q", domain.ErrInvalidProvider, c.Embedding.Provider)
	}
	if c.LLM.Provider != "" && !c.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: llm.provider %q", domain.ErrInvalidProvider, c.LLM.Provider)
	}

	switch c.Ingest.LockBackend {
	case LockNone:
	case LockRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("%w: redis.url is required for redis group locks", domain.ErrInvalidInput)
		}
	case LockPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres.url is required for postgres group locks", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown ingest.lock_backend %q", domain.ErrInvalidInput, c.Ingest.LockBackend)
	}

	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive", domain.ErrInvalidInput)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("%w: chunking.overlap must be in [0, size)", domain.ErrInvalidInput)
	}
	if c.Retrieval.DefaultLimit <= 0 || c.Retrieval.MaxLimit < c.Retrieval.DefaultLimit {
		return fmt.Errorf("%w: retrieval limits must satisfy 0 < default_limit <= max_limit", domain.ErrInvalidInput)
	}
	if c.Ingest.MinContentLength <= 0 {
		return fmt.Errorf("%w: ingest.min_content_length must be positive", domain.ErrInvalidInput)
	}
	return c.Confidence.Validate()
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", domain.ErrInvalidInput, level)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// UsesDefaultPassword reports whether the built-in development password is active.
func (c *Config) UsesDefaultPassword() bool {
	return c.Auth.PasswordHash == "" && c.Auth.Password == Default().Auth.Password
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
