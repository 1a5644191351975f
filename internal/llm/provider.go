package llm

import (
	"context"
	"fmt"
	"time"

	"grading-service/internal/gemini"
	"grading-service/internal/groq"
	"grading-service/internal/models"
	"grading-service/internal/openrouter"

	"go.uber.org/zap"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ProviderConfig holds configuration for a single roster model
type ProviderConfig struct {
	// ID is the model identifier recorded with every grade. Defaults to ModelName.
	ID          string        `yaml:"id"`
	Type        ProviderType  `yaml:"type"`
	APIKey      string        `yaml:"api_key"`
	ModelName   string        `yaml:"model_name"`
	BaseURL     string        `yaml:"base_url"`
	Temperature *float32      `yaml:"temperature"` // nil uses the grader default
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider interface for any LLM provider
type Provider interface {
	Complete(ctx context.Context, req models.ChatRequest) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// Embedder computes text embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewProvider builds the backend named by cfg.Type
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
		}, logger)
	case ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			BaseURL:   cfg.BaseURL,
		}, logger)
	case ProviderOpenRouter, "":
		return openrouter.NewClient(openrouter.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			BaseURL:   cfg.BaseURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// NewEmbedder builds an embedding backend. Groq has no embeddings endpoint.
func NewEmbedder(cfg ProviderConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{APIKey: cfg.APIKey, ModelName: cfg.ModelName}, logger)
	case ProviderOpenRouter, "":
		return openrouter.NewClient(openrouter.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			BaseURL:   cfg.BaseURL,
		}, logger)
	default:
		return nil, fmt.Errorf("provider %q does not support embeddings", cfg.Type)
	}
}
