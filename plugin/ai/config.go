package ai

import (
	"errors"

	"github.com/hrygo/recall/internal/profile"
	"github.com/hrygo/recall/plugin/ai/vector"
)

// Config represents AI configuration.
type Config struct {
	Enabled bool

	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // openai
	Model      string // text-embedding-3-small
	Dimensions int    // 1536
	APIKey     string
	BaseURL    string
}

// LLMConfig represents the structured-output model configuration.
type LLMConfig struct {
	Provider    string // openai
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 512
	Temperature float32 // default: 0
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.Embedding = EmbeddingConfig{
		Provider:   "openai",
		Model:      p.AIEmbeddingModel,
		Dimensions: vector.Dimensions,
		APIKey:     p.AIOpenAIAPIKey,
		BaseURL:    p.AIOpenAIBaseURL,
	}

	// Classification is deterministic, so temperature stays at zero.
	cfg.LLM = LLMConfig{
		Provider:    "openai",
		Model:       p.AILLMModel,
		APIKey:      p.AIOpenAIAPIKey,
		BaseURL:     p.AIOpenAIBaseURL,
		MaxTokens:   512,
		Temperature: 0,
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.Embedding.Dimensions != vector.Dimensions {
		return errors.New("embedding dimensions must match the vector store")
	}
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	return nil
}
