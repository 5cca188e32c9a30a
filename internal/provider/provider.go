// Package provider exposes the embedding and chat completion capabilities as
// named variants selected by configuration.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/docassist/docassist/config"
	"github.com/docassist/docassist/internal/provider/ollama"
	"github.com/docassist/docassist/internal/provider/openai"
	"github.com/docassist/docassist/models"
)

// Embedder maps a batch of texts to fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []models.ConversationMessage) (string, error)
}

// NewEmbedder creates the embedding provider named in the configuration.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("embedding.api_key not set")
		}
		return openai.NewClient(cfg.APIKey, cfg.BaseURL, "", cfg.Model, 0, 0, cfg.Timeout), nil
	case "ollama":
		return ollama.NewClient(cfg.BaseURL, "", cfg.Model, 0, 0, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// NewGenerator creates the LLM provider named in the configuration.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai.NewClient(cfg.APIKey, "", cfg.Model, "", cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case "ollama":
		return ollama.NewClient(cfg.Host, cfg.Model, "", cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
