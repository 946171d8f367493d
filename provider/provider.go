package provider

import (
	"context"
	"errors"
	"os"

	"github.com/mohammad-safakhou/docchat/config"
	"github.com/mohammad-safakhou/docchat/internal/session"
	openai_provider "github.com/mohammad-safakhou/docchat/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
)

// Provider is the boundary to the two external AI services: text embedding
// and text generation. Both must fail explicitly, never return empty
// results on upstream error.
type Provider interface {
	// CreateEmbedding embeds a batch of texts. The result has exactly one
	// vector per input, all of the same dimension, or the call fails whole.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	// Completion generates an answer from a system prompt, the bounded
	// prior turns and the new user message.
	Completion(ctx context.Context, system string, history []session.Turn, user string) (string, error)
}

// NewProvider creates an LLM client from configuration. The API key falls
// back to the conventional OPENAI_API_KEY variable.
func NewProvider(client Client, cfg config.OpenAIConfig) (Provider, error) {
	switch client {
	case OpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		return openai_provider.NewClient(openai_provider.Options{
			APIKey:         apiKey,
			BaseURL:        cfg.BaseURL,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Temperature:    float32(cfg.Temperature),
			Timeout:        cfg.Timeout,
		}), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
