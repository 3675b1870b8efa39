package embedding

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fapdraft-backend/config"
)

// Open builds the embedder selected by cfg.Embedding.Provider, wrapped in a
// Redis cache when redis.addr is set.
func Open(cfg *config.Config, logger *zap.Logger) (Embedder, error) {
	var e Embedder
	switch cfg.Embedding.Provider {
	case "", "gemini":
		g, err := NewGeminiEmbedder(cfg.Gemini.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimension,
			GeminiWithTimeout(cfg.Embedding.Timeout),
			GeminiWithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		e = g
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		e = NewOpenAIEmbedder(NewOpenAIAPI(cfg.OpenAI), cfg.Embedding.Model, cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Redis.Addr == "" {
		return e, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewCachedEmbedder(e, client, cfg.Embedding.CacheTTL, logger), nil
}

// NewOpenAIAPI returns an OpenAI SDK client honouring openai.base_url.
func NewOpenAIAPI(cfg config.OpenAIConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}
