package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fapdraft-backend/config"
)

// Open builds the generation client selected by cfg.LLM.Provider.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Client, error) {
	switch cfg.LLM.Provider {
	case "", "gemini":
		g, err := NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.LLM.Model,
			GeminiWithTimeout(cfg.LLM.Timeout),
			GeminiWithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		oc := openai.DefaultConfig(cfg.OpenAI.APIKey)
		if cfg.OpenAI.BaseURL != "" {
			oc.BaseURL = cfg.OpenAI.BaseURL
		}
		return NewOpenAIClient(openai.NewClientWithConfig(oc), cfg.LLM.Model,
			OpenAIWithTimeout(cfg.LLM.Timeout),
			OpenAIWithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
