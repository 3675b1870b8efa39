package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/metrics"
)

// GeminiClient generates with the Gemini API through the genai SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

type GeminiOption func(*GeminiClient)

func GeminiWithTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiClient) {
		g.timeout = d
	}
}

func GeminiWithLogger(l *zap.Logger) GeminiOption {
	return func(g *GeminiClient) {
		g.log = l
	}
}

func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, apperrors.Validation("gemini api key not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g := &GeminiClient{client: client, model: model, timeout: 60 * time.Second, log: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiClient) Provider() string { return "gemini" }

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(req.Schema)
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	metrics.LLMRequestDuration.WithLabelValues(g.Provider(), operation(req)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apperrors.Transient(errors.New("no candidates"), "gemini generation")
	}

	cand := resp.Candidates[0]
	if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
		g.log.Warn("gemini candidate finished early", zap.String("finish_reason", cand.FinishReason.String()))
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned empty content (finish reason: %s)", cand.FinishReason)
	}
	g.log.Debug("gemini generation done",
		zap.String("model", g.model),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return sb.String(), nil
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Nullable:    s.Nullable,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeString:
		out.Type = genai.TypeString
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	case TypeArray:
		out.Type = genai.TypeArray
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func classifyGeminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.Transient(err, "gemini generation timed out")
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return apperrors.Transient(err, "gemini generation")
		}
		return fmt.Errorf("gemini generation: %w", err)
	}
	return apperrors.Transient(err, "gemini generation")
}

func operation(req Request) string {
	if req.Operation == "" {
		return "generate"
	}
	return req.Operation
}
