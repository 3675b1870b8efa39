package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/metrics"
)

// OpenAIEmbedder uses the OpenAI embeddings API (or a compatible server).
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

func NewOpenAIEmbedder(client *openai.Client, model string, dimension int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dimension: dimension}
}

func (o *OpenAIEmbedder) Dimension() int { return o.dimension }

func (o *OpenAIEmbedder) Model() string { return o.model }

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimension,
	})
	metrics.LLMRequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classifyOpenAIError(err, "openai embedding")
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.Transient(errors.New("empty response"), "openai embedding")
	}
	vec := resp.Data[0].Embedding
	if err := checkDimension(vec, o.dimension); err != nil {
		return nil, err
	}
	return Normalize(vec), nil
}

func classifyOpenAIError(err error, op string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && !retryableStatus(apiErr.HTTPStatusCode) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && !retryableStatus(reqErr.HTTPStatusCode) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperrors.Transient(err, "%s", op)
}
