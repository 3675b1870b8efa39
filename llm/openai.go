package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/metrics"
)

// OpenAIClient generates with the chat completions API of OpenAI or a
// compatible server.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

type OpenAIOption func(*OpenAIClient)

func OpenAIWithTimeout(d time.Duration) OpenAIOption {
	return func(o *OpenAIClient) {
		o.timeout = d
	}
}

func OpenAIWithLogger(l *zap.Logger) OpenAIOption {
	return func(o *OpenAIClient) {
		o.log = l
	}
}

func NewOpenAIClient(client *openai.Client, model string, opts ...OpenAIOption) *OpenAIClient {
	o := &OpenAIClient{client: client, model: model, timeout: 60 * time.Second, log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAIClient) Provider() string { return "openai" }

func (o *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	system := req.System
	if req.Schema != nil {
		if system != "" {
			system += "\n\n"
		}
		system += describeSchema(req.Schema)
	}
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	// A zero temperature is dropped by the client's omitempty tag.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	chatReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: temperature,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	metrics.LLMRequestDuration.WithLabelValues(o.Provider(), operation(req)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.Transient(errors.New("no choices"), "openai completion")
	}
	o.log.Debug("openai completion done",
		zap.String("model", o.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && !retryable(apiErr.HTTPStatusCode) {
		return fmt.Errorf("openai completion: %w", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && !retryable(reqErr.HTTPStatusCode) {
		return fmt.Errorf("openai completion: %w", err)
	}
	return apperrors.Transient(err, "openai completion")
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
