package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/metrics"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Task types understood by the Gemini embedding API.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// embedContentRequest represents an embedding API request
type embedContentRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// GeminiEmbedder calls the Gemini embedContent REST endpoint, which accepts
// an explicit output dimensionality.
type GeminiEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	taskType   string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

type GeminiOption func(*GeminiEmbedder)

func GeminiWithEndpoint(url string) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.endpoint = strings.TrimRight(url, "/")
	}
}

func GeminiWithTaskType(task string) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.taskType = task
	}
}

func GeminiWithTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.httpClient = &http.Client{Timeout: d}
	}
}

func GeminiWithLogger(l *zap.Logger) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.logger = l
	}
}

func NewGeminiEmbedder(apiKey, model string, dimension int, opts ...GeminiOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	g := &GeminiEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		taskType:   TaskRetrievalDocument,
		endpoint:   geminiEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiEmbedder) Dimension() int { return g.dimension }

func (g *GeminiEmbedder) Model() string { return g.model }

// Embed returns the unit-length embedding of text. Network failures, 429
// and 5xx answers are transient.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedContentRequest{
		Model:                g.model,
		Content:              contentInput{Parts: []partInput{{Text: text}}},
		TaskType:             g.taskType,
		OutputDimensionality: g.dimension,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:embedContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	metrics.LLMRequestDuration.WithLabelValues("gemini", "embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperrors.Transient(err, "gemini embedding request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		g.logger.Warn("gemini embedding error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		cause := fmt.Errorf("API error: %d", resp.StatusCode)
		if retryableStatus(resp.StatusCode) {
			return nil, apperrors.Transient(cause, "gemini embedding")
		}
		return nil, cause
	}

	var apiResp embedContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperrors.Transient(err, "decoding gemini embedding")
	}
	vec := apiResp.Embedding.Values
	if err := checkDimension(vec, g.dimension); err != nil {
		return nil, err
	}
	return Normalize(vec), nil
}
