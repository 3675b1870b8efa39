package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/logger"
)

// qdrantNamespace derives point ids for record ids that are not UUIDs.
var qdrantNamespace = uuid.MustParse("6f1c8a52-3d0e-4b7a-9a35-1f2d6c0b8e41")

// QdrantStore is a REST client to Qdrant using cosine distance.
type QdrantStore struct {
	url    string
	apiKey string
	client *http.Client
	log    *zap.Logger
}

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		log:    logger.Named("qdrant"),
	}
}

func (s *QdrantStore) collectionURL(name string, suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, url.PathEscape(name), suffix)
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return apperrors.Validation("invalid dimension %d", dimension)
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(name, ""), nil, &info)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusOK {
		if size := info.Result.Config.Params.Vectors.Size; size != dimension {
			return dimensionError(name, size, dimension)
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(name, ""), body, nil); err != nil {
		return err
	}
	s.log.Info("created collection", zap.String("collection", name), zap.Int("dimension", dimension))
	return nil
}

func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(qdrantNamespace, []byte(id)).String()
}

type qdrantPayload struct {
	Payload
	RecordID string `json:"record_id"`
}

func (s *QdrantStore) Upsert(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":      pointID(r.ID),
			"vector":  r.Vector,
			"payload": qdrantPayload{Payload: r.Payload, RecordID: r.ID},
		}
	}
	body := map[string]any{"points": points}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL(name, "/points?wait=true"), body, nil)
	return err
}

func (s *QdrantStore) Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any           `json:"id"`
			Score   float32       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL(name, "/points/search"), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := r.Payload.RecordID
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		hits = append(hits, Hit{ID: id, Score: r.Score, Payload: r.Payload.Payload})
	}
	sortHits(hits)
	return hits, nil
}

func (s *QdrantStore) DeleteBySource(ctx context.Context, name, source string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source", "match": map[string]any{"value": source}},
			},
		},
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL(name, "/points/delete?wait=true"), body, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// do sends a JSON request and decodes the response into out when set.
// The status code is returned even when the call fails.
func (s *QdrantStore) do(ctx context.Context, method, endpoint string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, apperrors.Transient(err, "qdrant %s %s failed", method, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("qdrant %s %s failed: %s: %s", method, endpoint, resp.Status, strings.TrimSpace(string(msg)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return resp.StatusCode, apperrors.NotFound("qdrant %s", endpoint)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return resp.StatusCode, apperrors.Transient(err, "qdrant unavailable")
		default:
			return resp.StatusCode, err
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
