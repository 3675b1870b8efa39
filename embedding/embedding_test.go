package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapdraft-backend/apperrors"
)

func TestNormalize(t *testing.T) {
	t.Run("should scale to unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("should leave the zero vector alone", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
	})
}

func geminiServer(t *testing.T, status int, values []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))

		var req embedContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.OutputDimensionality)
		assert.NotEmpty(t, req.Content.Parts[0].Text)

		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": map[string]any{"values": values}})
		}
	}))
}

func TestGeminiEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("should return a normalised vector", func(t *testing.T) {
		srv := geminiServer(t, http.StatusOK, []float32{1, 2, 2})
		defer srv.Close()
		e, err := NewGeminiEmbedder("key", "text-embedding-004", 3, GeminiWithEndpoint(srv.URL))
		require.NoError(t, err)

		vec, err := e.Embed(ctx, "texto")
		require.NoError(t, err)
		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	})

	t.Run("should flag a dimension mismatch", func(t *testing.T) {
		srv := geminiServer(t, http.StatusOK, []float32{1, 2})
		defer srv.Close()
		e, _ := NewGeminiEmbedder("key", "text-embedding-004", 3, GeminiWithEndpoint(srv.URL))

		_, err := e.Embed(ctx, "texto")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.ErrorIs(t, Probe(ctx, e), ErrDimensionMismatch)
	})

	t.Run("should mark server errors as transient", func(t *testing.T) {
		srv := geminiServer(t, http.StatusServiceUnavailable, nil)
		defer srv.Close()
		e, _ := NewGeminiEmbedder("key", "text-embedding-004", 3, GeminiWithEndpoint(srv.URL))

		_, err := e.Embed(ctx, "texto")
		assert.ErrorIs(t, err, apperrors.ErrTransient)
	})

	t.Run("should not retry client errors", func(t *testing.T) {
		srv := geminiServer(t, http.StatusBadRequest, nil)
		defer srv.Close()
		e, _ := NewGeminiEmbedder("key", "text-embedding-004", 3, GeminiWithEndpoint(srv.URL))

		_, err := e.Embed(ctx, "texto")
		require.Error(t, err)
		assert.False(t, apperrors.IsRetryable(err))
	})

	t.Run("should require an API key", func(t *testing.T) {
		_, err := NewGeminiEmbedder("", "m", 3)
		assert.Error(t, err)
	})
}
