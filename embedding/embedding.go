// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
)

// ErrDimensionMismatch is returned when a provider answers with a vector of
// another size than configured.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder produces a vector of Dimension() floats for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// Probe embeds a short text and checks the provider honours the configured dimension.
func Probe(ctx context.Context, e Embedder) error {
	vec, err := e.Embed(ctx, "verificação de dimensão")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	return checkDimension(vec, e.Dimension())
}

func checkDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, configured %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// Normalize scales v to unit length in place.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
