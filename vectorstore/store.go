// Package vectorstore persists embedded chunks and answers nearest
// neighbour queries by cosine similarity.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrDimensionMismatch means an existing collection was created with
// another vector size. It is not recoverable without re-ingesting.
var ErrDimensionMismatch = errors.New("collection dimension mismatch")

// Payload is the metadata stored next to each vector.
type Payload struct {
	Text          string `json:"text"`
	Source        string `json:"source"`
	Category      string `json:"category,omitempty"`
	Description   string `json:"description,omitempty"`
	Tags          string `json:"tags,omitempty"`
	LawsuitNumber string `json:"lawsuit_number,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	ChunkTotal    int    `json:"chunk_total"`
	IngestedAt    string `json:"ingested_at"`
	ParentID      *int64 `json:"parent_id,omitempty"`
}

type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

type Hit struct {
	ID      string
	Score   float32
	Payload Payload
}

// Store is implemented by every vector backend.
type Store interface {
	// EnsureCollection creates the collection when missing and fails with
	// ErrDimensionMismatch when it exists with another dimension.
	EnsureCollection(ctx context.Context, name string, dimension int) error
	// Upsert writes all records or none.
	Upsert(ctx context.Context, name string, records []Record) error
	// Query returns up to k hits ordered by descending score.
	Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error)
	// DeleteBySource removes every record whose payload source matches.
	DeleteBySource(ctx context.Context, name, source string) error
}

// TenantCollection is the collection holding a tenant's knowledge base.
func TenantCollection(prefix string, tenantID int64) string {
	return fmt.Sprintf("%s_t%d", prefix, tenantID)
}

func dimensionError(name string, existing, requested int) error {
	return fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, name, existing, requested)
}

// sortHits orders hits by descending score keeping backend order on ties.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}
