package vectorstore

import (
	"context"
	"math"
	"sync"

	"fapdraft-backend/apperrors"
)

type memoryCollection struct {
	dimension int
	ids       []string
	records   map[string]Record
}

// MemoryStore keeps collections in process. Useful for tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memoryCollection{}}
}

func (m *MemoryStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.dimension != dimension {
			return dimensionError(name, c.dimension, dimension)
		}
		return nil
	}
	m.collections[name] = &memoryCollection{dimension: dimension, records: map[string]Record{}}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, name string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return apperrors.NotFound("collection %s", name)
	}
	for _, r := range records {
		if len(r.Vector) != c.dimension {
			return dimensionError(name, c.dimension, len(r.Vector))
		}
	}
	for _, r := range records {
		if _, exists := c.records[r.ID]; !exists {
			c.ids = append(c.ids, r.ID)
		}
		r.Vector = append([]float32(nil), r.Vector...)
		c.records[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) Query(_ context.Context, name string, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, apperrors.NotFound("collection %s", name)
	}
	hits := make([]Hit, 0, len(c.ids))
	for _, id := range c.ids {
		r := c.records[id]
		hits = append(hits, Hit{ID: id, Score: cosine(vector, r.Vector), Payload: r.Payload})
	}
	sortHits(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) DeleteBySource(_ context.Context, name, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil
	}
	kept := c.ids[:0]
	for _, id := range c.ids {
		if c.records[id].Payload.Source == source {
			delete(c.records, id)
			continue
		}
		kept = append(kept, id)
	}
	c.ids = kept
	return nil
}

// Len is the number of records in a collection.
func (m *MemoryStore) Len(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[name]; ok {
		return len(c.ids)
	}
	return 0
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
