package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"fapdraft-backend/apperrors"
)

// PgVectorSchema creates the tables used by PgVectorStore. Collections
// share one table so the embedding column carries no fixed dimension.
const PgVectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_collections (
    name VARCHAR(255) PRIMARY KEY,
    dimension INTEGER NOT NULL CHECK (dimension > 0),
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS knowledge_chunks (
    collection VARCHAR(255) NOT NULL REFERENCES vector_collections(name) ON DELETE CASCADE,
    id VARCHAR(255) NOT NULL,
    embedding vector NOT NULL,
    source TEXT NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_source ON knowledge_chunks(collection, source);
`

// PgVectorStore keeps vectors in PostgreSQL with the pgvector extension.
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	var existing int
	err := s.db.QueryRow(ctx, `SELECT dimension FROM vector_collections WHERE name = $1`, name).Scan(&existing)
	if err == nil {
		if existing != dimension {
			return dimensionError(name, existing, dimension)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.Transient(err, "failed to read collection %s", name)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO vector_collections (name, dimension) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`, name, dimension)
	if err != nil {
		return apperrors.Transient(err, "failed to create collection %s", name)
	}
	// Lost a creation race: re-check the winner's dimension.
	if err := s.db.QueryRow(ctx, `SELECT dimension FROM vector_collections WHERE name = $1`, name).Scan(&existing); err != nil {
		return apperrors.Transient(err, "failed to read collection %s", name)
	}
	if existing != dimension {
		return dimensionError(name, existing, dimension)
	}
	return nil
}

func (s *PgVectorStore) dimension(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, name string) (int, error) {
	var dim int
	err := q.QueryRow(ctx, `SELECT dimension FROM vector_collections WHERE name = $1`, name).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.NotFound("collection %s", name)
	}
	if err != nil {
		return 0, apperrors.Transient(err, "failed to read collection %s", name)
	}
	return dim, nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperrors.Transient(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	dim, err := s.dimension(ctx, tx, name)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Vector) != dim {
			return dimensionError(name, dim, len(r.Vector))
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", r.ID, err)
		}
		batch.Queue(`
			INSERT INTO knowledge_chunks (collection, id, embedding, source, payload)
			VALUES ($1, $2, $3::vector, $4, $5)
			ON CONFLICT (collection, id) DO UPDATE
			SET embedding = EXCLUDED.embedding, source = EXCLUDED.source, payload = EXCLUDED.payload`,
			name, r.ID, pgvector.NewVector(r.Vector), r.Payload.Source, payload)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.Transient(err, "failed to upsert %d records into %s", len(records), name)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Transient(err, "failed to commit upsert into %s", name)
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	dim, err := s.dimension(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, dimensionError(name, dim, len(vector))
	}
	if k <= 0 {
		k = 5
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, payload, 1 - (embedding <=> $2::vector) AS score
		FROM knowledge_chunks
		WHERE collection = $1
		ORDER BY embedding <=> $2::vector, id
		LIMIT $3`, name, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, apperrors.Transient(err, "failed to query %s", name)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h     Hit
			raw   []byte
			score float64
		)
		if err := rows.Scan(&h.ID, &raw, &score); err != nil {
			return nil, fmt.Errorf("failed to scan vector record: %w", err)
		}
		if err := json.Unmarshal(raw, &h.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of %s: %w", h.ID, err)
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Transient(err, "error iterating %s", name)
	}
	sortHits(hits)
	return hits, nil
}

func (s *PgVectorStore) DeleteBySource(ctx context.Context, name, source string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE collection = $1 AND source = $2`, name, source)
	if err != nil {
		return apperrors.Transient(err, "failed to delete %s from %s", source, name)
	}
	return nil
}
