package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/config"
)

// Open builds the backend selected by cfg.Backend. db is only used by the
// pgvector backend.
func Open(ctx context.Context, cfg config.VectorConfig, db *pgxpool.Pool) (Store, error) {
	switch cfg.Backend {
	case "", "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector backend requires a database pool")
		}
		return NewPgVectorStore(db), nil
	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			URL:     fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}), nil
	case "milvus":
		return NewMilvusStore(ctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}
