package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 1500, cfg.RAG.MaxChars)
		assert.Equal(t, 20, cfg.RAG.Overlap)
		assert.Equal(t, 5, cfg.RAG.TopK)
		assert.Equal(t, "pgvector", cfg.Vector.Backend)
		assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	})

	t.Run("should read overrides from the environment", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("VECTOR_BACKEND", "qdrant")
		t.Setenv("EMBEDDING_DIMENSION", "1536")
		t.Setenv("GEMINI_API_KEY", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "qdrant", cfg.Vector.Backend)
		assert.Equal(t, 1536, cfg.Embedding.Dimension)
		assert.Equal(t, "secret", cfg.Gemini.APIKey)
	})

	t.Run("should reject an overlap larger than the chunk size", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("RAG_OVERLAP", "2000")

		_, err := Load()
		assert.Error(t, err)
	})
}
