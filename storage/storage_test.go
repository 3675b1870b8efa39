package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/config"
)

func TestTenantKey(t *testing.T) {
	t.Run("should scope keys by tenant and kind", func(t *testing.T) {
		key := TenantKey(3, KindTemplate, "modelo trajeto.docx")
		assert.True(t, strings.HasPrefix(key, "tenants/3/templates/"))
		assert.True(t, strings.HasSuffix(key, "_modelo_trajeto.docx"))
		assert.True(t, OwnedBy(3, key))
		assert.False(t, OwnedBy(4, key))
	})

	t.Run("should strip directories from uploaded names", func(t *testing.T) {
		assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
		assert.Equal(t, "guia.pdf", SanitizeFilename(`C:\docs\guia.pdf`))
	})

	t.Run("should reject keys escaping the tenant prefix", func(t *testing.T) {
		assert.False(t, OwnedBy(3, "tenants/3/../4/templates/x.docx"))
		assert.False(t, OwnedBy(3, "tenants/33/templates/x.docx"))
	})
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := New(config.StorageConfig{Type: "local", LocalPath: t.TempDir()}, config.AWSConfig{})
	require.NoError(t, err)

	t.Run("should store and read back an object", func(t *testing.T) {
		key := TenantKey(1, KindKnowledge, "guia.txt")
		require.NoError(t, s.Put(ctx, key, strings.NewReader("conteúdo")))
		data, err := ReadAll(ctx, s, key)
		require.NoError(t, err)
		assert.Equal(t, "conteúdo", string(data))

		require.NoError(t, s.Delete(ctx, key))
		_, err = s.Get(ctx, key)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("should refuse traversal keys", func(t *testing.T) {
		err := s.Put(ctx, "../outside.txt", strings.NewReader("x"))
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})

	t.Run("should ignore deleting a missing object", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, "tenants/1/knowledge/missing.txt"))
	})
}
