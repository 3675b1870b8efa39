package converter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/docx"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvert(t *testing.T) {
	c := New()
	ctx := context.Background()

	t.Run("should normalise plain text", func(t *testing.T) {
		path := writeFile(t, "nota.txt", "Linha 1   \r\nLinha 2\r\n\r\n\r\n\r\nLinha 3\n")
		text, err := c.Convert(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "Linha 1\nLinha 2\n\nLinha 3", text)
	})

	t.Run("should keep markdown as is", func(t *testing.T) {
		path := writeFile(t, "tese.md", "# Tese\n\nTexto.")
		text, err := c.Convert(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "# Tese\n\nTexto.", text)
	})

	t.Run("should extract headings and tables from DOCX", func(t *testing.T) {
		doc, err := docx.New(`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Decisão</w:t></w:r></w:p>` +
			`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>NB</w:t></w:r></w:p></w:tc></w:tr>` +
			`<w:tr><w:tc><w:p><w:r><w:t>123</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "acordao.docx")
		require.NoError(t, doc.Save(path))

		text, err := c.Convert(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "## Decisão\n\n| NB |\n| --- |\n| 123 |", text)
	})

	t.Run("should extract structure from HTML", func(t *testing.T) {
		path := writeFile(t, "pagina.html", `<html><head><script>x()</script></head><body>
			<h1>Resolução</h1><p>Art.  1º   texto.</p><ul><li>item</li></ul>
			<table><tr><th>Ano</th><th>FAP</th></tr><tr><td>2020</td><td>1,2</td></tr></table></body></html>`)
		text, err := c.Convert(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "# Resolução\n\nArt. 1º texto.\n\n- item\n\n| Ano | FAP |\n| --- | --- |\n| 2020 | 1,2 |", text)
	})

	t.Run("should reject unsupported formats", func(t *testing.T) {
		path := writeFile(t, "planilha.xlsx", "x")
		_, err := c.Convert(ctx, path)
		assert.ErrorIs(t, err, apperrors.ErrConversion)
	})

	t.Run("should fail on missing files", func(t *testing.T) {
		_, err := c.Convert(ctx, filepath.Join(t.TempDir(), "nada.pdf"))
		assert.ErrorIs(t, err, apperrors.ErrConversion)
	})

	t.Run("should fail on legacy DOC without LibreOffice", func(t *testing.T) {
		path := writeFile(t, "antigo.doc", "binary")
		_, err := New(WithSoffice("definitely-not-installed-soffice")).Convert(ctx, path)
		assert.ErrorIs(t, err, apperrors.ErrConversion)
	})

	t.Run("should fail on corrupt DOCX", func(t *testing.T) {
		path := writeFile(t, "quebrado.docx", "not a zip")
		_, err := c.Convert(ctx, path)
		assert.ErrorIs(t, err, apperrors.ErrConversion)
	})
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports("a.PDF"))
	assert.True(t, Supports("b.docx"))
	assert.False(t, Supports("c.xlsx"))
}
