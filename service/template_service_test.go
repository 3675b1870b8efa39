package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/docx"
	"fapdraft-backend/models"
	"fapdraft-backend/storage"
)

func wpara(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	d, err := docx.New(body)
	require.NoError(t, err)
	data, err := d.Bytes()
	require.NoError(t, err)
	return data
}

type templateFixture struct {
	svc       *TemplateService
	templates *fakeTemplates
	tenants   *fakeTenants
	reasons   *fakeReasons
	files     *storage.LocalStorage
}

func newTemplateFixture(t *testing.T) *templateFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := &templateFixture{
		templates: newFakeTemplates(),
		tenants: &fakeTenants{tenants: map[int64]*models.Tenant{
			1: {ID: 1, Name: "Escritório A"},
			2: {ID: 2, Name: "Escritório B"},
		}},
		reasons: reasonCatalog(),
		files:   files,
	}
	f.svc = NewTemplateService(
		TemplateWithRepository(f.templates),
		TemplateWithTenantRepository(f.tenants),
		TemplateWithReasonRepository(f.reasons),
		TemplateWithStorage(files),
	)
	return f
}

func (f *templateFixture) register(t *testing.T, tenantID int64, name string, isDefault bool) *models.Template {
	t.Helper()
	tmpl, err := f.svc.Register(context.Background(), tenantID, RegisterTemplateRequest{
		Name:     name,
		Category: "fap",
		Filename: name + ".docx",
		Data:     bytes.NewReader(docxBytes(t, wpara(name))),
		Default:  isDefault,
	})
	require.NoError(t, err)
	return tmpl
}

func TestTemplateRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("should store the file under the tenant prefix", func(t *testing.T) {
		f := newTemplateFixture(t)
		tmpl := f.register(t, 1, "Trajeto", false)
		assert.True(t, tmpl.Active)
		assert.True(t, storage.OwnedBy(1, tmpl.FilePath))
		assert.True(t, strings.HasSuffix(tmpl.FilePath, "_Trajeto.docx"))

		doc, err := f.svc.Open(ctx, 1, tmpl.FilePath)
		require.NoError(t, err)
		text, err := doc.Text()
		require.NoError(t, err)
		assert.Equal(t, "Trajeto", text)
	})

	t.Run("should make a default template the tenant fallback", func(t *testing.T) {
		f := newTemplateFixture(t)
		tmpl := f.register(t, 1, "Geral", true)
		require.NotNil(t, f.tenants.tenants[1].DefaultTemplateID)
		assert.Equal(t, tmpl.ID, *f.tenants.tenants[1].DefaultTemplateID)
	})

	t.Run("should reject files that are not docx", func(t *testing.T) {
		f := newTemplateFixture(t)
		_, err := f.svc.Register(ctx, 1, RegisterTemplateRequest{Filename: "modelo.pdf", Data: strings.NewReader("%PDF")})
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = f.svc.Register(ctx, 1, RegisterTemplateRequest{Filename: "modelo.docx", Data: strings.NewReader("not a zip")})
		assert.ErrorIs(t, err, apperrors.ErrTemplateIntegrity)
		assert.Empty(t, f.templates.templates)
	})

	t.Run("should refuse to open another tenant's file", func(t *testing.T) {
		f := newTemplateFixture(t)
		tmpl := f.register(t, 1, "Trajeto", false)
		_, err := f.svc.Open(ctx, 2, tmpl.FilePath)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestTemplateResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("should prefer the reason's template", func(t *testing.T) {
		f := newTemplateFixture(t)
		f.register(t, 1, "Geral", true)
		trajeto := f.register(t, 1, "Trajeto", false)
		f.reasons.reasons[10].DefaultTemplateID = &trajeto.ID

		got, err := f.svc.Resolve(ctx, 1, ptr(int64(10)))
		require.NoError(t, err)
		assert.Equal(t, trajeto.ID, got.ID)
	})

	t.Run("should fall back to the tenant default", func(t *testing.T) {
		f := newTemplateFixture(t)
		geral := f.register(t, 1, "Geral", true)
		trajeto := f.register(t, 1, "Trajeto", false)
		f.reasons.reasons[10].DefaultTemplateID = &trajeto.ID
		f.templates.templates[trajeto.ID].Active = false

		got, err := f.svc.Resolve(ctx, 1, ptr(int64(10)))
		require.NoError(t, err)
		assert.Equal(t, geral.ID, got.ID)

		got, err = f.svc.Resolve(ctx, 1, ptr(int64(11)))
		require.NoError(t, err)
		assert.Equal(t, geral.ID, got.ID)

		got, err = f.svc.Resolve(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, geral.ID, got.ID)
	})

	t.Run("should use the oldest active template without a default", func(t *testing.T) {
		f := newTemplateFixture(t)
		first := f.register(t, 1, "Zeta", false)
		f.register(t, 1, "Alfa", false)

		got, err := f.svc.Resolve(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("should fail without any active template", func(t *testing.T) {
		f := newTemplateFixture(t)
		f.register(t, 2, "De outro", true)

		_, err := f.svc.Resolve(ctx, 1, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("should not resolve another tenant's reason", func(t *testing.T) {
		f := newTemplateFixture(t)
		f.register(t, 1, "Geral", true)

		_, err := f.svc.Resolve(ctx, 1, ptr(int64(20)))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
