package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/docx"
	"fapdraft-backend/models"
	"fapdraft-backend/storage"
)

// TemplateService is the tenant template registry.
type TemplateService struct {
	templates TemplateStore
	reasons   ReasonStore
	tenants   TenantStore
	files     storage.Storage
	log       *zap.Logger
}

// TemplateServiceOption is a functional option for TemplateService
type TemplateServiceOption func(*TemplateService)

func TemplateWithRepository(r TemplateStore) TemplateServiceOption {
	return func(s *TemplateService) { s.templates = r }
}

func TemplateWithReasonRepository(r ReasonStore) TemplateServiceOption {
	return func(s *TemplateService) { s.reasons = r }
}

func TemplateWithTenantRepository(r TenantStore) TemplateServiceOption {
	return func(s *TemplateService) { s.tenants = r }
}

func TemplateWithStorage(st storage.Storage) TemplateServiceOption {
	return func(s *TemplateService) { s.files = st }
}

func TemplateWithLogger(l *zap.Logger) TemplateServiceOption {
	return func(s *TemplateService) { s.log = l }
}

// NewTemplateService creates a new template service
func NewTemplateService(opts ...TemplateServiceOption) *TemplateService {
	s := &TemplateService{log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTemplateRequest is an uploaded template body
type RegisterTemplateRequest struct {
	Name     string
	Category string
	Tags     string
	Filename string
	Data     io.Reader
	// Default makes the template the tenant fallback.
	Default bool
}

// Register validates and stores a DOCX template and returns its record.
func (s *TemplateService) Register(ctx context.Context, tenantID int64, req RegisterTemplateRequest) (*models.Template, error) {
	if s.templates == nil || s.files == nil {
		return nil, errors.New("template repository or storage not set")
	}
	filename := storage.SanitizeFilename(req.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".docx") {
		return nil, apperrors.Validation("template must be a .docx file")
	}
	data, err := io.ReadAll(req.Data)
	if err != nil {
		return nil, err
	}
	if _, err := docx.Read(data); err != nil {
		return nil, apperrors.TemplateIntegrity("%s is not a readable docx: %v", filename, err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	key := storage.TenantKey(tenantID, storage.KindTemplate, filename)
	if err := s.files.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	t := &models.Template{
		TenantID: tenantID,
		Name:     name,
		Category: req.Category,
		Tags:     req.Tags,
		FilePath: key,
		Active:   true,
	}
	if err := s.templates.Create(ctx, t); err != nil {
		_ = s.files.Delete(ctx, key)
		return nil, err
	}
	if req.Default && s.tenants != nil {
		if err := s.tenants.SetDefaults(ctx, tenantID, &t.ID, nil); err != nil {
			return nil, err
		}
	}
	s.log.Info("template registered", zap.Int64("tenant_id", tenantID), zap.Int64("template_id", t.ID), zap.String("name", name))
	return t, nil
}

// SetBaseDocument stores the cover document every petition of the tenant
// starts with.
func (s *TemplateService) SetBaseDocument(ctx context.Context, tenantID int64, filename string, data io.Reader) (string, error) {
	if s.tenants == nil || s.files == nil {
		return "", errors.New("tenant repository or storage not set")
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if _, err := docx.Read(raw); err != nil {
		return "", apperrors.TemplateIntegrity("base document is not a readable docx: %v", err)
	}
	key := storage.TenantKey(tenantID, storage.KindBase, filename)
	if err := s.files.Put(ctx, key, bytes.NewReader(raw)); err != nil {
		return "", err
	}
	if err := s.tenants.SetDefaults(ctx, tenantID, nil, &key); err != nil {
		_ = s.files.Delete(ctx, key)
		return "", err
	}
	return key, nil
}

// Resolve picks the body template for a reason. The order is the reason's
// default template, then the tenant default, then the first active
// template. A nil reasonID skips the first step.
func (s *TemplateService) Resolve(ctx context.Context, tenantID int64, reasonID *int64) (*models.Template, error) {
	if s.templates == nil {
		return nil, errors.New("template repository not set")
	}
	if reasonID != nil {
		if s.reasons == nil {
			return nil, errors.New("reason repository not set")
		}
		reason, err := s.reasons.GetByID(ctx, tenantID, *reasonID)
		if err != nil {
			return nil, err
		}
		if reason.DefaultTemplateID != nil {
			t, err := s.activeTemplate(ctx, tenantID, *reason.DefaultTemplateID)
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
			s.log.Warn("reason template inactive, falling back",
				zap.Int64("tenant_id", tenantID), zap.Int64("reason_id", reason.ID))
		}
	}

	if s.tenants != nil {
		tenant, err := s.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if tenant.DefaultTemplateID != nil {
			t, err := s.activeTemplate(ctx, tenantID, *tenant.DefaultTemplateID)
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}

	active, err := s.templates.ListActive(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, apperrors.NotFound("tenant %d has no active template", tenantID)
	}
	first := active[0]
	for _, t := range active[1:] {
		if t.ID < first.ID {
			first = t
		}
	}
	return first, nil
}

// activeTemplate returns nil when the template is missing or inactive.
func (s *TemplateService) activeTemplate(ctx context.Context, tenantID, id int64) (*models.Template, error) {
	t, err := s.templates.GetByID(ctx, tenantID, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, nil
	}
	return t, nil
}

// Open loads and parses a template file of the tenant.
func (s *TemplateService) Open(ctx context.Context, tenantID int64, key string) (*docx.Document, error) {
	if !storage.OwnedBy(tenantID, key) {
		return nil, apperrors.Validation("file %q does not belong to tenant %d", key, tenantID)
	}
	data, err := storage.ReadAll(ctx, s.files, key)
	if err != nil {
		return nil, err
	}
	doc, err := docx.Read(data)
	if err != nil {
		return nil, apperrors.TemplateIntegrity("%s: %v", key, err)
	}
	return doc, nil
}

// ListActive lists the active templates of the tenant
func (s *TemplateService) ListActive(ctx context.Context, tenantID int64, category string) ([]*models.Template, error) {
	return s.templates.ListActive(ctx, tenantID, category)
}

// IncrementUsage records one more petition generated from a template
func (s *TemplateService) IncrementUsage(ctx context.Context, tenantID, templateID int64) error {
	return s.templates.IncrementUsage(ctx, tenantID, templateID)
}
