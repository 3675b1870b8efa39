package service

import (
	"context"

	"fapdraft-backend/models"
	"fapdraft-backend/repository"
)

// The stores below are implemented by the repository package. Services
// depend on these narrower views so they can be exercised without a database.

type TenantStore interface {
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	SetDefaults(ctx context.Context, id int64, templateID *int64, basePath *string) error
}

type CaseStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*models.Case, error)
}

type BenefitStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*models.Benefit, error)
	ListByCase(ctx context.Context, tenantID, caseID int64) ([]*models.Benefit, error)
	CreateBatch(ctx context.Context, tenantID, caseID int64, benefits []*models.Benefit) error
	UpdateClassification(ctx context.Context, tenantID, id int64, u repository.ClassificationUpdate) error
}

type ReasonStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*models.FapReason, error)
	ListActive(ctx context.Context, tenantID int64) ([]*models.FapReason, error)
}

type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, tenantID, id int64) (*models.Template, error)
	ListActive(ctx context.Context, tenantID int64, category string) ([]*models.Template, error)
	IncrementUsage(ctx context.Context, tenantID, id int64) error
}

type KnowledgeStore interface {
	CreateDocument(ctx context.Context, d *models.KnowledgeDocument) error
	GetDocument(ctx context.Context, tenantID, id int64) (*models.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, tenantID int64, category string) ([]*models.KnowledgeDocument, error)
	SetChunkCount(ctx context.Context, tenantID, id int64, count int) error
	Deactivate(ctx context.Context, tenantID, id int64) error
	AppendHistory(ctx context.Context, e *models.ChatHistoryEntry) error
	ListHistory(ctx context.Context, tenantID, userID int64, limit int) ([]*models.ChatHistoryEntry, error)
}

type GenerationStore interface {
	Create(ctx context.Context, g *models.PetitionGeneration) error
	GetByID(ctx context.Context, tenantID, id int64) (*models.PetitionGeneration, error)
	ListByCase(ctx context.Context, tenantID, caseID int64) ([]*models.PetitionGeneration, error)
	UpdateProgress(ctx context.Context, tenantID, id int64, status models.GenerationStatus, steps models.GenerationSteps, templateID *int64) error
	Complete(ctx context.Context, tenantID, id int64, filePath string, steps models.GenerationSteps) error
	Fail(ctx context.Context, tenantID, id int64, errorMessage string, steps models.GenerationSteps) error
}

var (
	_ TenantStore     = (*repository.TenantRepository)(nil)
	_ CaseStore       = (*repository.CaseRepository)(nil)
	_ BenefitStore    = (*repository.BenefitRepository)(nil)
	_ ReasonStore     = (*repository.ReasonRepository)(nil)
	_ TemplateStore   = (*repository.TemplateRepository)(nil)
	_ KnowledgeStore  = (*repository.KnowledgeRepository)(nil)
	_ GenerationStore = (*repository.GenerationRepository)(nil)
)
