package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/models"
)

// TemplateRepository handles database operations for DOCX templates
type TemplateRepository struct {
	db *pgxpool.Pool
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

var templateColumns = []string{
	"id", "tenant_id", "name", "category", "tags", "file_path",
	"active", "usage_count", "created_at", "updated_at",
}

func templateFields(t *models.Template) []any {
	return []any{
		&t.ID, &t.TenantID, &t.Name, &t.Category, &t.Tags, &t.FilePath,
		&t.Active, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt,
	}
}

// Create inserts a template record
func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	query, args, err := psql.Insert("templates").
		Columns("tenant_id", "name", "category", "tags", "file_path", "active").
		Values(t.TenantID, t.Name, t.Category, t.Tags, t.FilePath, t.Active).
		Suffix("RETURNING id, usage_count, created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&t.ID, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a template of the tenant
func (r *TemplateRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.Template, error) {
	query, args, err := psql.Select(templateColumns...).
		From("templates").
		Where(sq.Eq{"id": id, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	t := &models.Template{}
	if err := r.db.QueryRow(ctx, query, args...).Scan(templateFields(t)...); err != nil {
		return nil, notFound(err, "template", id)
	}
	return t, nil
}

// ListActive lists active templates, optionally restricted to a category.
func (r *TemplateRepository) ListActive(ctx context.Context, tenantID int64, category string) ([]*models.Template, error) {
	builder := psql.Select(templateColumns...).
		From("templates").
		Where(sq.Eq{"tenant_id": tenantID, "active": true}).
		OrderBy("name", "id")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": category})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t := &models.Template{}
		if err := rows.Scan(templateFields(t)...); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// IncrementUsage bumps the usage counter of a template
func (r *TemplateRepository) IncrementUsage(ctx context.Context, tenantID, id int64) error {
	query, args, err := psql.Update("templates").
		Set("usage_count", sq.Expr("usage_count + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("template %d", id)
	}
	return nil
}
