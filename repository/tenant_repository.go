package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/models"
)

// TenantRepository handles database operations for tenants and their users
type TenantRepository struct {
	db *pgxpool.Pool
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create creates a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (name, default_template_id, base_document_path)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		tenant.Name,
		tenant.DefaultTemplateID,
		tenant.BaseDocumentPath,
	).Scan(&tenant.ID, &tenant.CreatedAt)
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, name, default_template_id, base_document_path, created_at
		FROM tenants
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.DefaultTemplateID,
		&tenant.BaseDocumentPath,
		&tenant.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "tenant", id)
	}
	return tenant, nil
}

// SetDefaults stores the tenant's fallback template and base document.
func (r *TenantRepository) SetDefaults(ctx context.Context, id int64, templateID *int64, basePath *string) error {
	query := `
		UPDATE tenants SET
			default_template_id = COALESCE($2, default_template_id),
			base_document_path = COALESCE($3, base_document_path)
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, templateID, basePath)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("tenant %d", id)
	}
	return nil
}

// CreateUser creates a new user inside a tenant
func (r *TenantRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (tenant_id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		user.TenantID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}
