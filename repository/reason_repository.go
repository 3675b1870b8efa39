package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/models"
)

// ReasonRepository handles the tenant FAP reason catalog
type ReasonRepository struct {
	db *pgxpool.Pool
}

// NewReasonRepository creates a new reason repository
func NewReasonRepository(db *pgxpool.Pool) *ReasonRepository {
	return &ReasonRepository{db: db}
}

// Create inserts a catalog entry
func (r *ReasonRepository) Create(ctx context.Context, reason *models.FapReason) error {
	query := `
		INSERT INTO fap_reasons (tenant_id, display_name, description, default_template_id, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		reason.TenantID,
		reason.DisplayName,
		reason.Description,
		reason.DefaultTemplateID,
		reason.Active,
	).Scan(&reason.ID, &reason.CreatedAt)
}

// GetByID retrieves a catalog entry of the tenant
func (r *ReasonRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.FapReason, error) {
	reason := &models.FapReason{}
	query := `
		SELECT id, tenant_id, display_name, description, default_template_id, active, created_at
		FROM fap_reasons
		WHERE id = $1 AND tenant_id = $2`

	err := r.db.QueryRow(ctx, query, id, tenantID).Scan(
		&reason.ID,
		&reason.TenantID,
		&reason.DisplayName,
		&reason.Description,
		&reason.DefaultTemplateID,
		&reason.Active,
		&reason.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "fap reason", id)
	}
	return reason, nil
}

// ListActive returns the active catalog ordered by id.
func (r *ReasonRepository) ListActive(ctx context.Context, tenantID int64) ([]*models.FapReason, error) {
	query := `
		SELECT id, tenant_id, display_name, description, default_template_id, active, created_at
		FROM fap_reasons
		WHERE tenant_id = $1 AND active = true
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fap reasons: %w", err)
	}
	defer rows.Close()

	var reasons []*models.FapReason
	for rows.Next() {
		reason := &models.FapReason{}
		if err := rows.Scan(
			&reason.ID,
			&reason.TenantID,
			&reason.DisplayName,
			&reason.Description,
			&reason.DefaultTemplateID,
			&reason.Active,
			&reason.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fap reason: %w", err)
		}
		reasons = append(reasons, reason)
	}
	return reasons, rows.Err()
}
