package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/models"
)

// GenerationRepository handles database operations for petition generations
type GenerationRepository struct {
	db *pgxpool.Pool
}

// NewGenerationRepository creates a new generation repository
func NewGenerationRepository(db *pgxpool.Pool) *GenerationRepository {
	return &GenerationRepository{db: db}
}

const generationColumns = `
	id, tenant_id, case_id, user_id, template_id, version, status, steps,
	file_path, error_message, created_at, updated_at, completed_at`

func scanGeneration(row pgx.Row) (*models.PetitionGeneration, error) {
	g := &models.PetitionGeneration{}
	err := row.Scan(
		&g.ID,
		&g.TenantID,
		&g.CaseID,
		&g.UserID,
		&g.TemplateID,
		&g.Version,
		&g.Status,
		&g.Steps,
		&g.FilePath,
		&g.ErrorMessage,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if g.Steps == nil {
		g.Steps = make(models.GenerationSteps, 0)
	}
	return g, nil
}

// Create inserts a generation with the next version number of its case.
// The case row is locked so concurrent requests get distinct versions.
func (r *GenerationRepository) Create(ctx context.Context, g *models.PetitionGeneration) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var caseID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM cases WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		g.CaseID, g.TenantID,
	).Scan(&caseID)
	if err != nil {
		return notFound(err, "case", g.CaseID)
	}

	query := `
		INSERT INTO petition_generations (
			tenant_id, case_id, user_id, template_id, version, status, steps
		) VALUES (
			$1, $2, $3, $4,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM petition_generations WHERE case_id = $2),
			$5, $6
		)
		RETURNING id, version, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		g.TenantID,
		g.CaseID,
		g.UserID,
		g.TemplateID,
		g.Status,
		g.Steps,
	).Scan(&g.ID, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return tx.Commit(ctx)
}

// GetByID retrieves a generation of the tenant
func (r *GenerationRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.PetitionGeneration, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+generationColumns+` FROM petition_generations WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	g, err := scanGeneration(row)
	if err != nil {
		return nil, notFound(err, "petition generation", id)
	}
	return g, nil
}

// ListByCase returns the generations of a case, newest version first.
func (r *GenerationRepository) ListByCase(ctx context.Context, tenantID, caseID int64) ([]*models.PetitionGeneration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+generationColumns+` FROM petition_generations
		WHERE case_id = $1 AND tenant_id = $2
		ORDER BY version DESC`,
		caseID, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var generations []*models.PetitionGeneration
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		generations = append(generations, g)
	}
	return generations, rows.Err()
}

// UpdateProgress stores the status, steps and template of a generation.
func (r *GenerationRepository) UpdateProgress(ctx context.Context, tenantID, id int64, status models.GenerationStatus, steps models.GenerationSteps, templateID *int64) error {
	query := `
		UPDATE petition_generations SET
			status = $3,
			steps = $4,
			template_id = COALESCE($5, template_id),
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

	return r.exec(ctx, id, query, id, tenantID, status, steps, templateID)
}

// Complete marks a generation as completed
func (r *GenerationRepository) Complete(ctx context.Context, tenantID, id int64, filePath string, steps models.GenerationSteps) error {
	now := time.Now()
	query := `
		UPDATE petition_generations SET
			status = $3,
			file_path = $4,
			steps = $5,
			error_message = NULL,
			completed_at = $6,
			updated_at = $6
		WHERE id = $1 AND tenant_id = $2`

	return r.exec(ctx, id, query, id, tenantID, models.GenerationCompleted, filePath, steps, now)
}

// Fail marks a generation as failed
func (r *GenerationRepository) Fail(ctx context.Context, tenantID, id int64, errorMessage string, steps models.GenerationSteps) error {
	query := `
		UPDATE petition_generations SET
			status = $3,
			error_message = $4,
			steps = $5,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

	return r.exec(ctx, id, query, id, tenantID, models.GenerationError, errorMessage, steps)
}

func (r *GenerationRepository) exec(ctx context.Context, id int64, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("petition generation %d", id)
	}
	return nil
}
