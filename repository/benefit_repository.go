package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/models"
)

// BenefitRepository handles database operations for benefits. Benefits
// carry no tenant column; every query goes through the owning case.
type BenefitRepository struct {
	db *pgxpool.Pool
}

// NewBenefitRepository creates a new benefit repository
func NewBenefitRepository(db *pgxpool.Pool) *BenefitRepository {
	return &BenefitRepository{db: db}
}

const benefitSelect = `
	SELECT b.id, b.case_id, b.benefit_number, b.insured_name, b.insured_nit, b.benefit_type,
		b.accident_date, b.start_date, b.end_date, b.cat_number, b.police_report, b.description,
		b.fap_vigencia_years, b.is_commuting, b.classified_reason_id, b.classification_confidence,
		b.classification_note, b.classification_prompt_version, b.needs_review,
		b.created_at, b.updated_at,
		fr.id, fr.tenant_id, fr.display_name, fr.description, fr.default_template_id, fr.active
	FROM benefits b
	JOIN cases c ON c.id = b.case_id
	LEFT JOIN fap_reasons fr ON fr.id = b.classified_reason_id AND fr.tenant_id = c.tenant_id`

func scanBenefit(row pgx.Row) (*models.Benefit, error) {
	b := &models.Benefit{}
	var (
		reasonID, reasonTenant, reasonTemplateID *int64
		reasonName, reasonDescription            *string
		reasonActive                             *bool
	)
	err := row.Scan(
		&b.ID, &b.CaseID, &b.BenefitNumber, &b.InsuredName, &b.InsuredNIT, &b.BenefitType,
		&b.AccidentDate, &b.StartDate, &b.EndDate, &b.CATNumber, &b.PoliceReport, &b.Description,
		&b.FapVigenciaYears, &b.IsCommuting, &b.ClassifiedReasonID, &b.ClassificationConfidence,
		&b.ClassificationNote, &b.ClassificationPrompt, &b.NeedsReview,
		&b.CreatedAt, &b.UpdatedAt,
		&reasonID, &reasonTenant, &reasonName, &reasonDescription, &reasonTemplateID, &reasonActive,
	)
	if err != nil {
		return nil, err
	}
	if reasonID != nil {
		b.ClassifiedReason = &models.FapReason{
			ID:                *reasonID,
			TenantID:          *reasonTenant,
			DisplayName:       deref(reasonName),
			Description:       deref(reasonDescription),
			DefaultTemplateID: reasonTemplateID,
			Active:            reasonActive != nil && *reasonActive,
		}
	}
	return b, nil
}

// GetByID retrieves a benefit of a tenant's case
func (r *BenefitRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.Benefit, error) {
	row := r.db.QueryRow(ctx, benefitSelect+` WHERE b.id = $1 AND c.tenant_id = $2`, id, tenantID)
	b, err := scanBenefit(row)
	if err != nil {
		return nil, notFound(err, "benefit", id)
	}
	return b, nil
}

// ListByCase returns the benefits of a case ordered by id.
func (r *BenefitRepository) ListByCase(ctx context.Context, tenantID, caseID int64) ([]*models.Benefit, error) {
	rows, err := r.db.Query(ctx, benefitSelect+` WHERE b.case_id = $1 AND c.tenant_id = $2 ORDER BY b.id`, caseID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query benefits: %w", err)
	}
	defer rows.Close()

	var benefits []*models.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benefit: %w", err)
		}
		benefits = append(benefits, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating benefits: %w", err)
	}
	return benefits, nil
}

// CreateBatch inserts all benefits of a case in one transaction.
func (r *BenefitRepository) CreateBatch(ctx context.Context, tenantID, caseID int64, benefits []*models.Benefit) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var owned bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1 AND tenant_id = $2)`,
		caseID, tenantID,
	).Scan(&owned); err != nil {
		return err
	}
	if !owned {
		return apperrors.NotFound("case %d", caseID)
	}

	query := `
		INSERT INTO benefits (
			case_id, benefit_number, insured_name, insured_nit, benefit_type,
			accident_date, start_date, end_date, cat_number, police_report,
			description, fap_vigencia_years, is_commuting
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	for _, b := range benefits {
		b.CaseID = caseID
		err := tx.QueryRow(ctx, query,
			b.CaseID,
			b.BenefitNumber,
			b.InsuredName,
			b.InsuredNIT,
			b.BenefitType,
			b.AccidentDate,
			b.StartDate,
			b.EndDate,
			b.CATNumber,
			b.PoliceReport,
			b.Description,
			b.FapVigenciaYears,
			b.IsCommuting,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert benefit %s: %w", b.BenefitNumber, err)
		}
	}
	return tx.Commit(ctx)
}

// ClassificationUpdate is the outcome of classifying one benefit.
type ClassificationUpdate struct {
	ReasonID      *int64
	Confidence    float64
	Note          string
	PromptVersion string
	NeedsReview   bool
}

// UpdateClassification stores a classification result. The reason must
// belong to the same tenant as the case.
func (r *BenefitRepository) UpdateClassification(ctx context.Context, tenantID, id int64, u ClassificationUpdate) error {
	query := `
		UPDATE benefits b SET
			classified_reason_id = $3,
			classification_confidence = $4,
			classification_note = $5,
			classification_prompt_version = $6,
			needs_review = $7,
			updated_at = NOW()
		FROM cases c
		WHERE b.id = $1 AND c.id = b.case_id AND c.tenant_id = $2
			AND ($3::bigint IS NULL OR EXISTS (
				SELECT 1 FROM fap_reasons fr WHERE fr.id = $3 AND fr.tenant_id = $2))`

	tag, err := r.db.Exec(ctx, query, id, tenantID, u.ReasonID, u.Confidence, u.Note, u.PromptVersion, u.NeedsReview)
	if err != nil {
		return fmt.Errorf("failed to update benefit classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("benefit %d", id)
	}
	return nil
}
