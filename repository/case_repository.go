package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/models"
)

// CaseRepository handles database operations for cases
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

// GetByID loads a case with its client, court and legacy FAP reason.
func (r *CaseRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.Case, error) {
	c := &models.Case{Client: &models.Client{}}
	var (
		courtID, courtTenant          *int64
		courtName, courtCity, courtUF *string
		reasonID, reasonTenant        *int64
		reasonName, reasonDescription *string
		reasonTemplateID              *int64
		reasonActive                  *bool
	)
	query := `
		SELECT c.id, c.tenant_id, c.client_id, c.court_id, c.title, c.type, c.status,
			c.value, c.filing_date, c.fap_start_year, c.fap_end_year,
			c.facts, c.thesis, c.prescription, c.fap_reason_id,
			c.created_at, c.updated_at,
			cl.id, cl.tenant_id, cl.name, cl.cnpj, cl.street, cl.number, cl.complement,
			cl.neighborhood, cl.city, cl.state, cl.zip_code,
			ct.id, ct.tenant_id, ct.name, ct.city, ct.state,
			fr.id, fr.tenant_id, fr.display_name, fr.description, fr.default_template_id, fr.active
		FROM cases c
		JOIN clients cl ON cl.id = c.client_id AND cl.tenant_id = c.tenant_id
		LEFT JOIN courts ct ON ct.id = c.court_id AND ct.tenant_id = c.tenant_id
		LEFT JOIN fap_reasons fr ON fr.id = c.fap_reason_id AND fr.tenant_id = c.tenant_id
		WHERE c.id = $1 AND c.tenant_id = $2`

	err := r.db.QueryRow(ctx, query, id, tenantID).Scan(
		&c.ID, &c.TenantID, &c.ClientID, &c.CourtID, &c.Title, &c.Type, &c.Status,
		&c.Value, &c.FilingDate, &c.FapStartYear, &c.FapEndYear,
		&c.Facts, &c.Thesis, &c.Prescription, &c.FapReasonID,
		&c.CreatedAt, &c.UpdatedAt,
		&c.Client.ID, &c.Client.TenantID, &c.Client.Name, &c.Client.CNPJ, &c.Client.Street,
		&c.Client.Number, &c.Client.Complement, &c.Client.Neighborhood, &c.Client.City,
		&c.Client.State, &c.Client.ZipCode,
		&courtID, &courtTenant, &courtName, &courtCity, &courtUF,
		&reasonID, &reasonTenant, &reasonName, &reasonDescription, &reasonTemplateID, &reasonActive,
	)
	if err != nil {
		return nil, notFound(err, "case", id)
	}

	if courtID != nil {
		c.Court = &models.Court{
			ID:       *courtID,
			TenantID: *courtTenant,
			Name:     deref(courtName),
			City:     deref(courtCity),
			State:    deref(courtUF),
		}
	}
	if reasonID != nil {
		c.FapReason = &models.FapReason{
			ID:                *reasonID,
			TenantID:          *reasonTenant,
			DisplayName:       deref(reasonName),
			Description:       deref(reasonDescription),
			DefaultTemplateID: reasonTemplateID,
			Active:            reasonActive != nil && *reasonActive,
		}
	}
	return c, nil
}

// Exists reports whether the case belongs to the tenant.
func (r *CaseRepository) Exists(ctx context.Context, tenantID, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1 AND tenant_id = $2)`,
		id, tenantID,
	).Scan(&exists)
	return exists, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
