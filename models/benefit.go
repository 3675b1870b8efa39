package models

import (
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"fapdraft-backend/apperrors"
)

// Years is a list of "YYYY" strings stored as JSONB.
type Years []string

// Value implements driver.Valuer for JSONB
func (y Years) Value() (driver.Value, error) {
	if y == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(y)
}

// Scan implements sql.Scanner for JSONB
func (y *Years) Scan(value interface{}) error {
	return scanJSON(value, y, func() { *y = Years{} })
}

// Benefit is a social security benefit granted to an insured worker that
// weighs on the client's FAP.
type Benefit struct {
	ID               int64      `json:"id"`
	CaseID           int64      `json:"case_id"`
	BenefitNumber    string     `json:"benefit_number"`
	InsuredName      string     `json:"insured_name"`
	InsuredNIT       string     `json:"insured_nit"`
	BenefitType      string     `json:"benefit_type"`
	AccidentDate     *time.Time `json:"accident_date,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	CATNumber        string     `json:"cat_number"`
	PoliceReport     string     `json:"police_report"`
	Description      string     `json:"description"`
	FapVigenciaYears Years      `json:"fap_vigencia_years"`
	IsCommuting      bool       `json:"is_commuting"`

	ClassifiedReasonID       *int64     `json:"classified_reason_id,omitempty"`
	ClassifiedReason         *FapReason `json:"classified_reason,omitempty"`
	ClassificationConfidence *float64   `json:"classification_confidence,omitempty"`
	ClassificationNote       *string    `json:"classification_note,omitempty"`
	ClassificationPrompt     *string    `json:"classification_prompt_version,omitempty"`
	NeedsReview              bool       `json:"needs_review"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FapReason is one entry of a tenant's contestation reason catalog.
type FapReason struct {
	ID                int64     `json:"id"`
	TenantID          int64     `json:"tenant_id"`
	DisplayName       string    `json:"display_name"`
	Description       string    `json:"description"`
	DefaultTemplateID *int64    `json:"default_template_id,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

// ValidateVigencia checks that every vigência year lies inside the case FAP
// range. Nothing is checked while the case range is missing or partial.
func (b *Benefit) ValidateVigencia(c *Case) error {
	if len(b.FapVigenciaYears) == 0 {
		return nil
	}
	start, end, ok := c.FapYears()
	if !ok {
		return nil
	}
	var outside []string
	for _, y := range b.FapVigenciaYears {
		year, err := strconv.Atoi(strings.TrimSpace(y))
		if err != nil || year < start || year > end {
			outside = append(outside, y)
		}
	}
	if len(outside) > 0 {
		return apperrors.Validation("benefit %s: vigência years %s outside %d-%d",
			b.BenefitNumber, strings.Join(outside, ", "), start, end)
	}
	return nil
}

// VigenciaRange returns the lowest and highest valid vigência year.
func (b *Benefit) VigenciaRange() (start, end int, ok bool) {
	for _, y := range b.FapVigenciaYears {
		year, err := strconv.Atoi(strings.TrimSpace(y))
		if err != nil {
			continue
		}
		if !ok || year < start {
			start = year
		}
		if !ok || year > end {
			end = year
		}
		ok = true
	}
	return start, end, ok
}
