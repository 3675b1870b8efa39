package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fapdraft-backend/models"
	"fapdraft-backend/service"
)

// BenefitHandler handles benefit import and reason classification
type BenefitHandler struct {
	benefitService    *service.BenefitService
	classifierService *service.ClassifierService
}

// NewBenefitHandler creates a new benefit handler
func NewBenefitHandler(benefitService *service.BenefitService, classifierService *service.ClassifierService) *BenefitHandler {
	return &BenefitHandler{
		benefitService:    benefitService,
		classifierService: classifierService,
	}
}

// BenefitInput is one benefit of an import. Dates accept yyyy-mm-dd or
// dd/mm/yyyy.
type BenefitInput struct {
	BenefitNumber    string   `json:"benefit_number" binding:"required"`
	InsuredName      string   `json:"insured_name"`
	InsuredNIT       string   `json:"insured_nit"`
	BenefitType      string   `json:"benefit_type"`
	AccidentDate     string   `json:"accident_date"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	CATNumber        string   `json:"cat_number"`
	PoliceReport     string   `json:"police_report"`
	Description      string   `json:"description"`
	FapVigenciaYears []string `json:"fap_vigencia_years"`
	IsCommuting      bool     `json:"is_commuting"`
}

// ImportBenefitsRequest represents the request body for a bulk import
type ImportBenefitsRequest struct {
	AutoClassify bool           `json:"auto_classify"`
	Benefits     []BenefitInput `json:"benefits" binding:"required,dive"`
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

func parseDate(field, value string) (*time.Time, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, ""
		}
	}
	return nil, "Invalid date in " + field + ": " + value
}

func (in BenefitInput) toModel() (*models.Benefit, string) {
	b := &models.Benefit{
		BenefitNumber:    strings.TrimSpace(in.BenefitNumber),
		InsuredName:      strings.TrimSpace(in.InsuredName),
		InsuredNIT:       strings.TrimSpace(in.InsuredNIT),
		BenefitType:      strings.TrimSpace(in.BenefitType),
		CATNumber:        in.CATNumber,
		PoliceReport:     in.PoliceReport,
		Description:      in.Description,
		FapVigenciaYears: models.Years(in.FapVigenciaYears),
		IsCommuting:      in.IsCommuting,
	}
	var msg string
	if b.AccidentDate, msg = parseDate("accident_date", in.AccidentDate); msg != "" {
		return nil, msg
	}
	if b.StartDate, msg = parseDate("start_date", in.StartDate); msg != "" {
		return nil, msg
	}
	if b.EndDate, msg = parseDate("end_date", in.EndDate); msg != "" {
		return nil, msg
	}
	return b, ""
}

// Import handles POST /api/cases/:id/benefits/import
func (h *BenefitHandler) Import(c *gin.Context) {
	caseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ImportBenefitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	benefits := make([]*models.Benefit, 0, len(req.Benefits))
	for _, in := range req.Benefits {
		b, msg := in.toModel()
		if msg != "" {
			respondBadRequest(c, "INVALID_DATE", msg)
			return
		}
		benefits = append(benefits, b)
	}

	result, err := h.benefitService.Import(c.Request.Context(), service.ImportBenefitsRequest{
		TenantID:     tenantID(c),
		CaseID:       caseID,
		Benefits:     benefits,
		AutoClassify: req.AutoClassify,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, result)
}

// ClassifyBenefit handles POST /api/benefits/:id/classify
func (h *BenefitHandler) ClassifyBenefit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.classifierService.ClassifyBenefit(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// ClassifyRequest is a free text description to classify
type ClassifyRequest struct {
	Description string `json:"description"`
}

// Classify handles POST /api/classify
func (h *BenefitHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	result, err := h.classifierService.Classify(c.Request.Context(), tenantID(c), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}
