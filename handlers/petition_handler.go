package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fapdraft-backend/service"
	"fapdraft-backend/storage"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// PetitionHandler handles HTTP requests for petitions
type PetitionHandler struct {
	petitionService *service.PetitionService
	logger          *zap.Logger
}

// NewPetitionHandler creates a new petition handler
func NewPetitionHandler(petitionService *service.PetitionService, logger *zap.Logger) *PetitionHandler {
	return &PetitionHandler{
		petitionService: petitionService,
		logger:          logger,
	}
}

// Placeholders handles GET /api/cases/:id/placeholders
func (h *PetitionHandler) Placeholders(c *gin.Context) {
	caseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	values, err := h.petitionService.Preview(c.Request.Context(), tenantID(c), caseID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, values)
}

// Generate handles POST /api/cases/:id/petitions
func (h *PetitionHandler) Generate(c *gin.Context) {
	caseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tid := tenantID(c)
	uid := userID(c)

	// Create the record (synchronous, fast)
	gen, err := h.petitionService.StartGeneration(c.Request.Context(), service.StartGenerationRequest{
		TenantID: tid,
		CaseID:   caseID,
		UserID:   &uid,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// Background context so the request ending does not cancel the work
	go func() {
		bgCtx := context.Background()
		if err := h.petitionService.ProcessGeneration(bgCtx, tid, gen.ID); err != nil {
			// Stored on the generation record; clients poll for it
			h.logger.Warn("petition generation failed",
				zap.Int64("tenant_id", tid),
				zap.Int64("generation_id", gen.ID),
				zap.Error(err),
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"generation_id": gen.ID,
			"version":       gen.Version,
			"status":        gen.Status,
			"message":       fmt.Sprintf("Generation created. Poll /api/petitions/%d for updates.", gen.ID),
		},
	})
}

// ListGenerations handles GET /api/cases/:id/petitions
func (h *PetitionHandler) ListGenerations(c *gin.Context) {
	caseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	gens, err := h.petitionService.ListGenerations(c.Request.Context(), tenantID(c), caseID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gens)
}

// GetGeneration handles GET /api/petitions/:id
func (h *PetitionHandler) GetGeneration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	gen, err := h.petitionService.GetGeneration(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gen)
}

// Download handles GET /api/petitions/:id/download
func (h *PetitionHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reader, gen, err := h.petitionService.OpenGeneration(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer reader.Close()

	filename := storage.SanitizeFilename(gen.Filename())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.DataFromReader(http.StatusOK, -1, docxMimeType, reader, nil)
}
