package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fapdraft-backend/service"
)

// TemplateHandler handles template uploads and listing
type TemplateHandler struct {
	templateService *service.TemplateService
	maxFileSize     int64
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		maxFileSize:     10 * 1024 * 1024, // 10MB
	}
}

// Upload handles POST /api/templates
func (h *TemplateHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "MISSING_FILE", "File is required")
		return
	}
	if fileHeader.Size > h.maxFileSize {
		respondBadRequest(c, "FILE_TOO_LARGE", fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	isDefault, _ := strconv.ParseBool(c.PostForm("default"))
	t, err := h.templateService.Register(c.Request.Context(), tenantID(c), service.RegisterTemplateRequest{
		Name:     c.PostForm("name"),
		Category: c.PostForm("category"),
		Tags:     c.PostForm("tags"),
		Filename: fileHeader.Filename,
		Data:     file,
		Default:  isDefault,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, t)
}

// UploadBase handles POST /api/templates/base
func (h *TemplateHandler) UploadBase(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "MISSING_FILE", "File is required")
		return
	}
	if fileHeader.Size > h.maxFileSize {
		respondBadRequest(c, "FILE_TOO_LARGE", fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	key, err := h.templateService.SetBaseDocument(c.Request.Context(), tenantID(c), fileHeader.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"base_document_path": key})
}

// List handles GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templateService.ListActive(c.Request.Context(), tenantID(c), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, templates)
}
