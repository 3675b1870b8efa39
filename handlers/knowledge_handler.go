package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fapdraft-backend/service"
)

// KnowledgeHandler handles the knowledge base endpoints
type KnowledgeHandler struct {
	knowledgeService *service.KnowledgeService
	maxFileSize      int64
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(knowledgeService *service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledgeService: knowledgeService,
		maxFileSize:      50 * 1024 * 1024, // 50MB
	}
}

// Upload handles POST /api/knowledge/documents
func (h *KnowledgeHandler) Upload(c *gin.Context) {
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

	result, err := h.knowledgeService.UploadDocument(c.Request.Context(), tenantID(c), service.UploadDocumentRequest{
		Filename:      fileHeader.Filename,
		Title:         c.PostForm("title"),
		Category:      c.PostForm("category"),
		Description:   c.PostForm("description"),
		Tags:          c.PostForm("tags"),
		LawsuitNumber: c.PostForm("lawsuit_number"),
		Data:          file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{
		"document": result.Document,
		"chunks":   len(result.Ingest.IDs),
		"no_op":    result.Ingest.NoOp,
	})
}

// List handles GET /api/knowledge/documents
func (h *KnowledgeHandler) List(c *gin.Context) {
	docs, err := h.knowledgeService.ListDocuments(c.Request.Context(), tenantID(c), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, docs)
}

// Delete handles DELETE /api/knowledge/documents/:id
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.knowledgeService.DeactivateDocument(c.Request.Context(), tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id, "active": false})
}

// AskRequest represents the request body of a knowledge base question
type AskRequest struct {
	Question string         `json:"question" binding:"required"`
	History  []service.Turn `json:"history"`
	K        int            `json:"k"`
}

// Ask handles POST /api/knowledge/ask
func (h *KnowledgeHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if req.K < 0 || req.K > 50 {
		respondBadRequest(c, "INVALID_REQUEST", "k must be at most 50")
		return
	}
	result, err := h.knowledgeService.Ask(c.Request.Context(), service.AskRequest{
		TenantID: tenantID(c),
		UserID:   userID(c),
		Question: req.Question,
		History:  req.History,
		K:        req.K,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// History handles GET /api/knowledge/history
func (h *KnowledgeHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.knowledgeService.History(c.Request.Context(), tenantID(c), userID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}
