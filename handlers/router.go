package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fapdraft-backend/auth"
	"fapdraft-backend/metrics"
)

// RouterConfig collects the handlers mounted by NewRouter. Nil handlers
// leave their routes out.
type RouterConfig struct {
	JWT       *auth.JWTManager
	Logger    *zap.Logger
	Petitions *PetitionHandler
	Benefits  *BenefitHandler
	Templates *TemplateHandler
	Knowledge *KnowledgeHandler
}

// NewRouter builds the gin engine
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api", Auth(cfg.JWT, logger))
	if h := cfg.Benefits; h != nil {
		api.POST("/cases/:id/benefits/import", h.Import)
		api.POST("/benefits/:id/classify", h.ClassifyBenefit)
		api.POST("/classify", h.Classify)
	}
	if h := cfg.Petitions; h != nil {
		api.GET("/cases/:id/placeholders", h.Placeholders)
		api.POST("/cases/:id/petitions", h.Generate)
		api.GET("/cases/:id/petitions", h.ListGenerations)
		api.GET("/petitions/:id", h.GetGeneration)
		api.GET("/petitions/:id/download", h.Download)
	}
	if h := cfg.Templates; h != nil {
		api.POST("/templates", h.Upload)
		api.POST("/templates/base", h.UploadBase)
		api.GET("/templates", h.List)
	}
	if h := cfg.Knowledge; h != nil {
		api.POST("/knowledge/documents", h.Upload)
		api.GET("/knowledge/documents", h.List)
		api.DELETE("/knowledge/documents/:id", h.Delete)
		api.POST("/knowledge/ask", h.Ask)
		api.GET("/knowledge/history", h.History)
	}
	return r
}
