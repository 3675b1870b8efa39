package models

import (
	"time"
)

// Template is a DOCX body template registered by a tenant.
type Template struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Tags       string    `json:"tags"`
	FilePath   string    `json:"file_path"`
	Active     bool      `json:"active"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
