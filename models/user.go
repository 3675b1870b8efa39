package models

import (
	"time"
)

// Tenant is a law firm. Every other entity is owned by exactly one tenant.
type Tenant struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	DefaultTemplateID *int64    `json:"default_template_id,omitempty"`
	BaseDocumentPath  *string   `json:"base_document_path,omitempty"` // cover/header DOCX
	CreatedAt         time.Time `json:"created_at"`
}

// User represents a user entity
type User struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
