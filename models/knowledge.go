package models

import (
	"time"
)

// KnowledgeDocument is a source file ingested into a tenant knowledge base.
type KnowledgeDocument struct {
	ID            int64     `json:"id"`
	TenantID      int64     `json:"tenant_id"`
	Title         string    `json:"title"`
	Filename      string    `json:"filename"`
	FilePath      string    `json:"file_path"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Tags          string    `json:"tags"`
	LawsuitNumber string    `json:"lawsuit_number"`
	ChunkCount    int       `json:"chunk_count"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatHistoryEntry is one answered knowledge base question.
type ChatHistoryEntry struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenant_id"`
	UserID         int64     `json:"user_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Sources        Sources   `json:"sources"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
