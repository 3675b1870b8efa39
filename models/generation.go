package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GenerationStatus represents the status of a petition generation
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationError      GenerationStatus = "error"
)

// GenerationStep represents a step in the generation process
type GenerationStep struct {
	Name   string `json:"name"`
	Status string `json:"status"` // pending, processing, completed, error
}

// GenerationSteps represents a list of generation steps
type GenerationSteps []GenerationStep

// Value implements driver.Valuer for JSONB
func (g GenerationSteps) Value() (driver.Value, error) {
	if g == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g)
}

// Scan implements sql.Scanner for JSONB
func (g *GenerationSteps) Scan(value interface{}) error {
	return scanJSON(value, g, func() { *g = GenerationSteps{} })
}

// Set marks the named step with status, appending it when absent.
func (g GenerationSteps) Set(name, status string) GenerationSteps {
	for i := range g {
		if g[i].Name == name {
			g[i].Status = status
			return g
		}
	}
	return append(g, GenerationStep{Name: name, Status: status})
}

// PetitionGeneration is one versioned attempt at producing a case petition.
type PetitionGeneration struct {
	ID           int64            `json:"id"`
	TenantID     int64            `json:"tenant_id"`
	CaseID       int64            `json:"case_id"`
	UserID       *int64           `json:"user_id,omitempty"`
	TemplateID   *int64           `json:"template_id,omitempty"`
	Version      int              `json:"version"`
	Status       GenerationStatus `json:"status"`
	Steps        GenerationSteps  `json:"steps"`
	FilePath     *string          `json:"file_path,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// Filename is the download name of the generated petition.
func (p *PetitionGeneration) Filename() string {
	return fmt.Sprintf("peticao_caso_%d_versao_%d.docx", p.CaseID, p.Version)
}

// Source is a knowledge base passage cited by an answer.
type Source struct {
	Index         int     `json:"index"`
	Source        string  `json:"source"`
	Category      string  `json:"category,omitempty"`
	LawsuitNumber string  `json:"lawsuit_number,omitempty"`
	ChunkIndex    int     `json:"chunk_index"`
	Score         float32 `json:"score"`
	Text          string  `json:"text"`
}

// Sources is a JSONB list of cited passages.
type Sources []Source

// Value implements driver.Valuer for JSONB
func (s Sources) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *Sources) Scan(value interface{}) error {
	return scanJSON(value, s, func() { *s = Sources{} })
}

func scanJSON(value interface{}, dst any, empty func()) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		empty()
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB value %T", value)
	}
	if len(bytes) == 0 {
		empty()
		return nil
	}
	return json.Unmarshal(bytes, dst)
}
