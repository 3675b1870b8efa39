// Package llm wraps chat-completion providers behind one interface with
// optional structured JSON output.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaViolation is returned when the model answer is not valid JSON
// for the requested schema.
var ErrSchemaViolation = errors.New("llm response violates schema")

type Type string

const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
)

// Schema is the subset of JSON Schema understood by every provider.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Request is one single-turn generation.
type Request struct {
	System      string
	Prompt      string
	Schema      *Schema
	Temperature float32
	// Operation labels latency metrics, e.g. "classify" or "ask".
	Operation string
}

type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Provider() string
}

// GenerateJSON runs req and decodes the answer into out.
func GenerateJSON(ctx context.Context, c Client, req Request, out any) error {
	text, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	payload := stripFence(text)
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if req.Schema != nil {
		if err := checkRequired(payload, req.Schema); err != nil {
			return err
		}
	}
	return nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func checkRequired(payload string, schema *Schema) error {
	if schema.Type != TypeObject || len(schema.Required) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	for _, name := range schema.Required {
		if _, ok := fields[name]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrSchemaViolation, name)
		}
	}
	return nil
}

// describeSchema renders the schema as instructions for providers without
// native schema support.
func describeSchema(schema *Schema) string {
	data, _ := json.MarshalIndent(schema, "", "  ")
	return "Responda somente com um objeto JSON válido que siga este schema:\n" + string(data)
}
