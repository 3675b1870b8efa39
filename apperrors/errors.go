// Package apperrors holds the error categories shared by every layer of the
// backend. Callers match categories with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the referenced entity does not exist for the tenant.
	ErrNotFound = errors.New("not found")
	// ErrValidation: the caller supplied data that breaks a domain rule.
	ErrValidation = errors.New("validation failed")
	// ErrTransient: an external dependency (LLM, embeddings, vector store) failed and the call may be retried.
	ErrTransient = errors.New("transient dependency failure")
	// ErrConversion: a source file could not be turned into text.
	ErrConversion = errors.New("conversion failed")
	// ErrTemplateIntegrity: a template or a placeholder value is malformed.
	ErrTemplateIntegrity = errors.New("template integrity violation")
)

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Transient wraps both the category and the underlying cause.
func Transient(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, fmt.Sprintf(format, args...), cause)
}

// Conversion wraps both the category and the underlying cause. cause may be nil.
func Conversion(cause error, format string, args ...any) error {
	if cause == nil {
		return wrap(ErrConversion, format, args...)
	}
	return fmt.Errorf("%w: %s: %w", ErrConversion, fmt.Sprintf(format, args...), cause)
}

func TemplateIntegrity(format string, args ...any) error {
	return wrap(ErrTemplateIntegrity, format, args...)
}

// IsRetryable reports whether err belongs to the transient category.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Code maps an error to the machine readable code used in API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrTransient):
		return "SERVICE_UNAVAILABLE"
	case errors.Is(err, ErrConversion):
		return "CONVERSION_ERROR"
	case errors.Is(err, ErrTemplateIntegrity):
		return "TEMPLATE_INTEGRITY_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
