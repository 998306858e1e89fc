package domain

import (
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrInvalidInput       = "INVALID_INPUT"
	ErrEmptyNote          = "EMPTY_NOTE"
	ErrFieldNotFound      = "FIELD_NOT_FOUND"
	ErrAmbiguousNegation  = "AMBIGUOUS_NEGATION_SCOPE"
	ErrTemporalResolution = "TEMPORAL_RESOLUTION_FAILURE"
	ErrProviderTimeout    = "PROVIDER_TIMEOUT"
	ErrProviderFailure    = "PROVIDER_ERROR"
	ErrMalformedResponse  = "MALFORMED_PROVIDER_RESPONSE"
	ErrInconsistentData   = "INCONSISTENT_STRUCTURED_DATA"
	ErrStoreFailure       = "CORRECTION_STORE_ERROR"
	ErrInternal           = "INTERNAL_ERROR"
)

// PipelineError is a standardized error carrying a stable code.
type PipelineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPipelineError creates a new PipelineError with timestamp
func NewPipelineError(code, message, details, runID string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
