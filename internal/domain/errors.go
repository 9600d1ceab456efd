package domain

import (
	"fmt"
)

// PipelineError describes a per-file or per-stage failure. None of the file
// level codes abort a run; they are logged and the file is left out.
type PipelineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Error codes for different failure scenarios
const (
	ErrUnreadableFile        = "UNREADABLE_FILE"
	ErrParse                 = "PARSE_ERROR"
	ErrUnrecognizedDocument  = "UNRECOGNIZED_DOCUMENT"
	ErrUnsupportedReportType = "UNSUPPORTED_REPORT_TYPE"
	ErrConfig                = "CONFIG_ERROR"
	ErrOutput                = "OUTPUT_ERROR"
)

// NewPipelineError creates a new PipelineError.
func NewPipelineError(code, message, path string, cause error) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
		Path:    path,
		Err:     cause,
	}
}

// ValidationError represents a configuration validation error
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
