// Package errors provides structured error types for the bestiary pipeline.
// All errors include a category, code, message, and recoverable flag for
// consistent error handling across stages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryIngest    ErrorCategory = "INGEST"
	ErrCategoryCuration  ErrorCategory = "CURATION"
	ErrCategoryAnalytics ErrorCategory = "ANALYTICS"
	ErrCategoryStore     ErrorCategory = "STORE"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Ingest codes. Both are row-level: the offending row is dropped and
	// the batch continues.
	CodeParseError           = "PARSE_ERROR"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"

	// Curation codes. Run-level: the curation run aborts with no write.
	CodeValidationFailure = "VALIDATION_FAILURE"

	// Store codes
	CodeSnapshotPublishFailed = "SNAPSHOT_PUBLISH_FAILED"
	CodeSnapshotNotFound      = "SNAPSHOT_NOT_FOUND"
	CodeBadFilter             = "BAD_FILTER"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error

	// Recoverable marks row-level errors that the caller skips over,
	// as opposed to run-level errors that abort the current stage.
	Recoverable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:    category,
		Code:        code,
		Message:     message,
		Recoverable: isRecoverable(code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:    category,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: isRecoverable(code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRecoverable checks whether an error (or its chain) is a row-level error
// that the caller may skip.
func IsRecoverable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRecoverable reports whether an error code is row-level.
func isRecoverable(code string) bool {
	switch code {
	case CodeParseError, CodeMissingRequiredField:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewParseError(message string) *PipelineError {
	return New(ErrCategoryIngest, CodeParseError, message)
}

func NewMissingRequiredField(field string) *PipelineError {
	return New(ErrCategoryIngest, CodeMissingRequiredField, "row is missing required field "+field)
}

func NewValidationFailure(message string) *PipelineError {
	return New(ErrCategoryCuration, CodeValidationFailure, message)
}

func NewStoreError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
