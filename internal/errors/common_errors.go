package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfiguration marks bad configuration (invalid ratios,
	// unknown method names). Fatal, surfaced immediately.
	ErrTypeConfiguration ErrorType = "CONFIGURATION"
	// ErrTypeDataQuality marks structurally unusable input (empty series,
	// missing timestamp column). Fatal.
	ErrTypeDataQuality ErrorType = "DATA_QUALITY"
	// ErrTypePartialData marks recoverable row-level issues (malformed
	// single row, missing optional column). Recovered locally and logged
	// with a count, never fatal.
	ErrTypePartialData ErrorType = "PARTIAL_DATA"
	// ErrTypeModelAdapter marks an external fit/predict failure. Recorded
	// per unit without aborting sibling units in a sweep.
	ErrTypeModelAdapter ErrorType = "MODEL_ADAPTER"
	// ErrTypeParsing marks loader-boundary parse failures.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeStorage marks exporter-boundary write failures.
	ErrTypeStorage ErrorType = "STORAGE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsFatal reports whether the error must abort the whole run rather than
// a single unit or row.
func (e *AppError) IsFatal() bool {
	return e.Type == ErrTypeConfiguration || e.Type == ErrTypeDataQuality
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfiguration, message, cause)
}

// NewDataQualityError creates a data quality error
func NewDataQualityError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDataQuality, message, cause)
}

// NewPartialDataWarning creates a recoverable partial-data error
func NewPartialDataWarning(message string) *AppError {
	return NewAppError(ErrTypePartialData, message, nil)
}

// NewModelAdapterError creates an adapter fit/predict error for one unit
func NewModelAdapterError(modelID, operation string, cause error) *AppError {
	err := NewAppError(ErrTypeModelAdapter, fmt.Sprintf("model %s %s failed", modelID, operation), cause)
	return err.WithContext("model_id", modelID).WithContext("operation", operation)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// TypeOf returns the ErrorType of err if it is (or wraps) an AppError,
// otherwise an empty string.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err is (or wraps) an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
