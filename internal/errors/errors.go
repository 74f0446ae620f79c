package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// Error types for the failure categories the engine distinguishes
type ErrorType string

const (
	// ErrorTypeSchemaUnavailable means no reflection layout exists for a
	// resource. Fatal to schema-aware decoding; callers fall back to
	// byte-level handling or surface the failure.
	ErrorTypeSchemaUnavailable ErrorType = "schema_unavailable"
	// ErrorTypeInsufficientData means a buffer is shorter than one full
	// record instance. Recoverable: the instance/point pair is skipped.
	ErrorTypeInsufficientData ErrorType = "insufficient_data"
	// ErrorTypeResourceNotFound means no resource matched a name lookup.
	ErrorTypeResourceNotFound ErrorType = "resource_not_found"
	// ErrorTypeAmbiguousResource means a substring lookup matched more
	// than one resource.
	ErrorTypeAmbiguousResource ErrorType = "ambiguous_resource"
	ErrorTypeReplay            ErrorType = "replay"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeConfiguration     ErrorType = "configuration"
	ErrorTypeExport            ErrorType = "export"
	ErrorTypeTransport         ErrorType = "transport"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(2, pcs[:]) // Skip this function and caller
	return pcs[:n]
}

// As finds the first error in err's chain that matches target. It is a
// passthrough to the standard library so callers need only this package.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// typeOf extracts a StructuredError's type from anywhere in a chain.
func typeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

// IsSchemaUnavailable reports whether err carries ErrorTypeSchemaUnavailable.
func IsSchemaUnavailable(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeSchemaUnavailable
}

// IsInsufficientData reports whether err carries ErrorTypeInsufficientData.
func IsInsufficientData(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeInsufficientData
}

// IsResourceNotFound reports whether err carries ErrorTypeResourceNotFound.
func IsResourceNotFound(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeResourceNotFound
}

// IsAmbiguousResource reports whether err carries ErrorTypeAmbiguousResource.
func IsAmbiguousResource(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeAmbiguousResource
}

// Common error constructors for frequent use cases

// NewSchemaUnavailableError creates a schema-unavailable error
func NewSchemaUnavailableError(operation, message string) *StructuredError {
	return New(ErrorTypeSchemaUnavailable, operation, message)
}

// NewInsufficientDataError creates an insufficient-data error
func NewInsufficientDataError(operation, message string) *StructuredError {
	return New(ErrorTypeInsufficientData, operation, message)
}

// NewResourceNotFoundError creates a resource-not-found error
func NewResourceNotFoundError(operation, message string) *StructuredError {
	return New(ErrorTypeResourceNotFound, operation, message)
}

// NewAmbiguousResourceError creates an ambiguous-resource error
func NewAmbiguousResourceError(operation, message string) *StructuredError {
	return New(ErrorTypeAmbiguousResource, operation, message)
}

// NewReplayError creates a replay error
func NewReplayError(operation, message string) *StructuredError {
	return New(ErrorTypeReplay, operation, message)
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// NewExportError creates an export error
func NewExportError(operation, message string) *StructuredError {
	return New(ErrorTypeExport, operation, message)
}

// WrapReplayError wraps an error as a replay error
func WrapReplayError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeReplay, operation, message)
}

// WrapValidationError wraps an error as a validation error
func WrapValidationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeValidation, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}

// WrapExportError wraps an error as an export error
func WrapExportError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeExport, operation, message)
}

// WrapTransportError wraps an error as a transport error
func WrapTransportError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeTransport, operation, message)
}
