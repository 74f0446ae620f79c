package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError_Error(t *testing.T) {
	// Test error without cause
	err := New(ErrorTypeValidation, "test_op", "test message")
	expected := "[validation] test_op: test message"
	assert.Equal(t, expected, err.Error())

	// Test error with cause
	cause := errors.New("underlying error")
	err = Wrap(cause, ErrorTypeReplay, "read_op", "failed to read buffer")
	assert.Contains(t, err.Error(), "[replay] read_op: failed to read buffer")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestStructuredError_WithContext(t *testing.T) {
	err := New(ErrorTypeSchemaUnavailable, "flatten", "no reflection match")
	err = err.WithContext("resource_id", uint64(42)).WithContext("shader", "vs_main")

	assert.Equal(t, uint64(42), err.Context["resource_id"])
	assert.Equal(t, "vs_main", err.Context["shader"])
}

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, ErrorTypeSchemaUnavailable, NewSchemaUnavailableError("op", "msg").Type)
	assert.Equal(t, ErrorTypeInsufficientData, NewInsufficientDataError("op", "msg").Type)
	assert.Equal(t, ErrorTypeResourceNotFound, NewResourceNotFoundError("op", "msg").Type)
	assert.Equal(t, ErrorTypeAmbiguousResource, NewAmbiguousResourceError("op", "msg").Type)
	assert.Equal(t, ErrorTypeReplay, NewReplayError("op", "msg").Type)
	assert.Equal(t, ErrorTypeValidation, NewValidationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, NewConfigurationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeExport, NewExportError("op", "msg").Type)
}

func TestErrorWrapping(t *testing.T) {
	originalErr := errors.New("original error")

	wrapped := WrapValidationError(originalErr, "validate", "validation failed")
	assert.Equal(t, ErrorTypeValidation, wrapped.Type)
	assert.Equal(t, "validate", wrapped.Operation)
	assert.Equal(t, "validation failed", wrapped.Message)
	assert.Equal(t, originalErr, wrapped.Unwrap())

	// Test that Wrap returns nil for nil error
	assert.Nil(t, Wrap(nil, ErrorTypeReplay, "op", "msg"))
}

func TestPredicates(t *testing.T) {
	schemaErr := NewSchemaUnavailableError("lookup", "no shader references this resource")
	dataErr := NewInsufficientDataError("decode", "buffer shorter than one stride")

	assert.True(t, IsSchemaUnavailable(schemaErr))
	assert.False(t, IsSchemaUnavailable(dataErr))
	assert.True(t, IsInsufficientData(dataErr))
	assert.False(t, IsInsufficientData(schemaErr))

	// Predicates see through fmt wrapping
	wrapped := fmt.Errorf("workflow failed: %w", schemaErr)
	assert.True(t, IsSchemaUnavailable(wrapped))

	// Plain errors match nothing
	assert.False(t, IsSchemaUnavailable(errors.New("plain")))
	assert.False(t, IsResourceNotFound(nil))

	assert.True(t, IsResourceNotFound(NewResourceNotFoundError("resolve", "no match")))
	assert.True(t, IsAmbiguousResource(NewAmbiguousResourceError("resolve", "2 matches")))
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "schema_unavailable", string(ErrorTypeSchemaUnavailable))
	assert.Equal(t, "insufficient_data", string(ErrorTypeInsufficientData))
	assert.Equal(t, "resource_not_found", string(ErrorTypeResourceNotFound))
	assert.Equal(t, "ambiguous_resource", string(ErrorTypeAmbiguousResource))
	assert.Equal(t, "replay", string(ErrorTypeReplay))
	assert.Equal(t, "configuration", string(ErrorTypeConfiguration))
}

func TestStackTraceCapture(t *testing.T) {
	err := New(ErrorTypeValidation, "test", "message")
	// Should have captured some stack frames
	assert.Greater(t, len(err.Stack), 0)
}
