package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeFileFormat indicates an unsupported or unreadable input file
	ErrorTypeFileFormat ErrorType = "FILE_FORMAT"

	// ErrorTypeParse indicates a malformed date or numeric field
	ErrorTypeParse ErrorType = "PARSE"

	// ErrorTypeEmptyResult indicates that cleaning removed every row
	ErrorTypeEmptyResult ErrorType = "EMPTY_RESULT"

	// ErrorTypeSchemaMismatch indicates the feature table does not match the model schema
	ErrorTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"

	// ErrorTypeArtifactLoad indicates a missing, corrupt or inconsistent model artifact bundle
	ErrorTypeArtifactLoad ErrorType = "ARTIFACT_LOAD"

	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error. Fields names the offending
// columns or features, when there are any.
type AppError struct {
	Type    ErrorType
	Message string
	Fields  []string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewFileFormatError creates a new file format error
func NewFileFormatError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeFileFormat,
		Message: message,
		Err:     err,
	}
}

// NewMissingColumnsError reports mandatory input columns absent from a file header
func NewMissingColumnsError(columns []string) *AppError {
	return &AppError{
		Type:    ErrorTypeFileFormat,
		Message: "missing mandatory columns: " + strings.Join(columns, ", "),
		Fields:  columns,
	}
}

// NewParseError creates a new parse error for a single column value
func NewParseError(column, value string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParse,
		Message: fmt.Sprintf("column %s: cannot parse value %q", column, value),
		Fields:  []string{column},
		Err:     err,
	}
}

// NewLineParseError is NewParseError for a value read from a numbered input line
func NewLineParseError(line int, column, value string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParse,
		Message: fmt.Sprintf("line %d: column %s: cannot parse value %q", line, column, value),
		Fields:  []string{column},
		Err:     err,
	}
}

// NewEmptyResultError creates a new empty result error
func NewEmptyResultError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeEmptyResult,
		Message: message,
	}
}

// NewSchemaMismatchError creates a schema mismatch error. Fields lists the
// missing fields first, followed by the extra ones.
func NewSchemaMismatchError(missing, extra []string) *AppError {
	parts := make([]string, 0, 2)
	if len(missing) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "extra fields: "+strings.Join(extra, ", "))
	}
	fields := make([]string, 0, len(missing)+len(extra))
	fields = append(fields, missing...)
	fields = append(fields, extra...)
	return &AppError{
		Type:    ErrorTypeSchemaMismatch,
		Message: "feature table does not match model schema (" + strings.Join(parts, "; ") + ")",
		Fields:  fields,
	}
}

// NewColumnOrderError reports a feature vector whose columns are not in the fitted order
func NewColumnOrderError(position int, got, want string) *AppError {
	return &AppError{
		Type:    ErrorTypeSchemaMismatch,
		Message: fmt.Sprintf("feature column %d is %q, model expects %q", position, got, want),
		Fields:  []string{got, want},
	}
}

// NewArtifactLoadError creates a new artifact load error
func NewArtifactLoadError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeArtifactLoad,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err's chain holds an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == t
}
