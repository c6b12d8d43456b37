package model

import (
	"fmt"
	"strings"
)

// Code identifies a kind of validation failure. Codes are part of the wire
// format and are rendered verbatim by the transports.
type Code string

// Field-level codes.
const (
	CodeInvalidTitle         Code = "invalid_title"
	CodeMissingLabel         Code = "missing_label"
	CodeDuplicateLabel       Code = "duplicate_label"
	CodeUnknownType          Code = "unknown_type"
	CodeInvalidFlag          Code = "invalid_flag"
	CodeMissingOptions       Code = "missing_options"
	CodeRequiredFieldMissing Code = "required_field_missing"
	CodeTypeMismatch         Code = "type_mismatch"
	CodeUnknownField         Code = "unknown_field"
)

// Aggregate codes.
const (
	CodeEmptyFieldSet              Code = "empty_field_set"
	CodeSchemaValidationFailed     Code = "schema_validation_failed"
	CodeSubmissionValidationFailed Code = "submission_validation_failed"
)

// FieldError represents a single validation failure. Index is the position
// of the offending raw field for schema errors and is nil otherwise.
type FieldError struct {
	Index    *int      `json:"index,omitempty"`
	Field    string    `json:"field"`
	Code     Code      `json:"code"`
	Expected FieldType `json:"expected,omitempty"`
	Message  string    `json:"message"`
}

// Error formats the failure as "field: message".
func (e *FieldError) Error() string {
	if e.Index != nil {
		return fmt.Sprintf("fields[%d] %s: %s", *e.Index, e.Field, e.Message)
	}
	return e.Field + ": " + e.Message
}

// Is matches sentinels that carry only a code, e.g. errors.Is(err, ErrMissingLabel).
func (e *FieldError) Is(target error) bool {
	t, ok := target.(*FieldError)
	return ok && t.Field == "" && t.Code == e.Code
}

// ValidationError aggregates every failure found in one schema or submission,
// so callers can report them all in a single round trip.
type ValidationError struct {
	Code   Code         `json:"code"`
	Errors []FieldError `json:"details,omitempty"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return strings.ReplaceAll(string(e.Code), "_", " ")
	}
	parts := make([]string, len(e.Errors))
	for i := range e.Errors {
		parts[i] = e.Errors[i].Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Has reports whether any contained field error carries code.
func (e *ValidationError) Has(code Code) bool {
	for _, fe := range e.Errors {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// Is matches aggregate sentinels by code, and field sentinels when any
// contained field error matches.
func (e *ValidationError) Is(target error) bool {
	switch t := target.(type) {
	case *ValidationError:
		return t.Code == e.Code && len(t.Errors) == 0
	case *FieldError:
		return t.Field == "" && e.Has(t.Code)
	}
	return false
}

func (e *ValidationError) add(fe FieldError) {
	e.Errors = append(e.Errors, fe)
}

// Sentinels for errors.Is.
var (
	ErrEmptyFieldSet              = &ValidationError{Code: CodeEmptyFieldSet}
	ErrSchemaValidationFailed     = &ValidationError{Code: CodeSchemaValidationFailed}
	ErrSubmissionValidationFailed = &ValidationError{Code: CodeSubmissionValidationFailed}

	ErrInvalidTitle         = &FieldError{Code: CodeInvalidTitle}
	ErrMissingLabel         = &FieldError{Code: CodeMissingLabel}
	ErrDuplicateLabel       = &FieldError{Code: CodeDuplicateLabel}
	ErrUnknownType          = &FieldError{Code: CodeUnknownType}
	ErrInvalidFlag          = &FieldError{Code: CodeInvalidFlag}
	ErrMissingOptions       = &FieldError{Code: CodeMissingOptions}
	ErrRequiredFieldMissing = &FieldError{Code: CodeRequiredFieldMissing}
	ErrTypeMismatch         = &FieldError{Code: CodeTypeMismatch}
	ErrUnknownField         = &FieldError{Code: CodeUnknownField}
)

func indexPtr(i int) *int {
	return &i
}
