package model

import (
	"errors"
	"sort"
	"strings"
)

// ErrNilSchema is returned when a submission is validated without a schema.
var ErrNilSchema = errors.New("validate submission: nil schema")

// SubmissionOptions tunes ValidateSubmission.
type SubmissionOptions struct {
	// Strict rejects payload keys that do not match any field label.
	Strict bool
}

// ValidateSubmission checks payload against schema, field by field in
// position order, and returns a Submission whose values are coerced to each
// field's type and restricted to the schema's labels. All failures are
// collected into one *ValidationError with code submission_validation_failed.
//
// The returned submission has FormID and FormVersion set; ID and SubmittedAt
// are assigned when it is persisted.
func ValidateSubmission(schema *FormSchema, payload map[string]any, opts SubmissionOptions) (*Submission, error) {
	if schema == nil {
		return nil, ErrNilSchema
	}
	ve := ValidationError{Code: CodeSubmissionValidationFailed}
	values := make(map[string]any, len(schema.Fields))

	for i := range schema.Fields {
		f := &schema.Fields[i]
		val, present := payload[f.Label]
		if !present || isEmptyValue(val) {
			if f.Required {
				ve.add(FieldError{
					Field:   f.Label,
					Code:    CodeRequiredFieldMissing,
					Message: "is required",
				})
			}
			continue
		}

		coerced, ok := fieldTypes[f.Type].coerce(f, val)
		if !ok {
			ve.add(FieldError{
				Field:    f.Label,
				Code:     CodeTypeMismatch,
				Expected: f.Type,
				Message:  fieldTypes[f.Type].mismatch(f),
			})
			continue
		}
		values[f.Label] = coerced
	}

	if opts.Strict {
		var unknown []string
		for key := range payload {
			if _, ok := schema.Field(key); !ok {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		for _, key := range unknown {
			ve.add(FieldError{Field: key, Code: CodeUnknownField, Message: "unknown field"})
		}
	}

	if ve.HasErrors() {
		return nil, &ve
	}
	return &Submission{
		FormID:      schema.ID,
		FormVersion: schema.Version,
		Values:      values,
	}, nil
}

func isEmptyValue(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}
