package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BuildSchema validates every raw field and assembles them, in input order,
// into a FormSchema with positions 0..n-1. It does not persist anything.
//
// An empty field list fails with ErrEmptyFieldSet. Otherwise all failures,
// including title and duplicate-label problems, are collected into a single
// *ValidationError with code schema_validation_failed.
func BuildSchema(title, description string, raw []RawField) (*FormSchema, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Code: CodeEmptyFieldSet}
	}

	ve := ValidationError{Code: CodeSchemaValidationFailed}

	title = strings.TrimSpace(title)
	if title == "" {
		ve.add(FieldError{Field: "title", Code: CodeInvalidTitle, Message: "is required"})
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		ve.add(FieldError{
			Field:   "title",
			Code:    CodeInvalidTitle,
			Message: fmt.Sprintf("must be %d characters or fewer", MaxTitleLength),
		})
	}

	fields := make([]FieldSpec, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for i, r := range raw {
		f, fe := validateField(r)
		if fe != nil {
			fe.Index = indexPtr(i)
			ve.add(*fe)
			continue
		}
		if first, dup := seen[f.Label]; dup {
			ve.add(FieldError{
				Index:   indexPtr(i),
				Field:   "label",
				Code:    CodeDuplicateLabel,
				Message: fmt.Sprintf("%q is already used by fields[%d]", f.Label, first),
			})
			continue
		}
		seen[f.Label] = i
		f.Position = i
		fields = append(fields, f)
	}

	if ve.HasErrors() {
		return nil, &ve
	}
	return &FormSchema{
		Title:       title,
		Description: strings.TrimSpace(description),
		Fields:      fields,
	}, nil
}
