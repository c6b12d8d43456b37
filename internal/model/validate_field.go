package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateField checks a raw field description against the rules for its
// declared type and returns the normalized FieldSpec. On failure the error is
// a *FieldError; rules are applied in order and the first failure wins.
// Position is left at zero; BuildSchema assigns it.
func ValidateField(raw RawField) (FieldSpec, error) {
	f, fe := validateField(raw)
	if fe != nil {
		return FieldSpec{}, fe
	}
	return f, nil
}

func validateField(raw RawField) (FieldSpec, *FieldError) {
	label := strings.TrimSpace(raw.Label)
	if label == "" {
		return FieldSpec{}, &FieldError{Field: "label", Code: CodeMissingLabel, Message: "is required"}
	}
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return FieldSpec{}, &FieldError{
			Field:   "label",
			Code:    CodeMissingLabel,
			Message: fmt.Sprintf("must be %d characters or fewer", MaxLabelLength),
		}
	}

	typ := FieldType(strings.TrimSpace(raw.Type))
	if typ == "" {
		return FieldSpec{}, &FieldError{Field: "type", Code: CodeUnknownType, Message: "is required"}
	}
	if !typ.IsValid() {
		return FieldSpec{}, &FieldError{
			Field:   "type",
			Code:    CodeUnknownType,
			Message: fmt.Sprintf("invalid value %q, must be one of %s", raw.Type, describeTypes()),
		}
	}

	var required bool
	if raw.Required != nil {
		v, ok := parseFlag(raw.Required)
		if !ok {
			return FieldSpec{}, &FieldError{
				Field:   "required",
				Code:    CodeInvalidFlag,
				Message: fmt.Sprintf("must be a boolean, got %v", raw.Required),
			}
		}
		required = v
	}

	f := FieldSpec{Label: label, Type: typ, Required: required}

	// Options on non-choice types are accepted and dropped.
	if !typ.IsChoice() {
		return f, nil
	}
	opts, msg := normalizeOptions(raw.Options)
	if msg != "" {
		return FieldSpec{}, &FieldError{Field: "options", Code: CodeMissingOptions, Message: msg}
	}
	f.Options = opts
	return f, nil
}

// normalizeOptions trims each option and removes duplicates, keeping the
// first occurrence. It returns a non-empty message when the input is unusable.
func normalizeOptions(raw any) ([]string, string) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, "is required for choice fields"
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []any:
		items = v
	default:
		return nil, "must be a list of strings"
	}
	if len(items) == 0 {
		return nil, "is required for choice fields"
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Sprintf("element %d must be a string", i)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Sprintf("element %d must not be empty", i)
		}
		if !contains(out, s) {
			out = append(out, s)
		}
	}
	return out, ""
}
