package model

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// FieldType identifies the kind of value a form field accepts.
type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeTextarea     FieldType = "textarea"
	FieldTypeNumber       FieldType = "number"
	FieldTypeBoolean      FieldType = "boolean"
	FieldTypeDate         FieldType = "date"
	FieldTypeEmail        FieldType = "email"
	FieldTypeSingleChoice FieldType = "single_choice"
	FieldTypeMultiChoice  FieldType = "multi_choice"
)

// dateLayout is the canonical wire format for date values.
const dateLayout = "2006-01-02"

// typeRule holds everything that depends on a field type. A new field type
// needs one entry here and nowhere else.
type typeRule struct {
	choice   bool
	coerce   func(f *FieldSpec, val any) (any, bool)
	mismatch func(f *FieldSpec) string
}

func expect(msg string) func(*FieldSpec) string {
	return func(*FieldSpec) string { return msg }
}

var fieldTypes = map[FieldType]typeRule{
	FieldTypeText:     {coerce: coerceString, mismatch: expect("must be a string")},
	FieldTypeTextarea: {coerce: coerceString, mismatch: expect("must be a string")},
	FieldTypeNumber:   {coerce: coerceNumber, mismatch: expect("must be a number")},
	FieldTypeBoolean:  {coerce: coerceBoolean, mismatch: expect("must be a boolean")},
	FieldTypeDate:     {coerce: coerceDate, mismatch: expect("must be a date in YYYY-MM-DD form")},
	FieldTypeEmail:    {coerce: coerceEmail, mismatch: expect("must be an email address")},
	FieldTypeSingleChoice: {choice: true, coerce: coerceSingleChoice, mismatch: func(f *FieldSpec) string {
		return fmt.Sprintf("must be one of %v", f.Options)
	}},
	FieldTypeMultiChoice: {choice: true, coerce: coerceMultiChoice, mismatch: func(f *FieldSpec) string {
		return fmt.Sprintf("must be a list of values from %v", f.Options)
	}},
}

// String returns the string representation of the field type.
func (t FieldType) String() string {
	return string(t)
}

// IsValid reports whether t is a member of the closed type set.
func (t FieldType) IsValid() bool {
	_, ok := fieldTypes[t]
	return ok
}

// IsChoice reports whether values of this type must come from a fixed options list.
func (t FieldType) IsChoice() bool {
	return fieldTypes[t].choice
}

// FieldTypes returns every known field type in a stable order.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText, FieldTypeTextarea, FieldTypeNumber, FieldTypeBoolean,
		FieldTypeDate, FieldTypeEmail, FieldTypeSingleChoice, FieldTypeMultiChoice,
	}
}

func coerceString(_ *FieldSpec, val any) (any, bool) {
	s, ok := val.(string)
	return s, ok
}

func coerceNumber(_ *FieldSpec, val any) (any, bool) {
	var n float64
	switch v := val.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		n = f
	default:
		return nil, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, false
	}
	return n, true
}

func coerceBoolean(_ *FieldSpec, val any) (any, bool) {
	return parseFlag(val)
}

func coerceDate(_ *FieldSpec, val any) (any, bool) {
	s, ok := val.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d.Format(dateLayout), true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.Format(dateLayout), true
	}
	return nil, false
}

func coerceEmail(_ *FieldSpec, val any) (any, bool) {
	s, ok := val.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return nil, false
	}
	return s, true
}

func coerceSingleChoice(f *FieldSpec, val any) (any, bool) {
	s, ok := val.(string)
	if !ok || !contains(f.Options, s) {
		return nil, false
	}
	return s, true
}

func coerceMultiChoice(f *FieldSpec, val any) (any, bool) {
	var items []string
	switch v := val.(type) {
	case string:
		items = []string{v}
	case []string:
		items = v
	case []any:
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			items = append(items, s)
		}
	default:
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if !contains(f.Options, s) {
			return nil, false
		}
		if !contains(out, s) {
			out = append(out, s)
		}
	}
	return out, true
}

// parseFlag coerces the boolean spellings accepted for "required" flags and
// boolean field values.
func parseFlag(val any) (bool, bool) {
	switch v := val.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case float64:
		return flagFromNumber(v)
	case int:
		return flagFromNumber(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err == nil {
			return flagFromNumber(f)
		}
	}
	return false, false
}

func flagFromNumber(n float64) (bool, bool) {
	switch n {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

func describeTypes() string {
	types := FieldTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return fmt.Sprintf("[%s]", strings.Join(names, ", "))
}
