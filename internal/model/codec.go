package model

import (
	"encoding/json"
	"fmt"
)

// fieldWire is the one serialized shape of a FieldSpec, shared by the
// transports and both stores. Options is present only for choice types.
type fieldWire struct {
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Position int       `json:"position"`
}

// MarshalJSON encodes the field in its canonical form.
func (f FieldSpec) MarshalJSON() ([]byte, error) {
	w := fieldWire{Label: f.Label, Type: f.Type, Required: f.Required, Position: f.Position}
	if f.Type.IsChoice() {
		w.Options = f.Options
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a canonical field and re-validates it, so a decoded
// FieldSpec always satisfies the same rules as one produced by ValidateField.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	var w fieldWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Position < 0 {
		return fmt.Errorf("field %q: position must be non-negative, got %d", w.Label, w.Position)
	}
	raw := RawField{Label: w.Label, Type: string(w.Type), Required: w.Required}
	if w.Options != nil {
		raw.Options = w.Options
	}
	spec, fe := validateField(raw)
	if fe != nil {
		return fe
	}
	spec.Position = w.Position
	*f = spec
	return nil
}

// EncodeOptions returns the stored representation of a field's options:
// a JSON array for choice types and nil otherwise.
func EncodeOptions(f FieldSpec) ([]byte, error) {
	if !f.Type.IsChoice() || len(f.Options) == 0 {
		return nil, nil
	}
	return json.Marshal(f.Options)
}

// DecodeOptions reverses EncodeOptions. Empty input yields nil.
func DecodeOptions(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}
