package model

import "time"

// MaxLabelLength and MaxTitleLength bound user-supplied names, in characters.
const (
	MaxLabelLength = 255
	MaxTitleLength = 255
)

// RawField is an unvalidated field description as decoded from a request
// body or a definition file. Required and Options are left loosely typed so
// the FieldSpec validator can report coercion failures per field.
type RawField struct {
	Label    string `json:"label" yaml:"label"`
	Type     string `json:"type" yaml:"type"`
	Required any    `json:"required,omitempty" yaml:"required,omitempty"`
	Options  any    `json:"options,omitempty" yaml:"options,omitempty"`
}

// FieldSpec is one validated, normalized field of a form. Options is
// non-empty exactly when Type is choice-like.
type FieldSpec struct {
	Label    string
	Type     FieldType
	Required bool
	Options  []string
	Position int
}

// Raw converts the field back to the raw shape accepted by ValidateField.
func (f FieldSpec) Raw() RawField {
	raw := RawField{Label: f.Label, Type: string(f.Type), Required: f.Required}
	if f.Type.IsChoice() {
		opts := make([]any, len(f.Options))
		for i, o := range f.Options {
			opts[i] = o
		}
		raw.Options = opts
	}
	return raw
}

// FormSchema is the definition of a form. Values returned by BuildSchema and
// by the stores are not shared; use Clone before handing one to another owner.
type FormSchema struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Version     int         `json:"version"`
	Fields      []FieldSpec `json:"fields"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of the schema.
func (s *FormSchema) Clone() *FormSchema {
	c := *s
	c.Fields = make([]FieldSpec, len(s.Fields))
	for i, f := range s.Fields {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		c.Fields[i] = f
	}
	return &c
}

// Field returns the field with the given label.
func (s *FormSchema) Field(label string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RawFields returns the schema's fields in position order as raw input.
func (s *FormSchema) RawFields() []RawField {
	raw := make([]RawField, len(s.Fields))
	for i, f := range s.Fields {
		raw[i] = f.Raw()
	}
	return raw
}

// Submission is one filled-in instance of a form, validated against the
// schema version recorded in FormVersion.
type Submission struct {
	ID          string         `json:"id"`
	FormID      string         `json:"form_id"`
	FormVersion int            `json:"form_version"`
	Values      map[string]any `json:"values"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// DeletePolicy decides what happens to stored submissions when their form is deleted.
type DeletePolicy string

const (
	// DeleteReject refuses to delete a form that has submissions.
	DeleteReject DeletePolicy = "reject"
	// DeleteCascade deletes the form's submissions along with it.
	DeleteCascade DeletePolicy = "cascade"
)

// IsValid checks whether the policy is a known value.
func (p DeletePolicy) IsValid() bool {
	switch p {
	case DeleteReject, DeleteCascade:
		return true
	}
	return false
}
