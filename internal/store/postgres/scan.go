package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/forms/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanForm scans a single row into a model.FormSchema without fields.
// The row must contain columns in the order defined by formColumns.
func scanForm(row scannable) (*model.FormSchema, error) {
	var f model.FormSchema
	var description sql.NullString

	err := row.Scan(
		&f.ID,
		&f.Title,
		&description,
		&f.Version,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Description = description.String
	return &f, nil
}

// scanField scans a row in fieldColumns order and returns the owning form ID
// alongside the field.
func scanField(row scannable) (string, model.FieldSpec, error) {
	var (
		formID  string
		f       model.FieldSpec
		typ     string
		options []byte
	)
	if err := row.Scan(&formID, &f.Position, &f.Label, &typ, &f.Required, &options); err != nil {
		return "", model.FieldSpec{}, err
	}
	f.Type = model.FieldType(typ)
	opts, err := model.DecodeOptions(options)
	if err != nil {
		return "", model.FieldSpec{}, fmt.Errorf("field %s/%d: %w", formID, f.Position, err)
	}
	if f.Type.IsChoice() {
		f.Options = opts
	}
	return formID, f, nil
}

// scanSubmission scans a single row into a model.Submission.
func scanSubmission(row scannable) (*model.Submission, error) {
	var s model.Submission
	var data []byte
	if err := row.Scan(&s.ID, &s.FormID, &s.FormVersion, &data, &s.SubmittedAt); err != nil {
		return nil, err
	}
	s.Values = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.Values); err != nil {
			return nil, fmt.Errorf("submission %s: decode values: %w", s.ID, err)
		}
	}
	return &s, nil
}

// scanSubmissions scans multiple rows into a slice of model.Submission pointers.
func scanSubmissions(rows *sql.Rows) ([]*model.Submission, error) {
	var subs []*model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullJSON returns nil for empty input so the column stores NULL, and the
// document as a string otherwise.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
