package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

// formColumns is the column list used for SELECT statements on the forms table.
const formColumns = `id, title, description, version, created_at, updated_at`

// fieldColumns is the column list used for SELECT statements on the form_fields table.
const fieldColumns = `form_id, position, label, type, required, options`

// submissionColumns is the column list used for SELECT statements on the submissions table.
const submissionColumns = `id, form_id, form_version, data, submitted_at`

// foreignKeyViolation is the PostgreSQL SQLSTATE for a failed REFERENCES check.
const foreignKeyViolation = "23503"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryInsertForm(ctx context.Context, db executor, f *model.FormSchema) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO forms (id, title, description, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID,
		f.Title,
		nullString(f.Description),
		f.Version,
		f.CreatedAt,
		f.UpdatedAt,
	)
	return err
}

func queryInsertFields(ctx context.Context, db executor, formID string, fields []model.FieldSpec) error {
	for _, fs := range fields {
		opts, err := model.EncodeOptions(fs)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO form_fields (form_id, position, label, type, required, options)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			formID,
			fs.Position,
			fs.Label,
			string(fs.Type),
			fs.Required,
			nullJSON(opts),
		)
		if err != nil {
			return fmt.Errorf("insert field %d: %w", fs.Position, err)
		}
	}
	return nil
}

func queryGetForm(ctx context.Context, db executor, id string) (*model.FormSchema, error) {
	row := db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	fields, err := queryGetFields(ctx, db, id)
	if err != nil {
		return nil, err
	}
	f.Fields = fields
	return f, nil
}

func queryGetFields(ctx context.Context, db executor, formID string) ([]model.FieldSpec, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		WHERE form_id = $1
		ORDER BY position ASC`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []model.FieldSpec
	for rows.Next() {
		_, f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func queryListForms(ctx context.Context, db executor) ([]*model.FormSchema, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+formColumns+` FROM forms ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var forms []*model.FormSchema
	byID := make(map[string]*model.FormSchema)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, f)
		byID[f.ID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan forms: %w", err)
	}
	if len(forms) == 0 {
		return forms, nil
	}

	// Fetch all fields in one query (not per-form N+1).
	fieldRows, err := db.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM form_fields
		ORDER BY form_id ASC, position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer fieldRows.Close()

	for fieldRows.Next() {
		formID, fs, err := scanField(fieldRows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		// Forms created after the first query are skipped.
		if f, ok := byID[formID]; ok {
			f.Fields = append(f.Fields, fs)
		}
	}
	if err := fieldRows.Err(); err != nil {
		return nil, fmt.Errorf("scan fields: %w", err)
	}
	return forms, nil
}

// queryLockForm takes a row lock on the form header and returns its version.
// Concurrent replace and delete calls on the same form serialize here.
func queryLockForm(ctx context.Context, db executor, id string) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM forms WHERE id = $1 FOR UPDATE`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	return version, err
}

func queryReplaceForm(ctx context.Context, db executor, id string, f *model.FormSchema) error {
	if _, err := queryLockForm(ctx, db, id); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM form_fields WHERE form_id = $1`, id); err != nil {
		return fmt.Errorf("delete fields: %w", err)
	}
	if err := queryInsertFields(ctx, db, id, f.Fields); err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		UPDATE forms SET
			title = $2,
			description = $3,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING version, created_at, updated_at`,
		id,
		f.Title,
		nullString(f.Description),
	).Scan(&f.Version, &f.CreatedAt, &f.UpdatedAt)
}

func queryDeleteForm(ctx context.Context, db executor, id string, policy model.DeletePolicy) error {
	if _, err := queryLockForm(ctx, db, id); err != nil {
		return err
	}
	if policy != model.DeleteCascade {
		n, err := queryCountSubmissions(ctx, db, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d submission(s) reference %s", store.ErrFormHasSubmissions, n, id)
		}
	}
	// form_fields and submissions cascade via their foreign keys.
	res, err := db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// queryInsertSubmission inserts sub only while its form still has the
// version it was validated against.
func queryInsertSubmission(ctx context.Context, db executor, sub *model.Submission) error {
	data, err := json.Marshal(sub.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}

	// FOR SHARE blocks a concurrent replace or delete until commit, so the
	// version checked here is still current when the row lands.
	var version int
	err = db.QueryRowContext(ctx, `SELECT version FROM forms WHERE id = $1 FOR SHARE`, sub.FormID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	if version != sub.FormVersion {
		return fmt.Errorf("%w: validated against %d, current %d", store.ErrVersionConflict, sub.FormVersion, version)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4::jsonb, $5)`,
		sub.ID,
		sub.FormID,
		sub.FormVersion,
		string(data),
		sub.SubmittedAt,
	)
	if isForeignKeyViolation(err) {
		return store.ErrNotFound
	}
	return err
}

func queryListSubmissions(ctx context.Context, db executor, formID string) ([]*model.Submission, error) {
	if err := queryFormExists(ctx, db, formID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE form_id = $1
		ORDER BY submitted_at ASC, id ASC`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// queryAllSubmissions returns every submission grouped by form ID.
func queryAllSubmissions(ctx context.Context, db executor) (map[string][]*model.Submission, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		ORDER BY submitted_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subs, err := scanSubmissions(rows)
	if err != nil {
		return nil, err
	}
	byForm := make(map[string][]*model.Submission)
	for _, sub := range subs {
		byForm[sub.FormID] = append(byForm[sub.FormID], sub)
	}
	return byForm, nil
}

func queryCountSubmissions(ctx context.Context, db executor, formID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE form_id = $1`, formID).Scan(&n)
	return n, err
}

func queryFormExists(ctx context.Context, db executor, id string) error {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation
}

// utcNow is the clock used for timestamps the store assigns itself.
var utcNow = func() time.Time { return time.Now().UTC() }
