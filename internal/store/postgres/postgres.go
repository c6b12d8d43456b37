// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/forms/internal/idgen"
	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// inTransaction begins a database transaction, calls fn, and commits on
// success or rolls back on error.
func (s *PostgresStore) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateForm inserts the header and every field in one transaction.
func (s *PostgresStore) CreateForm(ctx context.Context, form *model.FormSchema) (string, error) {
	if form.ID == "" {
		id, err := idgen.NewFormID()
		if err != nil {
			return "", store.Wrap("create form", err)
		}
		form.ID = id
	}
	now := utcNow()
	form.Version = 1
	form.CreatedAt = now
	form.UpdatedAt = now

	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		if err := queryInsertForm(ctx, tx, form); err != nil {
			return fmt.Errorf("insert form: %w", err)
		}
		return queryInsertFields(ctx, tx, form.ID, form.Fields)
	})
	if err != nil {
		return "", store.Wrap("create form", err)
	}
	return form.ID, nil
}

// GetForm reads the header and fields under one snapshot.
func (s *PostgresStore) GetForm(ctx context.Context, id string) (*model.FormSchema, error) {
	var f *model.FormSchema
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		var err error
		f, err = queryGetForm(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, store.Wrap("get form", err)
	}
	return f, nil
}

// ListForms returns every form in creation order.
func (s *PostgresStore) ListForms(ctx context.Context) ([]*model.FormSchema, error) {
	var forms []*model.FormSchema
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		var err error
		forms, err = queryListForms(ctx, tx)
		return err
	})
	if err != nil {
		return nil, store.Wrap("list forms", err)
	}
	return forms, nil
}

// ReplaceForm swaps the title, description and entire field set of an
// existing form and bumps its version.
func (s *PostgresStore) ReplaceForm(ctx context.Context, id string, form *model.FormSchema) (*model.FormSchema, error) {
	f := form.Clone()
	f.ID = id
	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		return queryReplaceForm(ctx, tx, id, f)
	})
	if err != nil {
		return nil, store.Wrap("replace form", err)
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}

// DeleteForm removes a form and its fields, applying policy to its submissions.
func (s *PostgresStore) DeleteForm(ctx context.Context, id string, policy model.DeletePolicy) error {
	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		return queryDeleteForm(ctx, tx, id, policy)
	})
	return store.Wrap("delete form", err)
}

// CreateSubmission persists sub against the form version it carries.
func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) (string, error) {
	if sub.ID == "" {
		id, err := idgen.NewSubmissionID()
		if err != nil {
			return "", store.Wrap("create submission", err)
		}
		sub.ID = id
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = utcNow()
	}
	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		return queryInsertSubmission(ctx, tx, sub)
	})
	if err != nil {
		return "", store.Wrap("create submission", err)
	}
	return sub.ID, nil
}

// ListSubmissions returns the form's submissions in submission order.
func (s *PostgresStore) ListSubmissions(ctx context.Context, formID string) ([]*model.Submission, error) {
	var subs []*model.Submission
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		var err error
		subs, err = queryListSubmissions(ctx, tx, formID)
		return err
	})
	if err != nil {
		return nil, store.Wrap("list submissions", err)
	}
	return subs, nil
}

// Snapshot reads every form and submission in one REPEATABLE READ
// transaction.
func (s *PostgresStore) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{}
	err := s.readOnly(ctx, func(tx *sql.Tx) error {
		forms, err := queryListForms(ctx, tx)
		if err != nil {
			return err
		}
		byForm, err := queryAllSubmissions(ctx, tx)
		if err != nil {
			return err
		}
		snap.Forms = forms
		snap.Submissions = make(map[string][]*model.Submission, len(forms))
		for _, f := range forms {
			subs := byForm[f.ID]
			if subs == nil {
				subs = []*model.Submission{}
			}
			snap.Submissions[f.ID] = subs
		}
		return nil
	})
	if err != nil {
		return nil, store.Wrap("snapshot", err)
	}
	return snap, nil
}

// CountSubmissions returns how many submissions reference formID.
func (s *PostgresStore) CountSubmissions(ctx context.Context, formID string) (int, error) {
	n, err := queryCountSubmissions(ctx, s.db, formID)
	if err != nil {
		return 0, store.Wrap("count submissions", err)
	}
	return n, nil
}

// readOnly runs fn in a REPEATABLE READ read-only transaction so multi-query
// reads see one snapshot.
func (s *PostgresStore) readOnly(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
