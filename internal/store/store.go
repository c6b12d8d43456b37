// Package store defines the persistence interface for form schemas and
// their submissions, and the errors every implementation reports.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/forms/internal/model"
)

var (
	// ErrNotFound is returned when the addressed form does not exist.
	ErrNotFound = errors.New("not found")
	// ErrFormHasSubmissions is returned by DeleteForm under DeleteReject when
	// submissions still reference the form.
	ErrFormHasSubmissions = errors.New("form has submissions")
	// ErrVersionConflict is returned by CreateSubmission when the form was
	// replaced after the submission was validated.
	ErrVersionConflict = errors.New("form version changed")
)

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *StorageError for op, passing nil and the store's
// sentinel errors through unchanged.
func Wrap(op string, err error) error {
	if err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrFormHasSubmissions) ||
		errors.Is(err, ErrVersionConflict) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageFailure reports whether err came from the underlying store.
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Snapshot is every form and its submissions as of a single point in time.
type Snapshot struct {
	Forms       []*model.FormSchema            // creation order
	Submissions map[string][]*model.Submission // by form ID, submission order
}

// Store persists form schemas together with their fields, and the
// submissions validated against them. Every method is atomic: readers never
// observe a form without its full field set.
type Store interface {
	// Forms
	CreateForm(ctx context.Context, form *model.FormSchema) (string, error) // assigns ID, Version, timestamps
	GetForm(ctx context.Context, id string) (*model.FormSchema, error)
	ListForms(ctx context.Context) ([]*model.FormSchema, error) // creation order
	ReplaceForm(ctx context.Context, id string, form *model.FormSchema) (*model.FormSchema, error)
	DeleteForm(ctx context.Context, id string, policy model.DeletePolicy) error

	// Submissions
	CreateSubmission(ctx context.Context, sub *model.Submission) (string, error) // assigns ID, SubmittedAt if zero
	ListSubmissions(ctx context.Context, formID string) ([]*model.Submission, error)
	CountSubmissions(ctx context.Context, formID string) (int, error)

	// Snapshot reads every form with its submissions in one read
	// transaction; concurrent writes are either fully visible or not at all.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Lifecycle
	Close() error
}
