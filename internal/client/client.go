// Package client provides a transport-agnostic interface for the forms
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/forms/internal/model"
)

// FormsClient is the interface that all fd CLI commands use to communicate
// with the forms server. It is implemented by HTTPClient (default) and
// GRPCClient.
type FormsClient interface {
	// Forms
	CreateForm(ctx context.Context, req *FormRequest) (*model.FormSchema, error)
	GetForm(ctx context.Context, id string) (*model.FormSchema, error)
	ListForms(ctx context.Context) ([]*model.FormSchema, error)
	ReplaceForm(ctx context.Context, id string, req *FormRequest) (*model.FormSchema, error)
	DeleteForm(ctx context.Context, id string) error

	// Submissions
	CreateSubmission(ctx context.Context, formID string, values map[string]any) (*model.Submission, error)
	ListSubmissions(ctx context.Context, formID string) ([]*model.Submission, error)
	ValidateSubmission(ctx context.Context, formID string, values map[string]any) (*ValidationResult, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// FormRequest holds the parameters for creating or replacing a form.
type FormRequest struct {
	Title       string           `json:"title" yaml:"title"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []model.RawField `json:"fields" yaml:"fields"`
}

// ValidationResult is the outcome of a dry-run submission.
type ValidationResult struct {
	Valid   bool               `json:"valid"`
	Values  map[string]any     `json:"values,omitempty"`
	Details []model.FieldError `json:"details,omitempty"`
}

// listFormsResponse and listSubmissionsResponse are the list envelopes
// shared by both transports.
type listFormsResponse struct {
	Forms []*model.FormSchema `json:"forms"`
	Total int                 `json:"total"`
}

type listSubmissionsResponse struct {
	Submissions []*model.Submission `json:"submissions"`
	Total       int                 `json:"total"`
}

type submissionRequest struct {
	FormID string         `json:"form_id,omitempty"`
	Values map[string]any `json:"values"`
}

// APIError represents an error response from the server. Code is the
// machine-readable error code and Details lists per-field failures, when any.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []model.FieldError
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %d: %s", e.StatusCode, e.Message)
	if e.Code != "" && !strings.Contains(e.Message, e.Code) {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	return b.String()
}

// IsNotFound reports whether err is an APIError for a missing form.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
