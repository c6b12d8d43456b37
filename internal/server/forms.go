package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/forms/internal/events"
	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

// formInput holds transport-agnostic parameters for creating or replacing a form.
type formInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Fields      []model.RawField `json:"fields"`
}

// submissionInput holds the values of a submission keyed by field label.
type submissionInput struct {
	Values map[string]any `json:"values"`
}

// validationResult is the answer to a dry-run submission.
type validationResult struct {
	Valid  bool               `json:"valid"`
	Values map[string]any     `json:"values,omitempty"`
	Errors []model.FieldError `json:"details,omitempty"`
}

// inputError indicates a malformed request, as opposed to a request that
// fails schema or submission validation.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return inputError("id is required")
	}
	return nil
}

// createForm builds a schema from in, persists it and publishes FormCreated.
func (s *FormsServer) createForm(ctx context.Context, in formInput) (*model.FormSchema, error) {
	form, err := model.BuildSchema(in.Title, in.Description, in.Fields)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if _, err := s.store.CreateForm(sctx, form); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicFormCreated, form.ID, events.FormCreated{Form: form})
	return form, nil
}

func (s *FormsServer) getForm(ctx context.Context, id string) (*model.FormSchema, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.GetForm(sctx, id)
}

func (s *FormsServer) listForms(ctx context.Context) ([]*model.FormSchema, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	forms, err := s.store.ListForms(sctx)
	if err != nil {
		return nil, err
	}
	if forms == nil {
		forms = []*model.FormSchema{}
	}
	return forms, nil
}

// replaceForm rebuilds the whole schema from in and swaps it in for id.
// Existing submissions keep the version they were validated against.
func (s *FormsServer) replaceForm(ctx context.Context, id string, in formInput) (*model.FormSchema, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	next, err := model.BuildSchema(in.Title, in.Description, in.Fields)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	form, err := s.store.ReplaceForm(sctx, id, next)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicFormReplaced, form.ID, events.FormReplaced{
		Form:            form,
		PreviousVersion: form.Version - 1,
	})
	return form, nil
}

func (s *FormsServer) deleteForm(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.DeleteForm(sctx, id, s.deletePolicy); err != nil {
		return err
	}

	s.publish(ctx, events.TopicFormDeleted, id, events.FormDeleted{FormID: id, Policy: s.deletePolicy})
	return nil
}

// createSubmission validates values against the current schema of formID
// and stores the result. A replace that lands between the two steps makes
// the store report ErrVersionConflict; the submission is then validated
// again against the new schema, up to maxSubmitAttempts times.
func (s *FormsServer) createSubmission(ctx context.Context, formID string, values map[string]any) (*model.Submission, error) {
	var err error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		var sub *model.Submission
		sub, err = s.validateAgainstCurrent(ctx, formID, values)
		if err != nil {
			return nil, err
		}

		sctx, cancel := s.storeCtx(ctx)
		_, err = s.store.CreateSubmission(sctx, sub)
		cancel()
		if errors.Is(err, store.ErrVersionConflict) {
			slog.Warn("form replaced during submission, revalidating",
				"form_id", formID, "attempt", attempt, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(ctx, events.TopicSubmissionCreated, formID, events.SubmissionCreated{Submission: sub})
		return sub, nil
	}
	return nil, err
}

func (s *FormsServer) listSubmissions(ctx context.Context, formID string) ([]*model.Submission, error) {
	if err := requireID(formID); err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	subs, err := s.store.ListSubmissions(sctx, formID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*model.Submission{}
	}
	return subs, nil
}

// validateSubmission runs the submission validator without storing anything.
// Validation failures are part of the result, not an error.
func (s *FormsServer) validateSubmission(ctx context.Context, formID string, values map[string]any) (*validationResult, error) {
	sub, err := s.validateAgainstCurrent(ctx, formID, values)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &validationResult{Valid: false, Errors: ve.Errors}, nil
	}
	if err != nil {
		return nil, err
	}
	return &validationResult{Valid: true, Values: sub.Values}, nil
}

func (s *FormsServer) validateAgainstCurrent(ctx context.Context, formID string, values map[string]any) (*model.Submission, error) {
	form, err := s.getForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return model.ValidateSubmission(form, values, model.SubmissionOptions{Strict: s.strict})
}
