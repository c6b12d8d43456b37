package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

// Codes for failures that do not come from the validators.
const (
	codeInvalidRequest     = "invalid_request"
	codeNotFound           = "not_found"
	codeFormHasSubmissions = "form_has_submissions"
	codeVersionConflict    = "version_conflict"
	codeStorageFailure     = "storage_failure"
	codeInternal           = "internal"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string             `json:"error"`
	Code    string             `json:"code"`
	Details []model.FieldError `json:"details,omitempty"`
}

// classified is an error translated for the transports.
type classified struct {
	httpStatus int
	grpcCode   codes.Code
	body       errorBody
}

// classify maps an error from the core or the store to its transport
// representation. Storage failures are logged here, once, and their cause is
// not echoed to the caller.
func classify(err error) classified {
	var (
		ve *model.ValidationError
		ie inputError
	)
	switch {
	case errors.As(err, &ve):
		return classified{http.StatusBadRequest, codes.InvalidArgument,
			errorBody{Error: ve.Error(), Code: string(ve.Code), Details: ve.Errors}}
	case errors.As(err, &ie):
		return classified{http.StatusBadRequest, codes.InvalidArgument,
			errorBody{Error: ie.Error(), Code: codeInvalidRequest}}
	case errors.Is(err, store.ErrNotFound):
		return classified{http.StatusNotFound, codes.NotFound,
			errorBody{Error: "form not found", Code: codeNotFound}}
	case errors.Is(err, store.ErrFormHasSubmissions):
		return classified{http.StatusConflict, codes.FailedPrecondition,
			errorBody{Error: err.Error(), Code: codeFormHasSubmissions}}
	case errors.Is(err, store.ErrVersionConflict):
		return classified{http.StatusConflict, codes.FailedPrecondition,
			errorBody{Error: err.Error(), Code: codeVersionConflict}}
	case store.IsStorageFailure(err), errors.Is(err, context.DeadlineExceeded):
		slog.Error("storage failure", "error", err)
		return classified{http.StatusInternalServerError, codes.Internal,
			errorBody{Error: "storage failure", Code: codeStorageFailure}}
	default:
		slog.Error("internal error", "error", err)
		return classified{http.StatusInternalServerError, codes.Internal,
			errorBody{Error: "internal server error", Code: codeInternal}}
	}
}
