package server

import (
	"net/http"
)

// handleCreateForm handles POST /v1/forms.
func (s *FormsServer) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var in formInput
	if err := decodeBody(w, r, &in); err != nil {
		writeServiceError(w, err)
		return
	}

	form, err := s.createForm(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, form)
}

// handleListForms handles GET /v1/forms.
func (s *FormsServer) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.listForms(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"forms": forms,
		"total": len(forms),
	})
}

// handleGetForm handles GET /v1/forms/{id}.
func (s *FormsServer) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.getForm(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, form)
}

// handleReplaceForm handles PUT /v1/forms/{id}.
func (s *FormsServer) handleReplaceForm(w http.ResponseWriter, r *http.Request) {
	var in formInput
	if err := decodeBody(w, r, &in); err != nil {
		writeServiceError(w, err)
		return
	}

	form, err := s.replaceForm(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, form)
}

// handleDeleteForm handles DELETE /v1/forms/{id}.
func (s *FormsServer) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteForm(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateSubmission handles POST /v1/forms/{id}/submissions.
func (s *FormsServer) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var in submissionInput
	if err := decodeBody(w, r, &in); err != nil {
		writeServiceError(w, err)
		return
	}

	sub, err := s.createSubmission(r.Context(), r.PathValue("id"), in.Values)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// handleListSubmissions handles GET /v1/forms/{id}/submissions.
func (s *FormsServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.listSubmissions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": subs,
		"total":       len(subs),
	})
}

// handleValidateSubmission handles POST /v1/forms/{id}/validate.
func (s *FormsServer) handleValidateSubmission(w http.ResponseWriter, r *http.Request) {
	var in submissionInput
	if err := decodeBody(w, r, &in); err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := s.validateSubmission(r.Context(), r.PathValue("id"), in.Values)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
