package server

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies read by the JSON handlers.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *FormsServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/forms", s.handleCreateForm)
	mux.HandleFunc("GET /v1/forms", s.handleListForms)
	mux.HandleFunc("GET /v1/forms/{id}", s.handleGetForm)
	mux.HandleFunc("PUT /v1/forms/{id}", s.handleReplaceForm)
	mux.HandleFunc("DELETE /v1/forms/{id}", s.handleDeleteForm)
	mux.HandleFunc("POST /v1/forms/{id}/submissions", s.handleCreateSubmission)
	mux.HandleFunc("GET /v1/forms/{id}/submissions", s.handleListSubmissions)
	mux.HandleFunc("POST /v1/forms/{id}/validate", s.handleValidateSubmission)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RequestLogger(AuthMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *FormsServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes the JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return inputError("invalid JSON body")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: codeForStatus(status)})
}

// writeServiceError writes err in the shape and status classify assigns it.
func writeServiceError(w http.ResponseWriter, err error) {
	c := classify(err)
	writeJSON(w, c.httpStatus, c.body)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusBadRequest:
		return codeInvalidRequest
	case http.StatusNotFound:
		return codeNotFound
	}
	return codeInternal
}
