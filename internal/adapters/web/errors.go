package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoice-auditor/internal/app"
	"invoice-auditor/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps an AuditService error onto an HTTP status. Server-side
// failures are logged with the request and caller ids.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr  *core.InputError
		collabErr *core.CollaboratorError
		logicErr  *core.LogicError
	)
	switch {
	case errors.As(err, &inputErr):
		writeError(w, r, inputErr.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, app.ErrExtractorUnavailable):
		writeError(w, r, err.Error(), "EXTRACTION_UNAVAILABLE", http.StatusServiceUnavailable)
	case errors.As(err, &collabErr):
		h.logFailure(r, "collaborator failure", err, "collaborator", collabErr.Collaborator)
		writeError(w, r, collabErr.Collaborator+" failed", "UPSTREAM_ERROR", http.StatusBadGateway)
	case errors.As(err, &logicErr):
		h.logFailure(r, "audit invariant violated", err, "stage", logicErr.Stage)
		writeError(w, r, "audit failed", "AUDIT_ERROR", http.StatusInternalServerError)
	default:
		h.logFailure(r, "internal error", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

func (h *Handler) logFailure(r *http.Request, msg string, err error, extra ...any) {
	args := []any{
		"request_id", requestIDFromContext(r.Context()),
		"caller_id", callerFromContext(r.Context()),
		"error", err.Error(),
	}
	h.logger.ErrorContext(r.Context(), msg, append(args, extra...)...)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
