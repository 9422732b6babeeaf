package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Selleo/mentingo-sub006/internal/document"
	"github.com/Selleo/mentingo-sub006/internal/mentor"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// writeJSON writes a JSON response with the given status code. Encoding
// failures after WriteHeader can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps pipeline sentinel errors onto HTTP statuses. The
// messages are fixed strings: backend error text never reaches a client.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mentor.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "EMPTY_CONTENT", "message content is required")
	case errors.Is(err, thread.ErrNotOwner):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "thread does not belong to user")
	case errors.Is(err, thread.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "THREAD_NOT_FOUND", "thread not found")
	case errors.Is(err, document.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found")
	case errors.Is(err, thread.ErrThreadNotActive):
		writeError(w, http.StatusConflict, "THREAD_NOT_ACTIVE", "thread must be active")
	case errors.Is(err, mentor.ErrBackend):
		writeError(w, http.StatusInternalServerError, "BACKEND_FAILURE", "completion backend failed")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
