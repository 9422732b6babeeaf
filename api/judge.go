package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/mentor"
)

// JudgeHandler serves the terminal thread evaluation.
type JudgeHandler struct {
	svc    *mentor.Service
	logger *slog.Logger
}

func NewJudgeHandler(svc *mentor.Service, logger *slog.Logger) *JudgeHandler {
	return &JudgeHandler{svc: svc, logger: logger}
}

func (h *JudgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/threads/{id}/judge", h.handle)
}

// JudgeRequest carries the grading context, supplied by the caller as
// opaque strings.
type JudgeRequest struct {
	LessonTitle        string `json:"lessonTitle"`
	LessonInstructions string `json:"lessonInstructions"`
	Conditions         string `json:"conditions"`
}

func (h *JudgeHandler) handle(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	threadID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_THREAD_ID", "thread id must be a UUID")
		return
	}

	var req JudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	judgement, err := h.svc.Judge(r.Context(), threadID, userID, mentor.LessonContext{
		Title:        req.LessonTitle,
		Instructions: req.LessonInstructions,
		Conditions:   req.Conditions,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, judgement)
}
