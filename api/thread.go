package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/mentor"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// ThreadHandler serves thread lifecycle endpoints.
type ThreadHandler struct {
	svc    *mentor.Service
	logger *slog.Logger
}

func NewThreadHandler(svc *mentor.Service, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{svc: svc, logger: logger}
}

func (h *ThreadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/threads", h.create)
	mux.HandleFunc("GET /api/threads", h.list)
	mux.HandleFunc("GET /api/threads/{id}", h.get)
}

// CreateThreadRequest opens a mentor thread for a lesson. SystemPrompt is
// the lesson's rendered persona/instructions, supplied by the caller.
type CreateThreadRequest struct {
	LessonID     string `json:"lessonId"`
	UserLanguage string `json:"userLanguage"`
	SystemPrompt string `json:"systemPrompt"`
}

// ThreadResponse is the wire form of a thread.
type ThreadResponse struct {
	ID           string    `json:"id"`
	LessonID     string    `json:"lessonId"`
	UserID       string    `json:"userId"`
	UserLanguage string    `json:"userLanguage"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MessageResponse is the wire form of a message.
type MessageResponse struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"tokenCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ThreadDetailResponse is a thread with its visible messages.
type ThreadDetailResponse struct {
	Thread   ThreadResponse    `json:"thread"`
	Messages []MessageResponse `json:"messages"`
}

func (h *ThreadHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	lessonID, err := uuid.Parse(req.LessonID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_LESSON_ID", "lessonId must be a UUID")
		return
	}

	t, err := h.svc.StartThread(r.Context(), lessonID, userID, req.UserLanguage, req.SystemPrompt)
	if err != nil {
		h.logger.Error("creating thread failed", "lesson_id", lessonID, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toThreadResponse(t))
}

func (h *ThreadHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	threads, err := h.svc.Threads(r.Context(), userID, int32(limit), int32(offset)) // #nosec G115 -- bounded by queryInt
	if err != nil {
		h.logger.Error("listing threads failed", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	out := make([]ThreadResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, toThreadResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ThreadHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	threadID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_THREAD_ID", "thread id must be a UUID")
		return
	}

	t, messages, err := h.svc.Thread(r.Context(), threadID, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	detail := ThreadDetailResponse{
		Thread:   toThreadResponse(t),
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		detail.Messages = append(detail.Messages, toMessageResponse(msg))
	}
	writeJSON(w, http.StatusOK, detail)
}

func toThreadResponse(t *thread.Thread) ThreadResponse {
	return ThreadResponse{
		ID:           t.ID.String(),
		LessonID:     t.LessonID.String(),
		UserID:       t.UserID.String(),
		UserLanguage: t.UserLanguage,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func toMessageResponse(msg *thread.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID.String(),
		Role:       string(msg.Role),
		Content:    msg.Content,
		TokenCount: msg.TokenCount,
		CreatedAt:  msg.CreatedAt,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 1000 {
		return fallback
	}
	return n
}
