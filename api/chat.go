package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/mentor"
)

// ChatHandler serves chat turns.
//
// Endpoints:
//   - POST /api/chat        - synchronous turn (JSON request/response)
//   - POST /api/chat/stream - streaming turn (Server-Sent Events)
type ChatHandler struct {
	svc    *mentor.Service
	logger *slog.Logger
}

func NewChatHandler(svc *mentor.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is one chat turn. TempMessageID is echoed back so the client
// can reconcile its optimistic message with the persisted one.
type ChatRequest struct {
	ThreadID      string `json:"threadId"`
	Content       string `json:"content"`
	TempMessageID string `json:"tempMessageId"`
}

// ChatResponse is the persisted turn.
type ChatResponse struct {
	TempMessageID string          `json:"tempMessageId,omitempty"`
	UserMessage   MessageResponse `json:"userMessage"`
	MentorMessage MessageResponse `json:"mentorMessage"`
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	req, threadID, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	turn, err := h.svc.Chat(r.Context(), threadID, userID, req.Content, req.TempMessageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		TempMessageID: req.TempMessageID,
		UserMessage:   toMessageResponse(turn.UserMessage),
		MentorMessage: toMessageResponse(turn.MentorMessage),
	})
}

// SSEChunkData is the payload of "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the payload of the final "done" event, emitted once the
// turn is durably persisted.
type SSEDoneData struct {
	TempMessageID string          `json:"tempMessageId,omitempty"`
	UserMessage   MessageResponse `json:"userMessage"`
	MentorMessage MessageResponse `json:"mentorMessage"`
}

// SSEErrorData is the payload of "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream streams a turn as SSE: chunk events while tokens arrive,
// then one done event carrying the persisted message pair. The guards run
// before any SSE byte is written so invalid requests still get proper HTTP
// status codes.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	req, threadID, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	stream, err := h.svc.StreamChat(r.Context(), threadID, userID, req.Content, req.TempMessageID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.logger.Debug("SSE stream started", "thread_id", threadID)

	for chunk := range stream.Chunks {
		writeSSE(w, flusher, "chunk", SSEChunkData{Text: chunk})
	}

	// The result resolves only after persistence; even if the client is
	// gone by now, the turn is already durable.
	result := <-stream.Result
	if result.Err != nil {
		h.logger.Error("stream turn failed", "thread_id", threadID, "error", result.Err)
		writeSSE(w, flusher, "error", SSEErrorData{Code: "TURN_FAILED", Message: "chat turn failed"})
		return
	}

	writeSSE(w, flusher, "done", SSEDoneData{
		TempMessageID: req.TempMessageID,
		UserMessage:   toMessageResponse(result.Turn.UserMessage),
		MentorMessage: toMessageResponse(result.Turn.MentorMessage),
	})
	h.logger.Debug("SSE stream completed", "thread_id", threadID)
}

func (h *ChatHandler) decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, uuid.UUID, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return req, uuid.Nil, false
	}
	threadID, err := uuid.Parse(req.ThreadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_THREAD_ID", "threadId must be a UUID")
		return req, uuid.Nil, false
	}
	return req, threadID, true
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal SSE payload", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
