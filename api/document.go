package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/document"
)

// DocumentHandler serves the ingestion write paths: document registration,
// chunk replacement, and lesson linking. The upstream ingestion pipeline
// parses and embeds files; this API only stores the results.
type DocumentHandler struct {
	store  *document.Store
	logger *slog.Logger
}

func NewDocumentHandler(store *document.Store, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, logger: logger}
}

func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.upsert)
	mux.HandleFunc("PUT /api/documents/{id}/chunks", h.replaceChunks)
	mux.HandleFunc("POST /api/lessons/{id}/documents", h.link)
	mux.HandleFunc("DELETE /api/lessons/{id}/documents/{docID}", h.unlink)
}

// UpsertDocumentRequest registers a document by content checksum.
// Re-posting identical content returns the existing record.
type UpsertDocumentRequest struct {
	Checksum string          `json:"checksum"`
	MimeType string          `json:"mimeType"`
	Size     int64           `json:"size"`
	Metadata json.RawMessage `json:"metadata"`
}

// DocumentResponse is the wire form of a document.
type DocumentResponse struct {
	ID       string `json:"id"`
	Checksum string `json:"checksum"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Status   string `json:"status"`
}

// ChunkPayload is one embedded chunk produced by the ingestion pipeline.
type ChunkPayload struct {
	ChunkIndex int       `json:"chunkIndex"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
}

// ReplaceChunksRequest swaps a document's full chunk set.
type ReplaceChunksRequest struct {
	Chunks []ChunkPayload `json:"chunks"`
}

// LinkDocumentRequest attaches a document to the lesson in the path.
type LinkDocumentRequest struct {
	DocumentID string `json:"documentId"`
}

func (h *DocumentHandler) upsert(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	var req UpsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if req.Checksum == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CHECKSUM", "checksum is required")
		return
	}

	doc, err := h.store.Upsert(r.Context(), req.Checksum, req.MimeType, req.Size, req.Metadata)
	if err != nil {
		h.logger.Error("upserting document failed", "checksum", req.Checksum, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) replaceChunks(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	documentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "document id must be a UUID")
		return
	}

	var req ReplaceChunksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if len(req.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_CHUNKS", "at least one chunk is required")
		return
	}

	if _, err := h.store.Get(r.Context(), documentID); err != nil {
		writeDomainError(w, err)
		return
	}

	chunks := make([]*document.Chunk, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		if c.ChunkIndex < 0 || len(c.Embedding) == 0 {
			writeError(w, http.StatusBadRequest, "INVALID_CHUNK", "chunks need a nonnegative index and an embedding")
			return
		}
		chunks = append(chunks, &document.Chunk{
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Embedding:  c.Embedding,
		})
	}

	if err := h.store.ReplaceChunks(r.Context(), documentID, chunks); err != nil {
		h.logger.Error("replacing chunks failed", "document_id", documentID, "error", err)
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) link(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	lessonID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_LESSON_ID", "lesson id must be a UUID")
		return
	}

	var req LinkDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "documentId must be a UUID")
		return
	}

	if _, err := h.store.Get(r.Context(), documentID); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.store.Link(r.Context(), lessonID, documentID); err != nil {
		h.logger.Error("linking document failed", "lesson_id", lessonID, "document_id", documentID, "error", err)
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) unlink(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	lessonID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_LESSON_ID", "lesson id must be a UUID")
		return
	}
	documentID, err := uuid.Parse(r.PathValue("docID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "document id must be a UUID")
		return
	}

	if err := h.store.Unlink(r.Context(), lessonID, documentID); err != nil {
		h.logger.Error("unlinking document failed", "lesson_id", lessonID, "document_id", documentID, "error", err)
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toDocumentResponse(doc *document.Document) DocumentResponse {
	return DocumentResponse{
		ID:       doc.ID.String(),
		Checksum: doc.Checksum,
		MimeType: doc.MimeType,
		Size:     doc.Size,
		Status:   doc.Status,
	}
}
