package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Selleo/mentingo-sub006/internal/sqlc"
)

// ErrDocumentNotFound indicates the requested document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// Querier defines the database operations the store needs on documents,
// chunks, and lesson links.
type Querier interface {
	UpsertDocument(ctx context.Context, arg sqlc.UpsertDocumentParams) (sqlc.Document, error)
	GetDocument(ctx context.Context, id pgtype.UUID) (sqlc.Document, error)
	SetDocumentStatus(ctx context.Context, arg sqlc.SetDocumentStatusParams) error
	DeleteDocument(ctx context.Context, id pgtype.UUID) error

	UpsertChunk(ctx context.Context, arg sqlc.UpsertChunkParams) error
	DeleteChunks(ctx context.Context, documentID pgtype.UUID) error
	SearchLessonChunks(ctx context.Context, arg sqlc.SearchLessonChunksParams) ([]sqlc.SearchLessonChunksRow, error)
	GetChunkRange(ctx context.Context, arg sqlc.GetChunkRangeParams) ([]sqlc.GetChunkRangeRow, error)

	LinkLessonDocument(ctx context.Context, arg sqlc.LinkLessonDocumentParams) error
	UnlinkLessonDocument(ctx context.Context, arg sqlc.UnlinkLessonDocumentParams) (int64, error)
	CountDocumentLinks(ctx context.Context, documentID pgtype.UUID) (int64, error)
}

// Store persists documents and their embedded chunks in PostgreSQL with
// pgvector similarity search.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // transaction support; nil in unit tests with mocks
	logger  *slog.Logger
}

func New(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, pool: pool, logger: logger}
}

// Upsert registers a document by checksum. Re-ingesting identical content
// returns the existing record instead of creating a duplicate.
func (s *Store) Upsert(ctx context.Context, checksum, mimeType string, size int64, metadata []byte) (*Document, error) {
	if metadata == nil {
		metadata = []byte("{}")
	}
	row, err := s.querier.UpsertDocument(ctx, sqlc.UpsertDocumentParams{
		Checksum: checksum,
		MimeType: mimeType,
		Size:     size,
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}
	doc := documentFromRow(row)
	s.logger.Debug("upserted document", "id", doc.ID, "checksum", checksum, "status", doc.Status)
	return doc, nil
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	row, err := s.querier.GetDocument(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return documentFromRow(row), nil
}

// SetStatus moves the document through its ingestion lifecycle.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := s.querier.SetDocumentStatus(ctx, sqlc.SetDocumentStatusParams{
		Status: status,
		ID:     uuidToPg(id),
	}); err != nil {
		return fmt.Errorf("setting document %s status to %s: %w", id, status, err)
	}
	return nil
}

// ReplaceChunks swaps a document's chunk set atomically and marks it READY.
// A failed embed run leaves the previous chunk set searchable.
func (s *Store) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []*Chunk) error {
	if s.pool == nil {
		return s.replaceChunksWith(ctx, s.querier, documentID, chunks)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk replacement: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.replaceChunksWith(ctx, sqlc.New(tx), documentID, chunks); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk replacement: %w", err)
	}
	return nil
}

func (s *Store) replaceChunksWith(ctx context.Context, q Querier, documentID uuid.UUID, chunks []*Chunk) error {
	if err := q.DeleteChunks(ctx, uuidToPg(documentID)); err != nil {
		return fmt.Errorf("clearing chunks for document %s: %w", documentID, err)
	}
	for _, chunk := range chunks {
		vec := pgvector.NewVector(chunk.Embedding)
		if err := q.UpsertChunk(ctx, sqlc.UpsertChunkParams{
			DocumentID: uuidToPg(documentID),
			ChunkIndex: int32(chunk.ChunkIndex), // #nosec G115 -- chunk counts are bounded by document size
			Content:    chunk.Content,
			Embedding:  &vec,
		}); err != nil {
			return fmt.Errorf("storing chunk %d of document %s: %w", chunk.ChunkIndex, documentID, err)
		}
	}
	if err := q.SetDocumentStatus(ctx, sqlc.SetDocumentStatusParams{
		Status: StatusReady,
		ID:     uuidToPg(documentID),
	}); err != nil {
		return fmt.Errorf("marking document %s ready: %w", documentID, err)
	}
	s.logger.Debug("replaced document chunks", "document_id", documentID, "chunks", len(chunks))
	return nil
}

// Link associates a document with a lesson. Linking twice is a no-op.
func (s *Store) Link(ctx context.Context, lessonID, documentID uuid.UUID) error {
	if err := s.querier.LinkLessonDocument(ctx, sqlc.LinkLessonDocumentParams{
		LessonID:   uuidToPg(lessonID),
		DocumentID: uuidToPg(documentID),
	}); err != nil {
		return fmt.Errorf("linking document %s to lesson %s: %w", documentID, lessonID, err)
	}
	return nil
}

// Unlink removes a lesson association. When the last link is removed the
// document and its chunks are garbage-collected.
func (s *Store) Unlink(ctx context.Context, lessonID, documentID uuid.UUID) error {
	removed, err := s.querier.UnlinkLessonDocument(ctx, sqlc.UnlinkLessonDocumentParams{
		LessonID:   uuidToPg(lessonID),
		DocumentID: uuidToPg(documentID),
	})
	if err != nil {
		return fmt.Errorf("unlinking document %s from lesson %s: %w", documentID, lessonID, err)
	}
	if removed == 0 {
		return nil
	}

	remaining, err := s.querier.CountDocumentLinks(ctx, uuidToPg(documentID))
	if err != nil {
		return fmt.Errorf("counting links for document %s: %w", documentID, err)
	}
	if remaining > 0 {
		return nil
	}

	if err := s.querier.DeleteChunks(ctx, uuidToPg(documentID)); err != nil {
		return fmt.Errorf("deleting chunks of orphaned document %s: %w", documentID, err)
	}
	if err := s.querier.DeleteDocument(ctx, uuidToPg(documentID)); err != nil {
		return fmt.Errorf("deleting orphaned document %s: %w", documentID, err)
	}
	s.logger.Debug("garbage-collected orphaned document", "document_id", documentID)
	return nil
}

// Search runs a cosine-similarity search over READY documents linked to the
// lesson. Results come back ordered by descending similarity.
func (s *Store) Search(ctx context.Context, lessonID uuid.UUID, queryEmbedding []float32, minSimilarity float64, limit int32) ([]*Match, error) {
	vec := pgvector.NewVector(queryEmbedding)
	rows, err := s.querier.SearchLessonChunks(ctx, sqlc.SearchLessonChunksParams{
		QueryEmbedding: &vec,
		LessonID:       uuidToPg(lessonID),
		MinSimilarity:  minSimilarity,
		ResultLimit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching chunks for lesson %s: %w", lessonID, err)
	}

	matches := make([]*Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, &Match{
			ChunkID:    pgToUUID(row.ID),
			DocumentID: pgToUUID(row.DocumentID),
			ChunkIndex: int(row.ChunkIndex),
			Content:    row.Content,
			Similarity: row.Similarity,
		})
	}
	return matches, nil
}

// ChunkRange returns the chunks of one document with indexes in
// [fromIndex, toIndex], ordered by chunk index. Indexes outside the
// document's actual range are simply absent from the result.
func (s *Store) ChunkRange(ctx context.Context, documentID uuid.UUID, fromIndex, toIndex int) ([]*Match, error) {
	if fromIndex < 0 {
		fromIndex = 0
	}
	rows, err := s.querier.GetChunkRange(ctx, sqlc.GetChunkRangeParams{
		DocumentID: uuidToPg(documentID),
		FromIndex:  int32(fromIndex), // #nosec G115 -- chunk counts are bounded by document size
		ToIndex:    int32(toIndex),   // #nosec G115
	})
	if err != nil {
		return nil, fmt.Errorf("getting chunk range for document %s: %w", documentID, err)
	}

	matches := make([]*Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, &Match{
			ChunkID:    pgToUUID(row.ID),
			DocumentID: pgToUUID(row.DocumentID),
			ChunkIndex: int(row.ChunkIndex),
			Content:    row.Content,
		})
	}
	return matches, nil
}

func (s *Store) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Debug("transaction rollback", "error", err)
	}
}

func documentFromRow(row sqlc.Document) *Document {
	return &Document{
		ID:        pgToUUID(row.ID),
		Checksum:  row.Checksum,
		MimeType:  row.MimeType,
		Size:      row.Size,
		Status:    row.Status,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt.Time,
	}
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
