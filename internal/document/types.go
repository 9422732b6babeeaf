// Package document manages course material storage for retrieval: document
// records, their embedded chunks, and the lesson associations that scope a
// similarity search.
package document

import (
	"time"

	"github.com/google/uuid"
)

// Document ingestion status. A document is searchable only when READY.
const (
	StatusPending = "PENDING"
	StatusReady   = "READY"
	StatusFailed  = "FAILED"
)

// Document is one ingested source file, deduplicated by content checksum.
type Document struct {
	ID        uuid.UUID
	Checksum  string
	MimeType  string
	Size      int64
	Status    string
	Metadata  []byte
	CreatedAt time.Time
}

// Chunk is a contiguous slice of a document with a precomputed embedding.
// ChunkIndex is the zero-based position within the source document.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// Match is a chunk returned from a similarity search. Similarity is cosine
// similarity in [0, 1] against the query embedding; neighbour chunks pulled
// in for context carry the similarity of the seed match they surround.
type Match struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Similarity float32
}
