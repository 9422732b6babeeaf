// Package retrieval turns a query string into lesson-scoped grounding
// context: a ranked, locality-expanded, deduplicated set of document chunks.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/document"
)

// Searcher is the document-store surface the service reads from.
type Searcher interface {
	Search(ctx context.Context, lessonID uuid.UUID, queryEmbedding []float32, minSimilarity float64, limit int32) ([]*document.Match, error)
	ChunkRange(ctx context.Context, documentID uuid.UUID, fromIndex, toIndex int) ([]*document.Match, error)
}

// Entry is one grounding chunk handed to the prompt builder. Entries are
// presented to the completion backend with SYSTEM role, tagged as retrieved
// material so they are distinguishable from the authored system prompt.
type Entry struct {
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Similarity float32
}

// Config bounds a retrieval pass.
type Config struct {
	// TopK is the number of seed chunks requested from similarity search.
	TopK int32
	// SimilarityThreshold drops seed chunks at or below this cosine
	// similarity even when they rank inside TopK. Neighbour chunks are
	// exempt; they ride along on their seed's score.
	SimilarityThreshold float64
	// NeighbourCount is the default total neighbour budget per seed when
	// the caller passes zero.
	NeighbourCount int
	// EmbedTimeout bounds the query embedding call. On expiry retrieval
	// degrades to an empty result instead of stalling the turn.
	EmbedTimeout time.Duration
}

// Service embeds queries and searches lesson documents. The embedder must be
// the same model used at ingestion time or similarity scores are meaningless.
type Service struct {
	embedder ai.Embedder
	store    Searcher
	cfg      Config
	logger   *slog.Logger
}

func New(embedder ai.Embedder, store Searcher, cfg Config, logger *slog.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.NeighbourCount < 0 {
		cfg.NeighbourCount = 0
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Context retrieves grounding chunks for queryText within the lesson scope.
//
// Embedding failures and timeouts degrade to an empty result with a nil
// error: an ungrounded turn is preferable to a failed one. Store errors
// after a successful embed are real failures and propagate.
func (s *Service) Context(ctx context.Context, queryText string, lessonID uuid.UUID, neighbourCount int) ([]*Entry, error) {
	if queryText == "" {
		return nil, nil
	}
	if neighbourCount <= 0 {
		neighbourCount = s.cfg.NeighbourCount
	}

	queryEmbedding, err := s.embedQuery(ctx, queryText)
	if err != nil {
		s.logger.Warn("retrieval degraded to empty context",
			"lesson_id", lessonID,
			"error", err,
		)
		return nil, nil
	}

	seeds, err := s.store.Search(ctx, lessonID, queryEmbedding, s.cfg.SimilarityThreshold, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	entries, err := s.expand(ctx, seeds, neighbourCount)
	if err != nil {
		return nil, err
	}

	// Similarity descending, ties by (documentID, chunkIndex) ascending.
	// Neighbours share their seed's score, so each neighbour group stays
	// contiguous and the full ordering is deterministic.
	slices.SortFunc(entries, func(a, b *Entry) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		if c := compareUUID(a.DocumentID, b.DocumentID); c != 0 {
			return c
		}
		return a.ChunkIndex - b.ChunkIndex
	})

	s.logger.Debug("retrieved grounding context",
		"lesson_id", lessonID,
		"seeds", len(seeds),
		"entries", len(entries),
	)
	return entries, nil
}

// expand pulls neighbouring chunks around each seed, never crossing document
// boundaries, and deduplicates against seeds and other neighbour groups.
func (s *Service) expand(ctx context.Context, seeds []*document.Match, neighbourCount int) ([]*Entry, error) {
	type chunkKey struct {
		documentID uuid.UUID
		chunkIndex int
	}

	seen := make(map[chunkKey]bool, len(seeds)*(neighbourCount+1))
	entries := make([]*Entry, 0, len(seeds)*(neighbourCount+1))

	// Seeds first: a chunk that is both a seed and another seed's neighbour
	// keeps its own similarity score.
	for _, seed := range seeds {
		key := chunkKey{seed.DocumentID, seed.ChunkIndex}
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, &Entry{
			DocumentID: seed.DocumentID,
			ChunkIndex: seed.ChunkIndex,
			Content:    seed.Content,
			Similarity: seed.Similarity,
		})
	}

	radius := (neighbourCount + 1) / 2
	if radius == 0 {
		return entries, nil
	}

	for _, seed := range seeds {
		neighbours, err := s.store.ChunkRange(ctx, seed.DocumentID, seed.ChunkIndex-radius, seed.ChunkIndex+radius)
		if err != nil {
			return nil, fmt.Errorf("expanding neighbours of chunk %d in document %s: %w", seed.ChunkIndex, seed.DocumentID, err)
		}
		for _, n := range neighbours {
			key := chunkKey{n.DocumentID, n.ChunkIndex}
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, &Entry{
				DocumentID: n.DocumentID,
				ChunkIndex: n.ChunkIndex,
				Content:    n.Content,
				Similarity: seed.Similarity,
			})
		}
	}
	return entries, nil
}

func (s *Service) embedQuery(ctx context.Context, queryText string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(queryText, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no embeddings")
	}
	return resp.Embeddings[0].Embedding, nil
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
