// Package mentor orchestrates the conversation pipeline: per-turn
// summarization, prompt assembly, completion, and durable persistence of
// every finished turn.
package mentor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/prompt"
	"github.com/Selleo/mentingo-sub006/internal/thread"
	"github.com/Selleo/mentingo-sub006/internal/token"
)

// ThreadStore is the persistence surface the pipeline drives.
type ThreadStore interface {
	Create(ctx context.Context, lessonID, userID uuid.UUID, userLanguage string) (*thread.Thread, error)
	Get(ctx context.Context, id uuid.UUID) (*thread.Thread, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*thread.Thread, error)
	VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error)
	UpsertRoleMessage(ctx context.Context, threadID uuid.UUID, role thread.Role, content string, tokenCount int) (*thread.Message, error)
	AppendTurn(ctx context.Context, threadID uuid.UUID, userMsg, mentorMsg *thread.Message) ([]*thread.Message, error)
	Complete(ctx context.Context, id uuid.UUID) (*thread.Thread, error)
	UserTranscript(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error)
}

// PromptBuilder assembles the ordered turn context.
type PromptBuilder interface {
	Build(ctx context.Context, t *thread.Thread, newUserContent, tempMessageID string) ([]*prompt.Message, error)
}

// Summarizer compacts over-threshold history before a turn.
type Summarizer interface {
	MaybeCompact(ctx context.Context, t *thread.Thread) (bool, error)
}

// Config tunes the pipeline.
type Config struct {
	// ModelName is used for token counting of persisted messages and for
	// the completion backend.
	ModelName string
	// TurnTimeout bounds one completion call. Expiry is a hard failure
	// surfaced to the caller, unlike embedding timeouts.
	TurnTimeout time.Duration
}

// Turn is one persisted user/mentor message pair.
type Turn struct {
	UserMessage   *thread.Message
	MentorMessage *thread.Message
}

// TurnResult resolves a streamed turn after persistence.
type TurnResult struct {
	Turn *Turn
	Err  error
}

// Stream is a live turn. Chunks closes when generation ends; Result then
// delivers exactly one value once the turn is durably recorded.
type Stream struct {
	Chunks <-chan string
	Result <-chan TurnResult
}

// Service runs chat turns. Turns on the same thread are serialized; turns
// on different threads run concurrently.
type Service struct {
	generator  Generator
	threads    ThreadStore
	builder    PromptBuilder
	summarizer Summarizer
	cfg        Config
	locks      *threadLocks
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func NewService(generator Generator, threads ThreadStore, builder PromptBuilder, summarizer Summarizer, cfg Config, logger *slog.Logger) *Service {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator:  generator,
		threads:    threads,
		builder:    builder,
		summarizer: summarizer,
		cfg:        cfg,
		locks:      newThreadLocks(),
		logger:     logger,
	}
}

// StartThread opens a conversation for a lesson and seeds its SYSTEM
// message from the lesson's rendered instructions.
func (s *Service) StartThread(ctx context.Context, lessonID, userID uuid.UUID, userLanguage, systemPrompt string) (*thread.Thread, error) {
	t, err := s.threads.Create(ctx, lessonID, userID, userLanguage)
	if err != nil {
		return nil, err
	}
	if systemPrompt != "" {
		count := token.Count(s.cfg.ModelName, systemPrompt)
		if _, err := s.threads.UpsertRoleMessage(ctx, t.ID, thread.RoleSystem, systemPrompt, count); err != nil {
			return nil, fmt.Errorf("seeding system message: %w", err)
		}
	}
	return t, nil
}

// Thread returns an owned thread with its visible messages.
func (s *Service) Thread(ctx context.Context, threadID, userID uuid.UUID) (*thread.Thread, []*thread.Message, error) {
	t, err := s.loadOwned(ctx, threadID, userID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.threads.VisibleMessages(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	return t, messages, nil
}

// Threads lists the caller's threads.
func (s *Service) Threads(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*thread.Thread, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.threads.ListByUser(ctx, userID, limit, offset)
}

// Chat runs one single-shot turn and returns the persisted message pair.
func (s *Service) Chat(ctx context.Context, threadID, userID uuid.UUID, content, tempMessageID string) (*Turn, error) {
	content, tempMessageID, err := s.prepareTurn(ctx, threadID, userID, content, tempMessageID)
	if err != nil {
		return nil, err
	}
	return s.runTurn(ctx, threadID, userID, content, tempMessageID, nil)
}

// StreamChat opens a streamed turn. Pre-turn guards run synchronously so no
// stream is opened for an invalid request. Generation and persistence are
// detached from the request context: a client disconnect stops chunk
// delivery but the finished reply is still recorded in full.
func (s *Service) StreamChat(ctx context.Context, threadID, userID uuid.UUID, content, tempMessageID string) (*Stream, error) {
	content, tempMessageID, err := s.prepareTurn(ctx, threadID, userID, content, tempMessageID)
	if err != nil {
		return nil, err
	}

	chunks := make(chan string, 16)
	result := make(chan TurnResult, 1)
	turnCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(chunks)

		delivering := true
		onChunk := func(text string) error {
			if !delivering || text == "" {
				return nil
			}
			select {
			case chunks <- text:
			case <-ctx.Done():
				delivering = false
				s.logger.Debug("client disconnected mid-stream, finishing turn server-side", "thread_id", threadID)
			}
			return nil
		}

		turn, err := s.runTurn(turnCtx, threadID, userID, content, tempMessageID, onChunk)
		result <- TurnResult{Turn: turn, Err: err}
	}()

	return &Stream{Chunks: chunks, Result: result}, nil
}

// Close waits for in-flight streamed turns to finish persisting.
func (s *Service) Close() {
	s.wg.Wait()
}

// prepareTurn runs the synchronous guards shared by both chat modes:
// content present, thread exists, caller owns it, thread still ACTIVE.
// The state check is repeated under the thread lock in runTurn; this one
// exists so invalid requests fail before a stream is opened.
func (s *Service) prepareTurn(ctx context.Context, threadID, userID uuid.UUID, content, tempMessageID string) (string, string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", ErrEmptyContent
	}
	if tempMessageID == "" {
		tempMessageID = uuid.NewString()
	}
	t, err := s.loadOwned(ctx, threadID, userID)
	if err != nil {
		return "", "", err
	}
	if !t.Active() {
		return "", "", thread.ErrThreadNotActive
	}
	return content, tempMessageID, nil
}

// runTurn holds the thread lock across compaction, prompt assembly,
// generation, and persistence so concurrent turns cannot interleave with
// an in-flight archive. Ownership and liveness are re-checked under the
// lock: a judgement holding it may have completed the thread after the
// synchronous guards passed.
func (s *Service) runTurn(ctx context.Context, threadID, userID uuid.UUID, content, tempMessageID string, onChunk func(string) error) (*Turn, error) {
	release := s.locks.acquire(threadID)
	defer release()

	t, err := s.loadOwned(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	if !t.Active() {
		return nil, thread.ErrThreadNotActive
	}

	if _, err := s.summarizer.MaybeCompact(ctx, t); err != nil {
		// Compaction is best-effort; the turn proceeds on uncompacted history.
		s.logger.Warn("compaction failed before turn", "thread_id", t.ID, "error", err)
	}

	messages, err := s.builder.Build(ctx, t, content, tempMessageID)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()

	replyText, err := s.generator.Generate(genCtx, messages, onChunk)
	if err != nil {
		s.logger.Error("completion backend failed", "thread_id", t.ID, "error", err)
		return nil, ErrBackend
	}
	replyText = strings.TrimSpace(replyText)

	userMsg := &thread.Message{
		Role:       thread.RoleUser,
		Content:    content,
		TokenCount: token.Count(s.cfg.ModelName, content),
	}
	mentorMsg := &thread.Message{
		Role:       thread.RoleMentor,
		Content:    replyText,
		TokenCount: token.Count(s.cfg.ModelName, replyText),
	}

	saved, err := s.threads.AppendTurn(ctx, t.ID, userMsg, mentorMsg)
	if err != nil {
		return nil, fmt.Errorf("persisting turn: %w", err)
	}
	return &Turn{UserMessage: saved[0], MentorMessage: saved[1]}, nil
}

func (s *Service) loadOwned(ctx context.Context, threadID, userID uuid.UUID) (*thread.Thread, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, thread.ErrNotOwner
	}
	return t, nil
}
