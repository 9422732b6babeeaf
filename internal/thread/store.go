package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Selleo/mentingo-sub006/internal/sqlc"
)

// Querier defines the database operations the store needs on threads and
// messages. Interfaces are defined by the consumer, not the provider, so
// tests can substitute a mock for the sqlc-generated implementation.
type Querier interface {
	CreateThread(ctx context.Context, arg sqlc.CreateThreadParams) (sqlc.Thread, error)
	GetThread(ctx context.Context, id pgtype.UUID) (sqlc.Thread, error)
	ListThreadsByUser(ctx context.Context, arg sqlc.ListThreadsByUserParams) ([]sqlc.Thread, error)
	LockThread(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error)
	CompleteActiveThread(ctx context.Context, id pgtype.UUID) (sqlc.Thread, error)
	TouchThread(ctx context.Context, id pgtype.UUID) error

	InsertMessage(ctx context.Context, arg sqlc.InsertMessageParams) (sqlc.ThreadMessage, error)
	GetVisibleMessages(ctx context.Context, threadID pgtype.UUID) ([]sqlc.ThreadMessage, error)
	GetVisibleRoleMessage(ctx context.Context, arg sqlc.GetVisibleRoleMessageParams) (sqlc.ThreadMessage, error)
	UpdateRoleMessage(ctx context.Context, arg sqlc.UpdateRoleMessageParams) (sqlc.ThreadMessage, error)
	SumVisibleDialogueTokens(ctx context.Context, threadID pgtype.UUID) (int64, error)
	ArchiveDialogue(ctx context.Context, threadID pgtype.UUID) (int64, error)
	GetUserAuthoredMessages(ctx context.Context, threadID pgtype.UUID) ([]sqlc.ThreadMessage, error)
}

// Store persists threads and messages in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // transaction support; nil in unit tests with mocks
	logger  *slog.Logger
}

// New creates a Store. pool may be nil in tests, in which case multi-write
// operations run non-transactionally against the querier.
func New(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, pool: pool, logger: logger}
}

// Create opens a new ACTIVE thread for a (user, lesson) pair. Cardinality of
// one thread per pair is the caller's responsibility.
func (s *Store) Create(ctx context.Context, lessonID, userID uuid.UUID, userLanguage string) (*Thread, error) {
	if userLanguage == "" {
		userLanguage = "en"
	}
	row, err := s.querier.CreateThread(ctx, sqlc.CreateThreadParams{
		LessonID:     uuidToPg(lessonID),
		UserID:       uuidToPg(userID),
		UserLanguage: userLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	t := threadFromRow(row)
	s.logger.Debug("created thread", "id", t.ID, "lesson_id", lessonID, "user_id", userID)
	return t, nil
}

// Get retrieves a thread by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Thread, error) {
	row, err := s.querier.GetThread(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("getting thread %s: %w", id, err)
	}
	return threadFromRow(row), nil
}

// ListByUser lists a user's threads ordered by most recent activity.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*Thread, error) {
	rows, err := s.querier.ListThreadsByUser(ctx, sqlc.ListThreadsByUserParams{
		UserID:       uuidToPg(userID),
		ResultLimit:  limit,
		ResultOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	threads := make([]*Thread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, threadFromRow(row))
	}
	return threads, nil
}

// Complete transitions the thread ACTIVE→COMPLETED. Returns
// ErrThreadNotActive if the thread exists but is already completed.
func (s *Store) Complete(ctx context.Context, id uuid.UUID) (*Thread, error) {
	row, err := s.querier.CompleteActiveThread(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish missing from already-completed.
			if _, getErr := s.querier.GetThread(ctx, uuidToPg(id)); getErr != nil {
				return nil, ErrThreadNotFound
			}
			return nil, ErrThreadNotActive
		}
		return nil, fmt.Errorf("completing thread %s: %w", id, err)
	}
	s.logger.Debug("completed thread", "id", id)
	return threadFromRow(row), nil
}

// VisibleMessages returns all non-archived messages in chronological order.
func (s *Store) VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*Message, error) {
	rows, err := s.querier.GetVisibleMessages(ctx, uuidToPg(threadID))
	if err != nil {
		return nil, fmt.Errorf("getting visible messages for thread %s: %w", threadID, err)
	}
	return messagesFromRows(rows), nil
}

// DialogueTokens sums token counts over non-archived USER/MENTOR messages.
// Archived messages never contribute to threshold sums.
func (s *Store) DialogueTokens(ctx context.Context, threadID uuid.UUID) (int, error) {
	total, err := s.querier.SumVisibleDialogueTokens(ctx, uuidToPg(threadID))
	if err != nil {
		return 0, fmt.Errorf("summing dialogue tokens for thread %s: %w", threadID, err)
	}
	return int(total), nil
}

// UserTranscript returns every USER-authored message, archived or not, in
// chronological order. The judge evaluates only the student's contributions.
func (s *Store) UserTranscript(ctx context.Context, threadID uuid.UUID) ([]*Message, error) {
	rows, err := s.querier.GetUserAuthoredMessages(ctx, uuidToPg(threadID))
	if err != nil {
		return nil, fmt.Errorf("getting user transcript for thread %s: %w", threadID, err)
	}
	return messagesFromRows(rows), nil
}

// UpsertRoleMessage inserts or updates the single non-archived message of
// the given role (SYSTEM or SUMMARY). The token count must be computed by
// the caller with the model in effect for this turn.
func (s *Store) UpsertRoleMessage(ctx context.Context, threadID uuid.UUID, role Role, content string, tokenCount int) (*Message, error) {
	if role != RoleSystem && role != RoleSummary {
		return nil, fmt.Errorf("%w: upsert is limited to SYSTEM and SUMMARY, got %s", ErrInvalidRole, role)
	}
	row, err := upsertRole(ctx, s.querier, uuidToPg(threadID), role, content, tokenCount)
	if err != nil {
		return nil, fmt.Errorf("upserting %s message for thread %s: %w", role, threadID, err)
	}
	msg := messageFromRow(row)
	s.logger.Debug("upserted role message", "thread_id", threadID, "role", role, "token_count", tokenCount)
	return msg, nil
}

// AppendTurn persists one USER and one MENTOR message as a single logical
// unit and bumps the thread's updated_at. The thread row is locked for the
// duration so a concurrent compaction cannot interleave.
func (s *Store) AppendTurn(ctx context.Context, threadID uuid.UUID, userMsg, mentorMsg *Message) ([]*Message, error) {
	if s.pool == nil {
		return s.appendTurnWith(ctx, s.querier, threadID, userMsg, mentorMsg)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning turn transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	q := sqlc.New(tx)
	if _, err := q.LockThread(ctx, uuidToPg(threadID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("locking thread %s: %w", threadID, err)
	}

	saved, err := s.appendTurnWith(ctx, q, threadID, userMsg, mentorMsg)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}
	return saved, nil
}

// Compact atomically archives all non-archived USER/MENTOR messages and
// upserts the SUMMARY message. Archive and summary-upsert are one step:
// a failure of either leaves both untouched, so the thread can never end up
// archived-without-summary.
func (s *Store) Compact(ctx context.Context, threadID uuid.UUID, summaryContent string, summaryTokens int) error {
	if s.pool == nil {
		return s.compactWith(ctx, s.querier, threadID, summaryContent, summaryTokens)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning compaction transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	q := sqlc.New(tx)
	if _, err := q.LockThread(ctx, uuidToPg(threadID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrThreadNotFound
		}
		return fmt.Errorf("locking thread %s: %w", threadID, err)
	}

	if err := s.compactWith(ctx, q, threadID, summaryContent, summaryTokens); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing compaction: %w", err)
	}
	return nil
}

func (s *Store) appendTurnWith(ctx context.Context, q Querier, threadID uuid.UUID, userMsg, mentorMsg *Message) ([]*Message, error) {
	saved := make([]*Message, 0, 2)
	for _, msg := range []*Message{userMsg, mentorMsg} {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRole, msg.Role)
		}
		row, err := q.InsertMessage(ctx, sqlc.InsertMessageParams{
			ThreadID:   uuidToPg(threadID),
			Role:       string(msg.Role),
			Content:    msg.Content,
			TokenCount: int32(msg.TokenCount), // #nosec G115 -- token counts are bounded by prompt size
		})
		if err != nil {
			return nil, fmt.Errorf("inserting %s message: %w", msg.Role, err)
		}
		saved = append(saved, messageFromRow(row))
	}

	if err := q.TouchThread(ctx, uuidToPg(threadID)); err != nil {
		return nil, fmt.Errorf("touching thread %s: %w", threadID, err)
	}

	s.logger.Debug("appended turn", "thread_id", threadID)
	return saved, nil
}

func (s *Store) compactWith(ctx context.Context, q Querier, threadID uuid.UUID, summaryContent string, summaryTokens int) error {
	archived, err := q.ArchiveDialogue(ctx, uuidToPg(threadID))
	if err != nil {
		return fmt.Errorf("archiving dialogue for thread %s: %w", threadID, err)
	}

	if _, err := upsertRole(ctx, q, uuidToPg(threadID), RoleSummary, summaryContent, summaryTokens); err != nil {
		return fmt.Errorf("upserting summary for thread %s: %w", threadID, err)
	}

	s.logger.Debug("compacted thread history",
		"thread_id", threadID,
		"archived_messages", archived,
		"summary_tokens", summaryTokens,
	)
	return nil
}

// upsertRole updates the existing non-archived message of the role or
// inserts a new one. Runs inside the caller's transaction when q is a
// transactional querier.
func upsertRole(ctx context.Context, q Querier, threadID pgtype.UUID, role Role, content string, tokenCount int) (sqlc.ThreadMessage, error) {
	existing, err := q.GetVisibleRoleMessage(ctx, sqlc.GetVisibleRoleMessageParams{
		ThreadID: threadID,
		Role:     string(role),
	})
	switch {
	case err == nil:
		return q.UpdateRoleMessage(ctx, sqlc.UpdateRoleMessageParams{
			Content:    content,
			TokenCount: int32(tokenCount), // #nosec G115 -- token counts are bounded by prompt size
			ID:         existing.ID,
		})
	case errors.Is(err, pgx.ErrNoRows):
		return q.InsertMessage(ctx, sqlc.InsertMessageParams{
			ThreadID:   threadID,
			Role:       string(role),
			Content:    content,
			TokenCount: int32(tokenCount), // #nosec G115 -- token counts are bounded by prompt size
		})
	default:
		return sqlc.ThreadMessage{}, err
	}
}

func (s *Store) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Debug("transaction rollback", "error", err)
	}
}

func threadFromRow(row sqlc.Thread) *Thread {
	return &Thread{
		ID:           pgToUUID(row.ID),
		LessonID:     pgToUUID(row.LessonID),
		UserID:       pgToUUID(row.UserID),
		UserLanguage: row.UserLanguage,
		Status:       row.Status,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func messageFromRow(row sqlc.ThreadMessage) *Message {
	return &Message{
		ID:         pgToUUID(row.ID),
		ThreadID:   pgToUUID(row.ThreadID),
		Role:       Role(row.Role),
		Content:    row.Content,
		TokenCount: int(row.TokenCount),
		Archived:   row.Archived,
		CreatedAt:  row.CreatedAt.Time,
	}
}

func messagesFromRows(rows []sqlc.ThreadMessage) []*Message {
	messages := make([]*Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromRow(row))
	}
	return messages
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
