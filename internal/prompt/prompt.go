// Package prompt assembles the ordered message context for a chat turn.
//
// The ordering contract is fixed: SYSTEM first, then SUMMARY, then the
// remaining non-archived history in chronological order, then the new USER
// turn, then retrieved grounding chunks. Grounding follows the user turn
// because it is same-turn supplementary context, not historical dialogue.
package prompt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/retrieval"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// Message is one entry of the assembled context. ID is the persisted message
// ID, or the caller-supplied temporary ID for the new user turn so the
// client can reconcile it with the eventually persisted record. Grounding
// marks retrieved course material as opposed to authored prompt text.
type Message struct {
	ID        string
	Role      thread.Role
	Content   string
	Grounding bool
}

// ThreadReader loads the visible history of a thread.
type ThreadReader interface {
	VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error)
}

// Retriever supplies lesson-scoped grounding chunks for a query.
type Retriever interface {
	Context(ctx context.Context, queryText string, lessonID uuid.UUID, neighbourCount int) ([]*retrieval.Entry, error)
}

// Builder assembles prompts from thread state and retrieval.
type Builder struct {
	threads        ThreadReader
	retriever      Retriever
	neighbourCount int
	logger         *slog.Logger
}

func NewBuilder(threads ThreadReader, retriever Retriever, neighbourCount int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		threads:        threads,
		retriever:      retriever,
		neighbourCount: neighbourCount,
		logger:         logger,
	}
}

// Build assembles the full ordered context for one chat turn. The retrieval
// query is the new user content concatenated with the last history entry,
// which captures the immediate conversational continuity for embedding.
func (b *Builder) Build(ctx context.Context, t *thread.Thread, newUserContent, tempMessageID string) ([]*Message, error) {
	history, err := b.threads.VisibleMessages(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history for prompt: %w", err)
	}

	var system, summaryMsg *thread.Message
	dialogue := make([]*thread.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case thread.RoleSystem:
			system = msg
		case thread.RoleSummary:
			summaryMsg = msg
		default:
			dialogue = append(dialogue, msg)
		}
	}

	queryText := newUserContent
	if len(dialogue) > 0 {
		queryText = newUserContent + "\n" + dialogue[len(dialogue)-1].Content
	}
	grounding, err := b.retriever.Context(ctx, queryText, t.LessonID, b.neighbourCount)
	if err != nil {
		return nil, fmt.Errorf("retrieving grounding context: %w", err)
	}

	messages := make([]*Message, 0, len(dialogue)+len(grounding)+3)
	if system != nil {
		messages = append(messages, fromThreadMessage(system))
	}
	if summaryMsg != nil {
		messages = append(messages, fromThreadMessage(summaryMsg))
	}
	for _, msg := range dialogue {
		messages = append(messages, fromThreadMessage(msg))
	}
	messages = append(messages, &Message{
		ID:      tempMessageID,
		Role:    thread.RoleUser,
		Content: newUserContent,
	})
	for _, entry := range grounding {
		messages = append(messages, &Message{
			ID:        fmt.Sprintf("ctx-%s-%d", entry.DocumentID, entry.ChunkIndex),
			Role:      thread.RoleSystem,
			Content:   entry.Content,
			Grounding: true,
		})
	}

	b.logger.Debug("assembled prompt",
		"thread_id", t.ID,
		"history", len(dialogue),
		"grounding", len(grounding),
		"total", len(messages),
	)
	return messages, nil
}

func fromThreadMessage(msg *thread.Message) *Message {
	return &Message{
		ID:      msg.ID.String(),
		Role:    msg.Role,
		Content: msg.Content,
	}
}
