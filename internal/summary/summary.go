// Package summary compacts a thread's dialogue into a single running
// SUMMARY message once the visible token sum crosses a threshold.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/thread"
	"github.com/Selleo/mentingo-sub006/internal/token"
)

// summaryPrompt parameterizes the compaction call by target language. The
// %s placeholders are (1) language, (2) rendered conversation.
const summaryPrompt = `You are maintaining a running summary of a tutoring conversation between a student and an AI mentor.

Rules:
- Write a single narrative summary in %s.
- Preserve what the student asked, what they struggled with, and what the mentor explained.
- Preserve any facts about the student's progress or misconceptions.
- Keep it under 300 words.
- Output plain prose only, no headings or lists.

Conversation:
%s

Summary:`

// Completer produces finished text for a prompt. Implemented by the
// completion service; failures here are suppressed, not propagated.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ThreadStore is the persistence surface compaction needs.
type ThreadStore interface {
	VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error)
	DialogueTokens(ctx context.Context, threadID uuid.UUID) (int, error)
	Compact(ctx context.Context, threadID uuid.UUID, summaryContent string, summaryTokens int) error
}

// Service triggers and applies history compaction. Callers are expected to
// hold the thread's turn serialization while invoking it.
type Service struct {
	completer       Completer
	threads         ThreadStore
	modelName       string
	thresholdTokens int
	logger          *slog.Logger
}

func New(completer Completer, threads ThreadStore, modelName string, thresholdTokens int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		completer:       completer,
		threads:         threads,
		modelName:       modelName,
		thresholdTokens: thresholdTokens,
		logger:          logger,
	}
}

// MaybeCompact checks the visible dialogue token sum against the threshold
// and, when exceeded, folds the history into the SUMMARY message and
// archives the folded dialogue in one atomic step.
//
// A failed summary generation is suppressed: the turn proceeds with the
// history as-is and the next over-threshold turn retries. Store failures
// propagate. Returns whether a compaction was applied.
func (s *Service) MaybeCompact(ctx context.Context, t *thread.Thread) (bool, error) {
	total, err := s.threads.DialogueTokens(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("checking compaction threshold: %w", err)
	}
	if total <= s.thresholdTokens {
		return false, nil
	}

	messages, err := s.threads.VisibleMessages(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("loading history for compaction: %w", err)
	}
	rendered := renderHistory(messages)
	if rendered == "" {
		return false, nil
	}

	prompt := fmt.Sprintf(summaryPrompt, thread.LanguageName(t.UserLanguage), rendered)
	summaryText, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("summary generation failed, keeping history uncompacted",
			"thread_id", t.ID,
			"dialogue_tokens", total,
			"error", err,
		)
		return false, nil
	}
	summaryText = strings.TrimSpace(summaryText)
	if summaryText == "" {
		s.logger.Warn("summary generation returned empty text, keeping history uncompacted", "thread_id", t.ID)
		return false, nil
	}

	summaryTokens := token.Count(s.modelName, summaryText)
	if err := s.threads.Compact(ctx, t.ID, summaryText, summaryTokens); err != nil {
		return false, fmt.Errorf("applying compaction: %w", err)
	}

	s.logger.Info("compacted thread history",
		"thread_id", t.ID,
		"dialogue_tokens", total,
		"summary_tokens", summaryTokens,
	)
	return true, nil
}

// renderHistory flattens the visible messages into "role: content" lines.
// The prior summary is included so compaction stays monotonic. The SYSTEM
// persona is static instruction text, not conversation, and is excluded;
// already archived messages never reach this function.
func renderHistory(messages []*thread.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Content == "" || msg.Role == thread.RoleSystem {
			continue
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

