package mentor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// Score bounds for every judgement.
const (
	JudgeMinScore = 0
	JudgeMaxScore = 100
)

// judgePrompt parameterizes the evaluation. Placeholders: lesson title,
// lesson instructions, passing conditions, answer language, transcript.
const judgePrompt = `You are grading a student's side of a tutoring conversation.

Lesson: %s
Instructions for the lesson:
%s
Passing conditions:
%s

Grade ONLY the student's messages below. Mentor replies are not part of the
transcript and must not influence the score.

Rules:
- "score" is an integer from 0 to 100 reflecting how well the student met the passing conditions.
- "passed" is true only if the passing conditions are satisfied.
- "summary" is a short assessment of the student's performance, written in %s.

Student transcript:
%s`

// LessonContext carries the lesson metadata the judge grades against.
// Supplied by the caller as opaque strings.
type LessonContext struct {
	Title        string
	Instructions string
	Conditions   string
}

// Judgement is the terminal evaluation of a thread.
type Judgement struct {
	Summary    string  `json:"summary"`
	Score      int     `json:"score"`
	MinScore   int     `json:"minScore"`
	MaxScore   int     `json:"maxScore"`
	Passed     bool    `json:"passed"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
}

// Judge scores the student's contributions and completes the thread. The
// judgement is terminal: a second call fails with a state error because the
// thread is no longer ACTIVE.
func (s *Service) Judge(ctx context.Context, threadID, userID uuid.UUID, lesson LessonContext) (*Judgement, error) {
	release := s.locks.acquire(threadID)
	defer release()

	t, err := s.loadOwned(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	if !t.Active() {
		return nil, thread.ErrThreadNotActive
	}

	transcript, err := s.threads.UserTranscript(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading transcript for judgement: %w", err)
	}
	var lines []string
	for _, msg := range transcript {
		if msg.Content != "" {
			lines = append(lines, msg.Content)
		}
	}

	promptText := fmt.Sprintf(judgePrompt,
		lesson.Title,
		lesson.Instructions,
		lesson.Conditions,
		thread.LanguageName(t.UserLanguage),
		strings.Join(lines, "\n"),
	)

	verdict, err := s.generator.Evaluate(ctx, promptText)
	if err != nil {
		s.logger.Error("judge backend failed", "thread_id", threadID, "error", err)
		return nil, ErrBackend
	}

	score := verdict.Score
	if score < JudgeMinScore {
		score = JudgeMinScore
	}
	if score > JudgeMaxScore {
		score = JudgeMaxScore
	}

	completed, err := s.threads.Complete(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("completing judged thread: %w", err)
	}

	s.logger.Info("thread judged",
		"thread_id", threadID,
		"score", score,
		"passed", verdict.Passed,
	)
	return &Judgement{
		Summary:    verdict.Summary,
		Score:      score,
		MinScore:   JudgeMinScore,
		MaxScore:   JudgeMaxScore,
		Passed:     verdict.Passed,
		Percentage: float64(score) / float64(JudgeMaxScore) * 100,
		Status:     completed.Status,
	}, nil
}
