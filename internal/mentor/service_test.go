package mentor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/Selleo/mentingo-sub006/internal/log"
	"github.com/Selleo/mentingo-sub006/internal/prompt"
	"github.com/Selleo/mentingo-sub006/internal/thread"
	"github.com/Selleo/mentingo-sub006/internal/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockGenerator implements Generator for testing
type mockGenerator struct {
	completeErr error
	generateErr error
	evaluateErr error

	completeResult string
	generateResult string
	chunks         []string
	verdict        *Verdict

	// When set, Evaluate signals evaluateStarted and then blocks until
	// evaluateRelease is closed. Used to hold the thread lock mid-judgement.
	evaluateStarted chan struct{}
	evaluateRelease chan struct{}

	generateCalls int
	evaluateCalls int
}

func (m *mockGenerator) Complete(ctx context.Context, promptText string) (string, error) {
	if m.completeErr != nil {
		return "", m.completeErr
	}
	return m.completeResult, nil
}

func (m *mockGenerator) Generate(ctx context.Context, messages []*prompt.Message, onChunk func(string) error) (string, error) {
	m.generateCalls++
	if m.generateErr != nil {
		return "", m.generateErr
	}
	if onChunk != nil {
		for _, chunk := range m.chunks {
			if err := onChunk(chunk); err != nil {
				return "", err
			}
		}
	}
	return m.generateResult, nil
}

func (m *mockGenerator) Evaluate(ctx context.Context, promptText string) (*Verdict, error) {
	m.evaluateCalls++
	if m.evaluateStarted != nil {
		close(m.evaluateStarted)
	}
	if m.evaluateRelease != nil {
		<-m.evaluateRelease
	}
	if m.evaluateErr != nil {
		return nil, m.evaluateErr
	}
	return m.verdict, nil
}

// mockThreadStore implements ThreadStore for testing. Guarded by a mutex
// because streamed and judged turns touch it from service goroutines.
type mockThreadStore struct {
	getErr        error
	appendTurnErr error
	completeErr   error

	mu          sync.Mutex
	threadsByID map[uuid.UUID]*thread.Thread
	transcript  []*thread.Message

	appendTurnCalls int
	completeCalls   int
	upsertRoleCalls int
	lastAppended    []*thread.Message
}

func (m *mockThreadStore) Create(ctx context.Context, lessonID, userID uuid.UUID, userLanguage string) (*thread.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &thread.Thread{
		ID:           uuid.New(),
		LessonID:     lessonID,
		UserID:       userID,
		UserLanguage: userLanguage,
		Status:       thread.StatusActive,
	}
	if m.threadsByID == nil {
		m.threadsByID = make(map[uuid.UUID]*thread.Thread)
	}
	m.threadsByID[t.ID] = t
	return t, nil
}

func (m *mockThreadStore) Get(ctx context.Context, id uuid.UUID) (*thread.Thread, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threadsByID[id]
	if !ok {
		return nil, thread.ErrThreadNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockThreadStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*thread.Thread, error) {
	var out []*thread.Thread
	for _, t := range m.threadsByID {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockThreadStore) VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error) {
	return nil, nil
}

func (m *mockThreadStore) UpsertRoleMessage(ctx context.Context, threadID uuid.UUID, role thread.Role, content string, tokenCount int) (*thread.Message, error) {
	m.upsertRoleCalls++
	return &thread.Message{ID: uuid.New(), ThreadID: threadID, Role: role, Content: content, TokenCount: tokenCount}, nil
}

func (m *mockThreadStore) AppendTurn(ctx context.Context, threadID uuid.UUID, userMsg, mentorMsg *thread.Message) ([]*thread.Message, error) {
	m.appendTurnCalls++
	if m.appendTurnErr != nil {
		return nil, m.appendTurnErr
	}
	userMsg.ID = uuid.New()
	mentorMsg.ID = uuid.New()
	m.lastAppended = []*thread.Message{userMsg, mentorMsg}
	return m.lastAppended, nil
}

func (m *mockThreadStore) Complete(ctx context.Context, id uuid.UUID) (*thread.Thread, error) {
	m.completeCalls++
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threadsByID[id]
	if !ok {
		return nil, thread.ErrThreadNotFound
	}
	if t.Status != thread.StatusActive {
		return nil, thread.ErrThreadNotActive
	}
	t.Status = thread.StatusCompleted
	cp := *t
	return &cp, nil
}

func (m *mockThreadStore) UserTranscript(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error) {
	return m.transcript, nil
}

// mockBuilder implements PromptBuilder for testing
type mockBuilder struct {
	buildErr error
	messages []*prompt.Message
	calls    int
}

func (m *mockBuilder) Build(ctx context.Context, t *thread.Thread, newUserContent, tempMessageID string) ([]*prompt.Message, error) {
	m.calls++
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	if m.messages != nil {
		return m.messages, nil
	}
	return []*prompt.Message{{ID: tempMessageID, Role: thread.RoleUser, Content: newUserContent}}, nil
}

// mockSummarizer implements Summarizer for testing
type mockSummarizer struct {
	compactErr error
	compacted  bool
	calls      int
}

func (m *mockSummarizer) MaybeCompact(ctx context.Context, t *thread.Thread) (bool, error) {
	m.calls++
	if m.compactErr != nil {
		return false, m.compactErr
	}
	return m.compacted, nil
}

type fixture struct {
	generator  *mockGenerator
	store      *mockThreadStore
	builder    *mockBuilder
	summarizer *mockSummarizer
	svc        *Service
	thread     *thread.Thread
	userID     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	generator := &mockGenerator{generateResult: "mentor reply"}
	store := &mockThreadStore{}
	builder := &mockBuilder{}
	summarizer := &mockSummarizer{}
	svc := NewService(generator, store, builder, summarizer, Config{
		ModelName:   "gemini-2.5-flash",
		TurnTimeout: time.Second,
	}, log.NewNop())
	t.Cleanup(svc.Close)

	userID := uuid.New()
	th, err := store.Create(context.Background(), uuid.New(), userID, "en")
	if err != nil {
		t.Fatalf("creating fixture thread: %v", err)
	}
	return &fixture{
		generator:  generator,
		store:      store,
		builder:    builder,
		summarizer: summarizer,
		svc:        svc,
		thread:     th,
		userID:     userID,
	}
}

func TestChat(t *testing.T) {
	t.Run("persists exactly one user and one mentor message with counted tokens", func(t *testing.T) {
		f := newFixture(t)

		turn, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, "What is recursion?", "temp-1")
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if f.store.appendTurnCalls != 1 {
			t.Fatalf("appendTurnCalls = %d, want 1", f.store.appendTurnCalls)
		}
		if turn.UserMessage.Role != thread.RoleUser || turn.MentorMessage.Role != thread.RoleMentor {
			t.Error("turn roles are wrong")
		}
		if want := token.Count("gemini-2.5-flash", "What is recursion?"); turn.UserMessage.TokenCount != want {
			t.Errorf("user token count = %d, want %d", turn.UserMessage.TokenCount, want)
		}
		if want := token.Count("gemini-2.5-flash", "mentor reply"); turn.MentorMessage.TokenCount != want {
			t.Errorf("mentor token count = %d, want %d", turn.MentorMessage.TokenCount, want)
		}
	})

	t.Run("empty content is rejected before any side effect", func(t *testing.T) {
		f := newFixture(t)

		for _, content := range []string{"", "   \n\t"} {
			if _, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, content, ""); !errors.Is(err, ErrEmptyContent) {
				t.Errorf("content %q: expected ErrEmptyContent, got %v", content, err)
			}
		}
		if f.store.appendTurnCalls != 0 || f.builder.calls != 0 || f.generator.generateCalls != 0 {
			t.Error("rejected turn must not touch the store, builder, or backend")
		}
	})

	t.Run("foreign thread is rejected", func(t *testing.T) {
		f := newFixture(t)

		if _, err := f.svc.Chat(context.Background(), f.thread.ID, uuid.New(), "hi", ""); !errors.Is(err, thread.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("completed thread is rejected with a state error", func(t *testing.T) {
		f := newFixture(t)
		f.thread.Status = thread.StatusCompleted

		if _, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, "hi", ""); !errors.Is(err, thread.ErrThreadNotActive) {
			t.Errorf("expected ErrThreadNotActive, got %v", err)
		}
	})

	t.Run("backend failure persists nothing and hides the raw error", func(t *testing.T) {
		f := newFixture(t)
		f.generator.generateErr = errors.New("quota exceeded: key sk-123")

		_, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, "hi", "")
		if !errors.Is(err, ErrBackend) {
			t.Fatalf("expected ErrBackend, got %v", err)
		}
		if f.store.appendTurnCalls != 0 {
			t.Error("failed turn must not persist messages")
		}
	})

	t.Run("summarization failure still yields a mentor reply", func(t *testing.T) {
		f := newFixture(t)
		f.summarizer.compactErr = errors.New("summary backend down")

		turn, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, "hi", "")
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if turn.MentorMessage.Content != "mentor reply" {
			t.Errorf("reply = %q, want mentor reply despite failed compaction", turn.MentorMessage.Content)
		}
	})

	t.Run("turn racing a judgement cannot land on the completed thread", func(t *testing.T) {
		f := newFixture(t)
		f.generator.verdict = &Verdict{Summary: "done", Score: 60, Passed: true}
		f.generator.evaluateStarted = make(chan struct{})
		f.generator.evaluateRelease = make(chan struct{})

		judgeErr := make(chan error, 1)
		go func() {
			_, err := f.svc.Judge(context.Background(), f.thread.ID, f.userID, LessonContext{Title: "Recursion"})
			judgeErr <- err
		}()
		// The judge now holds the thread lock, parked inside the backend call.
		<-f.generator.evaluateStarted

		chatErr := make(chan error, 1)
		go func() {
			_, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, "one more question", "")
			chatErr <- err
		}()
		// Let the chat pass its synchronous guards and queue on the lock
		// while the thread is still ACTIVE.
		time.Sleep(50 * time.Millisecond)
		close(f.generator.evaluateRelease)

		if err := <-judgeErr; err != nil {
			t.Fatalf("Judge() error = %v", err)
		}
		if err := <-chatErr; !errors.Is(err, thread.ErrThreadNotActive) {
			t.Fatalf("racing Chat() error = %v, want ErrThreadNotActive", err)
		}
		if f.store.appendTurnCalls != 0 {
			t.Errorf("appendTurnCalls = %d, a turn must not persist after judgement", f.store.appendTurnCalls)
		}
		if f.generator.generateCalls != 0 {
			t.Errorf("generateCalls = %d, the rejected turn must not reach the backend", f.generator.generateCalls)
		}
	})

	t.Run("compaction runs before every turn", func(t *testing.T) {
		f := newFixture(t)

		if _, err := f.svc.Chat(context.Background(), f.thread.ID, f.userID, "hi", ""); err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if f.summarizer.calls != 1 {
			t.Errorf("summarizer calls = %d, want 1", f.summarizer.calls)
		}
	})
}

func TestStreamChat(t *testing.T) {
	t.Run("delivers chunks then resolves after persistence", func(t *testing.T) {
		f := newFixture(t)
		f.generator.chunks = []string{"men", "tor ", "reply"}

		stream, err := f.svc.StreamChat(context.Background(), f.thread.ID, f.userID, "hi", "temp-9")
		if err != nil {
			t.Fatalf("StreamChat() error = %v", err)
		}

		var received string
		for chunk := range stream.Chunks {
			received += chunk
		}
		if received != "mentor reply" {
			t.Errorf("streamed %q, want mentor reply", received)
		}

		result := <-stream.Result
		if result.Err != nil {
			t.Fatalf("stream result error = %v", result.Err)
		}
		if f.store.appendTurnCalls != 1 {
			t.Errorf("appendTurnCalls = %d, want exactly 1", f.store.appendTurnCalls)
		}
		if result.Turn.UserMessage.Content != "hi" || result.Turn.MentorMessage.Content != "mentor reply" {
			t.Error("resolved turn does not carry the persisted pair")
		}
	})

	t.Run("no stream is opened for an inactive thread", func(t *testing.T) {
		f := newFixture(t)
		f.thread.Status = thread.StatusCompleted

		if _, err := f.svc.StreamChat(context.Background(), f.thread.ID, f.userID, "hi", ""); !errors.Is(err, thread.ErrThreadNotActive) {
			t.Errorf("expected ErrThreadNotActive, got %v", err)
		}
		if f.generator.generateCalls != 0 {
			t.Error("guard failure must not reach the backend")
		}
	})

	t.Run("client disconnect still persists the full turn", func(t *testing.T) {
		f := newFixture(t)
		f.generator.chunks = []string{"a", "b", "c"}

		ctx, cancel := context.WithCancel(context.Background())
		stream, err := f.svc.StreamChat(ctx, f.thread.ID, f.userID, "hi", "")
		if err != nil {
			t.Fatalf("StreamChat() error = %v", err)
		}

		// Disconnect without reading any chunks.
		cancel()

		result := <-stream.Result
		if result.Err != nil {
			t.Fatalf("stream result error = %v", result.Err)
		}
		if f.store.appendTurnCalls != 1 {
			t.Errorf("appendTurnCalls = %d, want 1 despite disconnect", f.store.appendTurnCalls)
		}
		if result.Turn.MentorMessage.Content != "mentor reply" {
			t.Error("persisted reply must be the complete text, not a partial stream")
		}
	})

	t.Run("backend failure resolves the result with an error", func(t *testing.T) {
		f := newFixture(t)
		f.generator.generateErr = errors.New("backend down")

		stream, err := f.svc.StreamChat(context.Background(), f.thread.ID, f.userID, "hi", "")
		if err != nil {
			t.Fatalf("StreamChat() error = %v", err)
		}
		for range stream.Chunks {
		}
		result := <-stream.Result
		if !errors.Is(result.Err, ErrBackend) {
			t.Errorf("expected ErrBackend, got %v", result.Err)
		}
		if f.store.appendTurnCalls != 0 {
			t.Error("failed stream must not persist messages")
		}
	})
}

func TestJudge(t *testing.T) {
	lesson := LessonContext{Title: "Recursion", Instructions: "explain recursion", Conditions: "mentions base case"}

	t.Run("scores, completes the thread, and fills derived fields", func(t *testing.T) {
		f := newFixture(t)
		f.generator.verdict = &Verdict{Summary: "solid work", Score: 80, Passed: true}
		f.store.transcript = []*thread.Message{
			{Role: thread.RoleUser, Content: "recursion is self-reference with a base case"},
		}

		judgement, err := f.svc.Judge(context.Background(), f.thread.ID, f.userID, lesson)
		if err != nil {
			t.Fatalf("Judge() error = %v", err)
		}
		if judgement.Score != 80 || !judgement.Passed {
			t.Errorf("judgement = %+v, want score 80 passed", judgement)
		}
		if judgement.Percentage != 80 {
			t.Errorf("percentage = %f, want 80", judgement.Percentage)
		}
		if judgement.MinScore != JudgeMinScore || judgement.MaxScore != JudgeMaxScore {
			t.Error("score bounds not filled")
		}
		if judgement.Status != thread.StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", judgement.Status)
		}
		if f.thread.Status != thread.StatusCompleted {
			t.Error("thread must transition to COMPLETED")
		}
	})

	t.Run("second judgement fails with a state error", func(t *testing.T) {
		f := newFixture(t)
		f.generator.verdict = &Verdict{Summary: "ok", Score: 70, Passed: true}

		if _, err := f.svc.Judge(context.Background(), f.thread.ID, f.userID, lesson); err != nil {
			t.Fatalf("first Judge() error = %v", err)
		}
		if _, err := f.svc.Judge(context.Background(), f.thread.ID, f.userID, lesson); !errors.Is(err, thread.ErrThreadNotActive) {
			t.Errorf("second Judge(): expected ErrThreadNotActive, got %v", err)
		}
		if f.generator.evaluateCalls != 1 {
			t.Errorf("evaluateCalls = %d, the second call must not reach the backend", f.generator.evaluateCalls)
		}
	})

	t.Run("ownership is enforced", func(t *testing.T) {
		f := newFixture(t)

		if _, err := f.svc.Judge(context.Background(), f.thread.ID, uuid.New(), lesson); !errors.Is(err, thread.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("backend failure leaves the thread active", func(t *testing.T) {
		f := newFixture(t)
		f.generator.evaluateErr = errors.New("backend down")

		if _, err := f.svc.Judge(context.Background(), f.thread.ID, f.userID, lesson); !errors.Is(err, ErrBackend) {
			t.Errorf("expected ErrBackend, got %v", err)
		}
		if f.thread.Status != thread.StatusActive {
			t.Error("failed judgement must not complete the thread")
		}
	})

	t.Run("out-of-range scores are clamped", func(t *testing.T) {
		f := newFixture(t)
		f.generator.verdict = &Verdict{Summary: "???", Score: 250, Passed: true}

		judgement, err := f.svc.Judge(context.Background(), f.thread.ID, f.userID, lesson)
		if err != nil {
			t.Fatalf("Judge() error = %v", err)
		}
		if judgement.Score != JudgeMaxScore {
			t.Errorf("score = %d, want clamped to %d", judgement.Score, JudgeMaxScore)
		}
	})
}

func TestStartThread(t *testing.T) {
	t.Run("seeds the system message", func(t *testing.T) {
		f := newFixture(t)

		th, err := f.svc.StartThread(context.Background(), uuid.New(), f.userID, "en", "You are a patient tutor.")
		if err != nil {
			t.Fatalf("StartThread() error = %v", err)
		}
		if th.Status != thread.StatusActive {
			t.Errorf("status = %s, want ACTIVE", th.Status)
		}
		if f.store.upsertRoleCalls != 1 {
			t.Errorf("upsertRoleCalls = %d, want 1", f.store.upsertRoleCalls)
		}
	})

	t.Run("skips the system message when no prompt is given", func(t *testing.T) {
		f := newFixture(t)

		if _, err := f.svc.StartThread(context.Background(), uuid.New(), f.userID, "en", ""); err != nil {
			t.Fatalf("StartThread() error = %v", err)
		}
		if f.store.upsertRoleCalls != 0 {
			t.Errorf("upsertRoleCalls = %d, want 0", f.store.upsertRoleCalls)
		}
	})
}
