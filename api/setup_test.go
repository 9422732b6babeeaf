package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/log"
	"github.com/Selleo/mentingo-sub006/internal/mentor"
	"github.com/Selleo/mentingo-sub006/internal/prompt"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// Test doubles for the mentor service dependencies. The service itself is
// real; only the backend and persistence are substituted.

type stubGenerator struct {
	generateErr error
	evaluateErr error
	reply       string
	chunks      []string
	verdict     *mentor.Verdict
}

func (s *stubGenerator) Complete(ctx context.Context, promptText string) (string, error) {
	return s.reply, nil
}

func (s *stubGenerator) Generate(ctx context.Context, messages []*prompt.Message, onChunk func(string) error) (string, error) {
	if s.generateErr != nil {
		return "", s.generateErr
	}
	if onChunk != nil {
		for _, chunk := range s.chunks {
			if err := onChunk(chunk); err != nil {
				return "", err
			}
		}
	}
	return s.reply, nil
}

func (s *stubGenerator) Evaluate(ctx context.Context, promptText string) (*mentor.Verdict, error) {
	if s.evaluateErr != nil {
		return nil, s.evaluateErr
	}
	return s.verdict, nil
}

type stubThreadStore struct {
	threads map[uuid.UUID]*thread.Thread
}

func newStubThreadStore() *stubThreadStore {
	return &stubThreadStore{threads: make(map[uuid.UUID]*thread.Thread)}
}

func (s *stubThreadStore) Create(ctx context.Context, lessonID, userID uuid.UUID, userLanguage string) (*thread.Thread, error) {
	t := &thread.Thread{
		ID:           uuid.New(),
		LessonID:     lessonID,
		UserID:       userID,
		UserLanguage: userLanguage,
		Status:       thread.StatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.threads[t.ID] = t
	return t, nil
}

func (s *stubThreadStore) Get(ctx context.Context, id uuid.UUID) (*thread.Thread, error) {
	t, ok := s.threads[id]
	if !ok {
		return nil, thread.ErrThreadNotFound
	}
	return t, nil
}

func (s *stubThreadStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*thread.Thread, error) {
	var out []*thread.Thread
	for _, t := range s.threads {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubThreadStore) VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error) {
	return nil, nil
}

func (s *stubThreadStore) UpsertRoleMessage(ctx context.Context, threadID uuid.UUID, role thread.Role, content string, tokenCount int) (*thread.Message, error) {
	return &thread.Message{ID: uuid.New(), ThreadID: threadID, Role: role, Content: content, TokenCount: tokenCount}, nil
}

func (s *stubThreadStore) AppendTurn(ctx context.Context, threadID uuid.UUID, userMsg, mentorMsg *thread.Message) ([]*thread.Message, error) {
	userMsg.ID = uuid.New()
	mentorMsg.ID = uuid.New()
	return []*thread.Message{userMsg, mentorMsg}, nil
}

func (s *stubThreadStore) Complete(ctx context.Context, id uuid.UUID) (*thread.Thread, error) {
	t, ok := s.threads[id]
	if !ok {
		return nil, thread.ErrThreadNotFound
	}
	if t.Status != thread.StatusActive {
		return nil, thread.ErrThreadNotActive
	}
	t.Status = thread.StatusCompleted
	return t, nil
}

func (s *stubThreadStore) UserTranscript(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error) {
	return []*thread.Message{{Role: thread.RoleUser, Content: "my answer"}}, nil
}

type stubBuilder struct{}

func (s *stubBuilder) Build(ctx context.Context, t *thread.Thread, newUserContent, tempMessageID string) ([]*prompt.Message, error) {
	return []*prompt.Message{{ID: tempMessageID, Role: thread.RoleUser, Content: newUserContent}}, nil
}

type stubSummarizer struct{}

func (s *stubSummarizer) MaybeCompact(ctx context.Context, t *thread.Thread) (bool, error) {
	return false, nil
}

type testEnv struct {
	server  *Server
	svc     *mentor.Service
	store   *stubThreadStore
	gen     *stubGenerator
	userID  uuid.UUID
	thread  *thread.Thread
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gen := &stubGenerator{reply: "mentor reply", verdict: &mentor.Verdict{Summary: "good", Score: 90, Passed: true}}
	store := newStubThreadStore()
	svc := mentor.NewService(gen, store, &stubBuilder{}, &stubSummarizer{}, mentor.Config{
		ModelName:   "gemini-2.5-flash",
		TurnTimeout: time.Second,
	}, log.NewNop())
	t.Cleanup(svc.Close)

	userID := uuid.New()
	th, err := store.Create(context.Background(), uuid.New(), userID, "en")
	if err != nil {
		t.Fatalf("creating test thread: %v", err)
	}

	server := NewServer(svc, nil, nil, log.NewNop())
	return &testEnv{
		server:  server,
		svc:     svc,
		store:   store,
		gen:     gen,
		userID:  userID,
		thread:  th,
		handler: server.Handler(),
	}
}

func (e *testEnv) doAs(userID uuid.UUID, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(UserIDHeader, userID.String())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if authenticated {
		req.Header.Set(UserIDHeader, e.userID.String())
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
