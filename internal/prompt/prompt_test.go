package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Selleo/mentingo-sub006/internal/log"
	"github.com/Selleo/mentingo-sub006/internal/retrieval"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// mockThreadReader implements ThreadReader for testing
type mockThreadReader struct {
	messages []*thread.Message
	err      error
}

func (m *mockThreadReader) VisibleMessages(ctx context.Context, threadID uuid.UUID) ([]*thread.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.messages, nil
}

// mockRetriever implements Retriever for testing
type mockRetriever struct {
	entries   []*retrieval.Entry
	err       error
	lastQuery string
}

func (m *mockRetriever) Context(ctx context.Context, queryText string, lessonID uuid.UUID, neighbourCount int) ([]*retrieval.Entry, error) {
	m.lastQuery = queryText
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func testThread() *thread.Thread {
	return &thread.Thread{
		ID:           uuid.New(),
		LessonID:     uuid.New(),
		UserID:       uuid.New(),
		UserLanguage: "en",
		Status:       thread.StatusActive,
	}
}

func TestBuildOrdering(t *testing.T) {
	// Full thread: SYSTEM, SUMMARY, three dialogue messages, plus grounding.
	reader := &mockThreadReader{messages: []*thread.Message{
		{ID: uuid.New(), Role: thread.RoleSystem, Content: "persona"},
		{ID: uuid.New(), Role: thread.RoleSummary, Content: "running summary"},
		{ID: uuid.New(), Role: thread.RoleUser, Content: "q1"},
		{ID: uuid.New(), Role: thread.RoleMentor, Content: "a1"},
		{ID: uuid.New(), Role: thread.RoleUser, Content: "q2"},
	}}
	retriever := &mockRetriever{entries: []*retrieval.Entry{
		{DocumentID: uuid.UUID{1}, ChunkIndex: 0, Content: "chunk a"},
		{DocumentID: uuid.UUID{1}, ChunkIndex: 1, Content: "chunk b"},
	}}
	builder := NewBuilder(reader, retriever, 2, log.NewNop())

	messages, err := builder.Build(context.Background(), testThread(), "What is recursion?", "temp-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	wantOrder := []struct {
		role      thread.Role
		content   string
		grounding bool
	}{
		{thread.RoleSystem, "persona", false},
		{thread.RoleSummary, "running summary", false},
		{thread.RoleUser, "q1", false},
		{thread.RoleMentor, "a1", false},
		{thread.RoleUser, "q2", false},
		{thread.RoleUser, "What is recursion?", false},
		{thread.RoleSystem, "chunk a", true},
		{thread.RoleSystem, "chunk b", true},
	}
	if len(messages) != len(wantOrder) {
		t.Fatalf("got %d messages, want %d", len(messages), len(wantOrder))
	}
	for i, want := range wantOrder {
		got := messages[i]
		if got.Role != want.role || got.Content != want.content || got.Grounding != want.grounding {
			t.Errorf("messages[%d] = {%s %q grounding=%v}, want {%s %q grounding=%v}",
				i, got.Role, got.Content, got.Grounding, want.role, want.content, want.grounding)
		}
	}
}

func TestBuildNewUserTurnCarriesTempID(t *testing.T) {
	builder := NewBuilder(&mockThreadReader{}, &mockRetriever{}, 2, log.NewNop())

	messages, err := builder.Build(context.Background(), testThread(), "hello", "temp-42")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	if messages[0].ID != "temp-42" {
		t.Errorf("new user turn ID = %s, want temp-42", messages[0].ID)
	}
}

func TestBuildRetrievalQuery(t *testing.T) {
	t.Run("concatenates new content with last history entry", func(t *testing.T) {
		reader := &mockThreadReader{messages: []*thread.Message{
			{ID: uuid.New(), Role: thread.RoleUser, Content: "q1"},
			{ID: uuid.New(), Role: thread.RoleMentor, Content: "last answer"},
		}}
		retriever := &mockRetriever{}
		builder := NewBuilder(reader, retriever, 2, log.NewNop())

		if _, err := builder.Build(context.Background(), testThread(), "follow-up", "t1"); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if retriever.lastQuery != "follow-up\nlast answer" {
			t.Errorf("query = %q, want new content joined with last history entry", retriever.lastQuery)
		}
	})

	t.Run("uses new content alone on empty history", func(t *testing.T) {
		retriever := &mockRetriever{}
		builder := NewBuilder(&mockThreadReader{}, retriever, 2, log.NewNop())

		if _, err := builder.Build(context.Background(), testThread(), "opening question", "t1"); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if retriever.lastQuery != "opening question" {
			t.Errorf("query = %q, want just the new content", retriever.lastQuery)
		}
	})

	t.Run("summary is not treated as a history entry for the query", func(t *testing.T) {
		reader := &mockThreadReader{messages: []*thread.Message{
			{ID: uuid.New(), Role: thread.RoleSystem, Content: "persona"},
			{ID: uuid.New(), Role: thread.RoleSummary, Content: "summary"},
		}}
		retriever := &mockRetriever{}
		builder := NewBuilder(reader, retriever, 2, log.NewNop())

		if _, err := builder.Build(context.Background(), testThread(), "question", "t1"); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if retriever.lastQuery != "question" {
			t.Errorf("query = %q, SYSTEM and SUMMARY must not leak into the retrieval query", retriever.lastQuery)
		}
	})
}

func TestBuildErrors(t *testing.T) {
	t.Run("history load failure propagates", func(t *testing.T) {
		loadErr := errors.New("db down")
		builder := NewBuilder(&mockThreadReader{err: loadErr}, &mockRetriever{}, 2, log.NewNop())

		if _, err := builder.Build(context.Background(), testThread(), "q", "t1"); !errors.Is(err, loadErr) {
			t.Errorf("expected wrapped %v, got %v", loadErr, err)
		}
	})

	t.Run("retriever failure propagates", func(t *testing.T) {
		retErr := errors.New("search down")
		builder := NewBuilder(&mockThreadReader{}, &mockRetriever{err: retErr}, 2, log.NewNop())

		if _, err := builder.Build(context.Background(), testThread(), "q", "t1"); !errors.Is(err, retErr) {
			t.Errorf("expected wrapped %v, got %v", retErr, err)
		}
	})
}
