package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/config"
	"github.com/synapse-ai/synapse/internal/conversation"
	"github.com/synapse-ai/synapse/internal/knowledge"
	"github.com/synapse-ai/synapse/internal/log"
)

type fakeConversations struct {
	conversations map[uuid.UUID]*conversation.Conversation
	messages      map[uuid.UUID][]conversation.Message
	titles        map[uuid.UUID]string
	touched       []uuid.UUID

	createErr error
	msgErr    error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		conversations: make(map[uuid.UUID]*conversation.Conversation),
		messages:      make(map[uuid.UUID][]conversation.Message),
		titles:        make(map[uuid.UUID]string),
	}
}

func (f *fakeConversations) Create(ctx context.Context, userID, title, model string) (*conversation.Conversation, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	conv := &conversation.Conversation{ID: uuid.New(), UserID: userID, Title: title, Model: model}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeConversations) Get(ctx context.Context, id uuid.UUID, userID string) (*conversation.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, conversation.ErrNotFound
	}
	return conv, nil
}

func (f *fakeConversations) Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	msgs := f.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeConversations) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, citations json.RawMessage) (*conversation.Message, error) {
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	msg := conversation.Message{
		ID: uuid.New(), ConversationID: conversationID,
		Role: role, Content: content, Citations: citations,
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return &msg, nil
}

func (f *fakeConversations) UpdateTitle(ctx context.Context, id uuid.UUID, userID, title string) error {
	f.titles[id] = title
	return nil
}

func (f *fakeConversations) Touch(ctx context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

type stubRetriever struct {
	matches []knowledge.Match
	err     error
}

func (s *stubRetriever) Retrieve(ctx context.Context, userID, query string) ([]knowledge.Match, error) {
	return s.matches, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultModel:       config.ModelGPT4o,
		MaxHistoryMessages: config.DefaultMaxHistoryMessages,
		RetrievalTimeoutMs: 1000,
	}
}

func newTestService(conversations ConversationStore, retriever ContextRetriever, generated string) *Service {
	s := NewService(nil, conversations, retriever, testConfig(), log.NewNop())
	s.generate = func(ctx context.Context, t *Turn, emit func(string) error) (string, error) {
		for _, chunk := range []string{generated[:len(generated)/2], generated[len(generated)/2:]} {
			if err := emit(chunk); err != nil {
				return "", err
			}
		}
		return generated, nil
	}
	return s
}

func TestPrepareValidation(t *testing.T) {
	s := newTestService(newFakeConversations(), &stubRetriever{}, "ok")

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"empty message", Request{Message: ""}, "message"},
		{"too long", Request{Message: strings.Repeat("a", MaxMessageLength+1)}, "message"},
		{"bad model", Request{Message: "hi", Model: "gpt-2"}, "model"},
		{"bad conversation id", Request{Message: "hi", ConversationID: "not-a-uuid"}, "conversationId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Prepare(context.Background(), "user-1", tt.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Prepare = %v, want ValidationError", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %q", ve.Fields, tt.field)
			}
		})
	}
}

func TestPrepareCreatesConversation(t *testing.T) {
	conversations := newFakeConversations()
	s := newTestService(conversations, &stubRetriever{}, "ok")

	long := strings.Repeat("x", 80)
	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: long})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if turn.Conversation.Title != strings.Repeat("x", 50) {
		t.Errorf("title = %q", turn.Conversation.Title)
	}
	if turn.Conversation.Model != config.ModelGPT4o {
		t.Errorf("model = %q, want default", turn.Conversation.Model)
	}

	msgs := conversations.messages[turn.Conversation.ID]
	if len(msgs) != 1 || msgs[0].Role != conversation.RoleUser || msgs[0].Content != long {
		t.Errorf("stored messages = %+v", msgs)
	}
}

func TestPrepareRejectsForeignConversation(t *testing.T) {
	conversations := newFakeConversations()
	conv, _ := conversations.Create(context.Background(), "owner", "t", config.ModelGPT4o)
	s := newTestService(conversations, &stubRetriever{}, "ok")

	_, err := s.Prepare(context.Background(), "intruder", Request{
		Message:        "hi",
		ConversationID: conv.ID.String(),
	})
	if !errors.Is(err, conversation.ErrNotFound) {
		t.Fatalf("Prepare = %v, want ErrNotFound", err)
	}
}

func TestPrepareRetrievalFailureDegrades(t *testing.T) {
	s := newTestService(newFakeConversations(), &stubRetriever{err: errors.New("db down")}, "ok")

	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: "question"})
	if err != nil {
		t.Fatalf("Prepare must not fail on retrieval error: %v", err)
	}
	if len(turn.Citations) != 0 {
		t.Errorf("citations = %d, want 0", len(turn.Citations))
	}
	if strings.Contains(turn.systemPrompt, "--- CONTEXT ---") {
		t.Error("system prompt must carry no context after retrieval failure")
	}
}

func TestPrepareBuildsContextAndCitations(t *testing.T) {
	retriever := &stubRetriever{matches: []knowledge.Match{
		{Content: "relevant stuff", Score: 0.8, DocumentTitle: "Doc", SourceType: "notion", SourceName: "WS"},
	}}
	s := newTestService(newFakeConversations(), retriever, "ok")

	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: "question"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(turn.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(turn.Citations))
	}
	if !strings.Contains(turn.systemPrompt, "relevant stuff") {
		t.Error("system prompt missing retrieved context")
	}
}

func TestStreamPersistsAssistantMessage(t *testing.T) {
	conversations := newFakeConversations()
	retriever := &stubRetriever{matches: []knowledge.Match{
		{Content: "ctx", Score: 0.9, DocumentTitle: "Doc", SourceType: "notion", SourceName: "WS"},
	}}
	s := newTestService(conversations, retriever, "the answer")

	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: "question"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var streamed strings.Builder
	if err := turn.Stream(context.Background(), func(text string) error {
		streamed.WriteString(text)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if streamed.String() != "the answer" {
		t.Errorf("streamed = %q", streamed.String())
	}

	msgs := conversations.messages[turn.Conversation.ID]
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	assistant := msgs[1]
	if assistant.Role != conversation.RoleAssistant || assistant.Content != "the answer" {
		t.Errorf("assistant message = %+v", assistant)
	}
	if assistant.Citations == nil {
		t.Fatal("assistant message missing citations")
	}
	var parsed []map[string]any
	if err := json.Unmarshal(assistant.Citations, &parsed); err != nil || len(parsed) != 1 {
		t.Errorf("citations json = %s", assistant.Citations)
	}
}

func TestStreamFirstTurnTitle(t *testing.T) {
	conversations := newFakeConversations()
	s := newTestService(conversations, &stubRetriever{}, "ok")

	long := strings.Repeat("y", 60)
	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: long})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := turn.Stream(context.Background(), func(string) error { return nil }); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	want := strings.Repeat("y", 47) + "..."
	if got := conversations.titles[turn.Conversation.ID]; got != want {
		t.Errorf("title = %q, want %q", got, want)
	}
}

func TestStreamShortFirstMessageKeepsFullTitle(t *testing.T) {
	conversations := newFakeConversations()
	s := newTestService(conversations, &stubRetriever{}, "ok")

	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: "short question"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := turn.Stream(context.Background(), func(string) error { return nil }); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got := conversations.titles[turn.Conversation.ID]; got != "short question" {
		t.Errorf("title = %q", got)
	}
}

func TestStreamLaterTurnTouchesConversation(t *testing.T) {
	conversations := newFakeConversations()
	conv, _ := conversations.Create(context.Background(), "user-1", "t", config.ModelGPT4o)
	conversations.messages[conv.ID] = []conversation.Message{
		{Role: conversation.RoleUser, Content: "earlier"},
		{Role: conversation.RoleAssistant, Content: "reply"},
	}
	s := newTestService(conversations, &stubRetriever{}, "ok")

	turn, err := s.Prepare(context.Background(), "user-1", Request{
		Message:        "followup",
		ConversationID: conv.ID.String(),
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if turn.firstTurn {
		t.Error("turn with history must not be first")
	}
	if err := turn.Stream(context.Background(), func(string) error { return nil }); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if _, renamed := conversations.titles[conv.ID]; renamed {
		t.Error("later turns must not rename the conversation")
	}
	if len(conversations.touched) != 1 {
		t.Errorf("touched = %v", conversations.touched)
	}
}

func TestStreamGenerateError(t *testing.T) {
	conversations := newFakeConversations()
	s := NewService(nil, conversations, &stubRetriever{}, testConfig(), log.NewNop())
	s.generate = func(ctx context.Context, t *Turn, emit func(string) error) (string, error) {
		return "", errors.New("model unavailable")
	}

	turn, err := s.Prepare(context.Background(), "user-1", Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err = turn.Stream(context.Background(), func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("Stream = %v", err)
	}

	// Only the user message is stored.
	if msgs := conversations.messages[turn.Conversation.ID]; len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}
}

func TestProviderModelName(t *testing.T) {
	if got := providerModelName(config.ModelGPT4o); got != "openai/gpt-4o" {
		t.Errorf("providerModelName(gpt-4o) = %q", got)
	}
	if got := providerModelName(config.ModelClaude); got != "anthropic/"+config.ModelClaude {
		t.Errorf("providerModelName(claude) = %q", got)
	}
}
