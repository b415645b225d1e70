// Package chat orchestrates one conversation turn: validate the request,
// resolve the conversation, retrieve context, stream the model's answer and
// persist both sides of the exchange.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/config"
	"github.com/synapse-ai/synapse/internal/conversation"
	"github.com/synapse-ai/synapse/internal/knowledge"
	"github.com/synapse-ai/synapse/internal/rag"
)

// MaxMessageLength bounds the user message in characters.
const MaxMessageLength = 10000

// Request is the body of a chat call.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Model          string `json:"model,omitempty"`
}

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid chat request: %v", e.Fields)
}

// validate normalizes the request in place, applying the default model.
func (r *Request) validate(defaultModel string) error {
	fields := make(map[string]string)

	if r.Message == "" {
		fields["message"] = "Message cannot be empty"
	} else if len([]rune(r.Message)) > MaxMessageLength {
		fields["message"] = fmt.Sprintf("Message must be at most %d characters", MaxMessageLength)
	}

	if r.Model == "" {
		r.Model = defaultModel
	}
	if _, ok := config.SupportedModels[r.Model]; !ok {
		fields["model"] = fmt.Sprintf("Unsupported model: %s", r.Model)
	}

	if r.ConversationID != "" {
		if _, err := uuid.Parse(r.ConversationID); err != nil {
			fields["conversationId"] = "Invalid conversation id"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ConversationStore is the slice of conversation.Store the service uses.
type ConversationStore interface {
	Create(ctx context.Context, userID, title, model string) (*conversation.Conversation, error)
	Get(ctx context.Context, id uuid.UUID, userID string) (*conversation.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
	AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, citations json.RawMessage) (*conversation.Message, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, userID, title string) error
	Touch(ctx context.Context, id uuid.UUID) error
}

// ContextRetriever fetches relevant chunks, satisfied by *rag.Retriever.
type ContextRetriever interface {
	Retrieve(ctx context.Context, userID, query string) ([]knowledge.Match, error)
}

// Service runs chat turns.
type Service struct {
	g             *genkit.Genkit
	conversations ConversationStore
	retriever     ContextRetriever

	defaultModel     string
	historyLimit     int
	retrievalTimeout time.Duration
	logger           *slog.Logger

	// generate is swapped in tests; production uses genkit.
	generate GenerateFunc
}

// GenerateFunc produces the assistant's answer for a prepared turn,
// calling emit per streamed chunk and returning the full text.
type GenerateFunc func(ctx context.Context, t *Turn, emit func(string) error) (string, error)

// Option configures a Service.
type Option func(*Service)

// WithGenerate replaces the model call. Used by tests.
func WithGenerate(fn GenerateFunc) Option {
	return func(s *Service) { s.generate = fn }
}

// NewService creates a Service. A nil logger falls back to slog.Default.
func NewService(g *genkit.Genkit, conversations ConversationStore, retriever ContextRetriever, cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		g:                g,
		conversations:    conversations,
		retriever:        retriever,
		defaultModel:     cfg.DefaultModel,
		historyLimit:     cfg.MaxHistoryMessages,
		retrievalTimeout: time.Duration(cfg.RetrievalTimeoutMs) * time.Millisecond,
		logger:           logger,
	}
	s.generate = s.generateWithGenkit
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Turn is a prepared chat exchange, ready to stream. Citations are known
// before the first token so they can travel in response headers.
type Turn struct {
	Conversation *conversation.Conversation
	Citations    []rag.Citation

	svc          *Service
	userID       string
	userMessage  string
	model        string
	systemPrompt string
	history      []conversation.Message
	firstTurn    bool
}

// Prepare validates the request, resolves or creates the conversation,
// persists the user message and retrieves context for it. A retrieval
// failure degrades to an answer without context instead of failing the
// turn.
func (s *Service) Prepare(ctx context.Context, userID string, req Request) (*Turn, error) {
	if err := req.validate(s.defaultModel); err != nil {
		return nil, err
	}

	conv, err := s.resolveConversation(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	// History is read before the user message is stored, so the new
	// message appears exactly once in the prompt.
	history, err := s.conversations.Messages(ctx, conv.ID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	if _, err := s.conversations.AddMessage(ctx, conv.ID, conversation.RoleUser, req.Message, nil); err != nil {
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	contextText, citations := s.retrieveContext(ctx, userID, req.Message)

	return &Turn{
		Conversation: conv,
		Citations:    citations,
		svc:          s,
		userID:       userID,
		userMessage:  req.Message,
		model:        req.Model,
		systemPrompt: rag.BuildSystemPrompt(contextText),
		history:      history,
		firstTurn:    len(history) == 0,
	}, nil
}

func (s *Service) resolveConversation(ctx context.Context, userID string, req Request) (*conversation.Conversation, error) {
	if req.ConversationID == "" {
		title := truncateRunes(req.Message, 50)
		conv, err := s.conversations.Create(ctx, userID, title, req.Model)
		if err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		return conv, nil
	}

	id, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"conversationId": "Invalid conversation id"}}
	}
	return s.conversations.Get(ctx, id, userID)
}

func (s *Service) retrieveContext(ctx context.Context, userID, message string) (string, []rag.Citation) {
	retrievalCtx, cancel := context.WithTimeout(ctx, s.retrievalTimeout)
	defer cancel()

	matches, err := s.retriever.Retrieve(retrievalCtx, userID, message)
	if err != nil {
		s.logger.Warn("retrieval failed, answering without context",
			"user_id", userID, "error", err)
		return "", nil
	}
	return rag.Assemble(matches)
}

// Stream generates the assistant's answer, calling emit for each text
// chunk as it arrives. After the stream completes the assistant message is
// persisted with the turn's citations and the conversation title is set
// from the first message.
func (t *Turn) Stream(ctx context.Context, emit func(string) error) error {
	text, err := t.svc.generate(ctx, t, emit)
	if err != nil {
		return fmt.Errorf("generating response: %w", err)
	}

	var citationsJSON json.RawMessage
	if len(t.Citations) > 0 {
		citationsJSON, err = json.Marshal(t.Citations)
		if err != nil {
			return fmt.Errorf("marshaling citations: %w", err)
		}
	}
	if _, err := t.svc.conversations.AddMessage(ctx, t.Conversation.ID, conversation.RoleAssistant, text, citationsJSON); err != nil {
		return fmt.Errorf("saving assistant message: %w", err)
	}

	if t.firstTurn {
		title := t.userMessage
		if len([]rune(title)) > 50 {
			title = truncateRunes(title, 47) + "..."
		}
		if err := t.svc.conversations.UpdateTitle(ctx, t.Conversation.ID, t.userID, title); err != nil {
			t.svc.logger.Warn("updating conversation title failed",
				"conversation_id", t.Conversation.ID, "error", err)
		}
	} else if err := t.svc.conversations.Touch(ctx, t.Conversation.ID); err != nil {
		t.svc.logger.Warn("touching conversation failed",
			"conversation_id", t.Conversation.ID, "error", err)
	}

	return nil
}

func (s *Service) generateWithGenkit(ctx context.Context, t *Turn, emit func(string) error) (string, error) {
	messages := make([]*ai.Message, 0, len(t.history)+1)
	for _, m := range t.history {
		if m.Role == conversation.RoleAssistant {
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		} else {
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(t.userMessage)))

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(providerModelName(t.model)),
		ai.WithSystem(t.systemPrompt),
		ai.WithMessages(messages...),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				if err := emit(part.Text); err != nil {
					return err
				}
			}
			return nil
		}),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// providerModelName maps an API model id to its Genkit provider-qualified
// name.
func providerModelName(model string) string {
	switch model {
	case config.ModelClaude:
		return "anthropic/" + config.ModelClaude
	default:
		return "openai/" + config.ModelGPT4o
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
