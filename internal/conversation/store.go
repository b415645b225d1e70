package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations and messages. Reads and writes are scoped
// to the owning user where a user id is taken.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default.
func NewStore(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new conversation.
func (s *Store) Create(ctx context.Context, userID, title, model string) (*Conversation, error) {
	conv := &Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Model:  model,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, title, model)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		conv.ID, userID, title, model).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created", "id", conv.ID, "user_id", userID, "model", model)
	return conv, nil
}

// Get returns the user's conversation or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID, userID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, model, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Model, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation %s: %w", id, err)
	}
	return &conv, nil
}

// List returns the user's conversations, most recently updated first, each
// with its message count and the content of its latest message.
func (s *Store) List(ctx context.Context, userID string) ([]ListItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.user_id, c.title, c.model, c.created_at, c.updated_at,
		       count(m.id),
		       coalesce((
		           SELECT content FROM messages
		           WHERE conversation_id = c.id
		           ORDER BY created_at DESC LIMIT 1
		       ), '')
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.Title, &it.Model, &it.CreatedAt, &it.UpdatedAt,
			&it.MessageCount, &it.LastMessage); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}
	return items, nil
}

// Delete removes the user's conversation and, via cascade, its messages.
// Returns ErrNotFound when nothing was deleted.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTitle renames the user's conversation. Returns ErrNotFound when the
// conversation is not theirs.
func (s *Store) UpdateTitle(ctx context.Context, id uuid.UUID, userID, title string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET title = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID, title)
	if err != nil {
		return fmt.Errorf("updating conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch bumps updated_at so the conversation sorts to the top of listings.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touching conversation %s: %w", id, err)
	}
	return nil
}

// AddMessage appends a message to the conversation. citations may be nil.
func (s *Store) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, citations json.RawMessage) (*Message, error) {
	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Citations:      citations,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, citations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, conversationID, role, content, citations).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding message to conversation %s: %w", conversationID, err)
	}
	return msg, nil
}

// Messages returns the conversation's messages in chronological order.
// When limit is positive only the latest limit messages are returned, still
// oldest first.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, role, content, citations, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id`
	args := []any{conversationID}
	if limit > 0 {
		query = `
			SELECT id, conversation_id, role, content, citations, created_at
			FROM (
				SELECT id, conversation_id, role, content, citations, created_at
				FROM messages
				WHERE conversation_id = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			) latest
			ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Citations, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return messages, nil
}
