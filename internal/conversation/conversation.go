// Package conversation persists chat conversations and their messages.
package conversation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotFound is returned when a conversation does not exist or belongs to
// a different user.
var ErrNotFound = errors.New("conversation not found")

// Conversation groups the messages of one chat thread.
type Conversation struct {
	ID        uuid.UUID
	UserID    string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn in a conversation. Citations is the raw JSON array
// attached to assistant messages, nil for user messages and uncited
// answers.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	Citations      json.RawMessage
	CreatedAt      time.Time
}

// ListItem is a conversation with its last message preview, as shown in
// listings.
type ListItem struct {
	Conversation
	MessageCount int
	LastMessage  string
}
