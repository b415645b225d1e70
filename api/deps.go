package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/chat"
	"github.com/synapse-ai/synapse/internal/conversation"
	"github.com/synapse-ai/synapse/internal/ingest"
	"github.com/synapse-ai/synapse/internal/source"
)

// Authenticator resolves the requesting user. Implementations return the
// user id or an error for anonymous requests.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// ChatService prepares chat turns, satisfied by *chat.Service.
type ChatService interface {
	Prepare(ctx context.Context, userID string, req chat.Request) (*chat.Turn, error)
}

// ConversationStore is the slice of conversation.Store the handlers use.
type ConversationStore interface {
	Create(ctx context.Context, userID, title, model string) (*conversation.Conversation, error)
	Get(ctx context.Context, id uuid.UUID, userID string) (*conversation.Conversation, error)
	List(ctx context.Context, userID string) ([]conversation.ListItem, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
	UpdateTitle(ctx context.Context, id uuid.UUID, userID, title string) error
	Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
}

// SourceStore is the slice of source.Store the handlers use.
type SourceStore interface {
	Create(ctx context.Context, userID string, typ source.Type, name, accessToken string, metadata map[string]string) (*source.Source, error)
	Get(ctx context.Context, id uuid.UUID, userID string) (*source.Source, error)
	List(ctx context.Context, userID string) ([]source.ListItem, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// Syncer runs ingestion, satisfied by *ingest.Pipeline.
type Syncer interface {
	Sync(ctx context.Context, src *source.Source) (*ingest.Result, error)
	SyncWith(ctx context.Context, src *source.Source, connector ingest.Connector) (*ingest.Result, error)
}

// WorkspaceNamer resolves a workspace name for a credential, satisfied by
// the Slack connector.
type WorkspaceNamer interface {
	WorkspaceName(ctx context.Context, credential string) (string, error)
}

// Pinger checks database connectivity, satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HeaderAuth authenticates by trusting the X-User-Id header, for
// deployments behind a gateway that has already verified the session.
type HeaderAuth struct{}

// Authenticate returns the X-User-Id header value.
func (HeaderAuth) Authenticate(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return "", errors.New("missing user identity")
	}
	return userID, nil
}
