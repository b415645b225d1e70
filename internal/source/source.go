// Package source manages connected data sources: Notion workspaces, Slack
// workspaces, and file-upload buckets. A source owns documents and carries
// the credential used to sync them.
package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of connector behind a source.
type Type string

const (
	TypeNotion Type = "notion"
	TypeSlack  Type = "slack"
	TypeFile   Type = "file"
)

// ErrNotFound is returned when a source does not exist or belongs to a
// different user. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("source not found")

// ParseType validates a raw source type string.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeNotion, TypeSlack, TypeFile:
		return Type(raw), nil
	default:
		return "", fmt.Errorf("invalid source type: %q", raw)
	}
}

// Source is a connected origin of documents.
type Source struct {
	ID          uuid.UUID
	UserID      string
	Type        Type
	Name        string
	AccessToken string
	Metadata    map[string]string
	SyncedAt    *time.Time
	CreatedAt   time.Time
}

// ListItem is a source with its document count, as shown in listings. The
// access token is deliberately absent.
type ListItem struct {
	ID            uuid.UUID
	Type          Type
	Name          string
	DocumentCount int
	SyncedAt      *time.Time
	CreatedAt     time.Time
}
