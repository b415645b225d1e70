package source

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

// Store persists sources. All read and delete operations are scoped to the
// owning user.
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

// Create inserts the source and returns it with a generated id.
func (s *Store) Create(ctx context.Context, userID string, typ Type, name, accessToken string, metadata map[string]string) (*Source, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling source metadata: %w", err)
	}

	src := &Source{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        typ,
		Name:        name,
		AccessToken: accessToken,
		Metadata:    metadata,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO sources (id, user_id, type, name, access_token, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		src.ID, userID, typ, name, accessToken, metadataJSON).Scan(&src.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}

	s.logger.Info("source created", "id", src.ID, "type", typ, "user_id", userID)
	return src, nil
}

// List returns the user's sources, newest first, each with its document
// count.
func (s *Store) List(ctx context.Context, userID string) ([]ListItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.type, s.name, count(d.id), s.synced_at, s.created_at
		FROM sources s
		LEFT JOIN documents d ON d.source_id = s.id
		WHERE s.user_id = $1
		GROUP BY s.id
		ORDER BY s.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.Type, &it.Name, &it.DocumentCount, &it.SyncedAt, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sources: %w", err)
	}
	return items, nil
}

// Get returns the user's source by id, including the access token, or
// ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID, userID string) (*Source, error) {
	var src Source
	var metadataJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, type, name, access_token, metadata, synced_at, created_at
		FROM sources
		WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&src.ID, &src.UserID, &src.Type, &src.Name, &src.AccessToken, &metadataJSON, &src.SyncedAt, &src.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting source %s: %w", id, err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &src.Metadata); err != nil {
			s.logger.Warn("unparseable source metadata", "id", id, "error", err)
		}
	}
	return &src, nil
}

// Delete removes the user's source. Documents and chunks cascade at the
// database level. Returns ErrNotFound when nothing was deleted.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sources WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Info("source deleted", "id", id, "user_id", userID)
	return nil
}

// TouchSyncedAt records a completed sync.
func (s *Store) TouchSyncedAt(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `UPDATE sources SET synced_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("updating synced_at for source %s: %w", id, err)
	}
	return nil
}
