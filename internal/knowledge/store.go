package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier is the subset of pgxpool.Pool the store needs. Defined here so
// tests can substitute a fake without a database.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages documents and their embedded chunks.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(db Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// UpsertDocument inserts the document or, when the id already exists,
// overwrites its title, content and metadata. Chunks are managed separately
// through ReplaceChunks.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling document metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, source_id, title, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    content = EXCLUDED.content,
		    metadata = EXCLUDED.metadata,
		    updated_at = now()`,
		doc.ID, doc.SourceID, doc.Title, doc.Content, metadataJSON)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("upserted document", "id", doc.ID, "title", doc.Title)
	return nil
}

// ReplaceChunks deletes every chunk of the document and inserts the given
// chunks with freshly generated embeddings, returning the number stored.
// Metadata is snapshotted onto each chunk row so search results carry it
// without extra joins.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []string, metadata map[string]string) (int, error) {
	if _, err := s.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return 0, fmt.Errorf("deleting chunks of document %q: %w", documentID, err)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("marshaling chunk metadata: %w", err)
	}

	for i, chunk := range chunks {
		embedding, err := s.embed(ctx, chunk)
		if err != nil {
			return i, fmt.Errorf("embedding chunk %d of document %q: %w", i, documentID, err)
		}

		_, err = s.db.Exec(ctx, `
			INSERT INTO document_chunks (id, document_id, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), documentID, chunk, pgvector.NewVector(embedding), metadataJSON)
		if err != nil {
			return i, fmt.Errorf("inserting chunk %d of document %q: %w", i, documentID, err)
		}
	}

	s.logger.Debug("replaced chunks", "document_id", documentID, "count", len(chunks))
	return len(chunks), nil
}

// SearchChunks returns up to topK chunks owned by the user whose cosine
// similarity to the query strictly exceeds minScore, ordered by similarity.
// Ties fall back to chunk id so results are deterministic.
func (s *Store) SearchChunks(ctx context.Context, userID, query string, topK int, minScore float64) ([]Match, error) {
	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx, `
		SELECT
			dc.content,
			1 - (dc.embedding <=> $1) AS score,
			d.title,
			s.type,
			s.name,
			dc.metadata
		FROM document_chunks dc
		JOIN documents d ON dc.document_id = d.id
		JOIN sources s ON d.source_id = s.id
		WHERE s.user_id = $2
		  AND dc.embedding IS NOT NULL
		  AND 1 - (dc.embedding <=> $1) > $3
		ORDER BY dc.embedding <=> $1, dc.id
		LIMIT $4`,
		vec, userID, minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var metadataJSON []byte
		if err := rows.Scan(&m.Content, &m.Score, &m.DocumentTitle, &m.SourceType, &m.SourceName, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
				s.logger.Warn("unparseable chunk metadata", "error", err)
				m.Metadata = nil
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}

	return matches, nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned no embedding")
	}
	embedding := resp.Embeddings[0].Embedding
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(embedding), VectorDimension)
	}
	return embedding, nil
}
