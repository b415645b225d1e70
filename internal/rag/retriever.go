package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/synapse-ai/synapse/internal/knowledge"
)

const (
	// TopK is the maximum number of chunks retrieved per query.
	TopK = 8

	// MinScore is the similarity floor applied in the database. Chunks must
	// strictly exceed it to be returned at all.
	MinScore = 0.2
)

// Searcher is the similarity search the retriever depends on, satisfied by
// *knowledge.Store.
type Searcher interface {
	SearchChunks(ctx context.Context, userID, query string, topK int, minScore float64) ([]knowledge.Match, error)
}

// Retriever fetches the chunks most relevant to a query, scoped to the
// documents the user owns.
type Retriever struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. A nil logger falls back to slog.Default.
func NewRetriever(searcher Searcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{searcher: searcher, logger: logger}
}

// Retrieve returns up to TopK chunks scoring above MinScore for the query,
// best first. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, userID, query string) ([]knowledge.Match, error) {
	matches, err := r.searcher.SearchChunks(ctx, userID, query, TopK, MinScore)
	if err != nil {
		return nil, fmt.Errorf("retrieving chunks: %w", err)
	}

	r.logger.Debug("retrieved chunks", "user_id", userID, "count", len(matches))
	return matches, nil
}
