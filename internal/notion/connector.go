package notion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/synapse-ai/synapse/internal/ingest"
)

// Connector adapts the Notion client to the ingest pipeline. One Connector
// serves all Notion sources; the per-source integration token arrives with
// each call. The rate limiter is shared so parallel syncs of different
// sources stay within the API budget together.
type Connector struct {
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewConnector creates a Connector. A nil logger falls back to
// slog.Default.
func NewConnector(logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		baseURL: apiBase,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// ListResources renders every page the token can reach into a raw
// document. A page whose blocks cannot be fetched is logged and skipped so
// one broken page does not abort the sync.
func (c *Connector) ListResources(ctx context.Context, credential string) ([]ingest.RawDocument, error) {
	client, err := NewClient(credential, c.limiter, c.logger)
	if err != nil {
		return nil, err
	}
	client.baseURL = c.baseURL

	pages, err := client.Search(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notion pages: %w", err)
	}

	docs := make([]ingest.RawDocument, 0, len(pages))
	for _, page := range pages {
		content, err := client.PageContent(ctx, page)
		if err != nil {
			c.logger.Warn("skipping notion page", "page_id", page.ID, "error", err)
			continue
		}

		docs = append(docs, ingest.RawDocument{
			ID:      page.ID,
			Title:   pageTitle(page),
			Content: content,
			Metadata: map[string]string{
				"url":            page.URL,
				"lastEditedTime": page.LastEditedTime,
			},
		})
	}
	return docs, nil
}
