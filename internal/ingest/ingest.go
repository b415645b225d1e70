// Package ingest turns connector output into embedded, searchable chunks.
//
// A Connector knows how to pull raw documents out of one kind of source.
// The Pipeline runs a full sync: fetch, upsert, chunk, embed and store,
// keyed by connector-stable document ids so repeat syncs replace rather
// than duplicate.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/knowledge"
	"github.com/synapse-ai/synapse/internal/rag"
	"github.com/synapse-ai/synapse/internal/source"
)

// RawDocument is connector output before chunking. ID must be stable
// across syncs of the same resource.
type RawDocument struct {
	ID       string
	Title    string
	Content  string
	Metadata map[string]string
}

// Connector lists the documents reachable with a source's credential.
type Connector interface {
	ListResources(ctx context.Context, credential string) ([]RawDocument, error)
}

// Registry maps source types to their connectors.
type Registry struct {
	connectors map[source.Type]Connector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[source.Type]Connector)}
}

// Register binds a connector to a source type, replacing any previous
// binding.
func (r *Registry) Register(typ source.Type, c Connector) {
	r.connectors[typ] = c
}

// Get returns the connector for a source type.
func (r *Registry) Get(typ source.Type) (Connector, error) {
	c, ok := r.connectors[typ]
	if !ok {
		return nil, fmt.Errorf("no connector registered for source type %q", typ)
	}
	return c, nil
}

// DocumentStore is the slice of knowledge.Store the pipeline writes
// through.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc knowledge.Document) error
	ReplaceChunks(ctx context.Context, documentID string, chunks []string, metadata map[string]string) (int, error)
}

// SyncRecorder marks a source as synced, satisfied by *source.Store.
type SyncRecorder interface {
	TouchSyncedAt(ctx context.Context, id uuid.UUID) error
}

// Result summarizes one sync run.
type Result struct {
	DocumentsSynced int `json:"documentsSynced"`
	ChunksStored    int `json:"chunksStored"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

// Pipeline syncs sources into the knowledge store.
type Pipeline struct {
	registry *Registry
	store    DocumentStore
	sources  SyncRecorder
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger falls back to slog.Default.
func NewPipeline(registry *Registry, store DocumentStore, sources SyncRecorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{registry: registry, store: store, sources: sources, logger: logger}
}

// Sync resolves the source's connector from the registry and runs
// SyncWith.
func (p *Pipeline) Sync(ctx context.Context, src *source.Source) (*Result, error) {
	connector, err := p.registry.Get(src.Type)
	if err != nil {
		return nil, err
	}
	return p.SyncWith(ctx, src, connector)
}

// SyncWith pulls every document the connector can reach and stores it with
// fresh chunk embeddings. Empty documents are skipped and a failure on one
// document does not stop the rest. The source's synced_at is updated when
// the run completes.
func (p *Pipeline) SyncWith(ctx context.Context, src *source.Source, connector Connector) (*Result, error) {
	docs, err := connector.ListResources(ctx, src.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("listing resources for source %s: %w", src.ID, err)
	}

	result := &Result{}
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			result.Skipped++
			continue
		}
		n, err := p.ingestOne(ctx, src, doc)
		if err != nil {
			p.logger.Warn("document sync failed",
				"source_id", src.ID, "document_id", doc.ID, "error", err)
			result.Failed++
			continue
		}
		result.DocumentsSynced++
		result.ChunksStored += n
	}

	if err := p.sources.TouchSyncedAt(ctx, src.ID); err != nil {
		return nil, fmt.Errorf("recording sync time for source %s: %w", src.ID, err)
	}

	p.logger.Info("source synced",
		"source_id", src.ID, "type", src.Type,
		"documents", result.DocumentsSynced, "chunks", result.ChunksStored,
		"skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, src *source.Source, doc RawDocument) (int, error) {
	metadata := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata["title"] = doc.Title
	metadata["sourceType"] = string(src.Type)

	err := p.store.UpsertDocument(ctx, knowledge.Document{
		ID:       doc.ID,
		SourceID: src.ID,
		Title:    doc.Title,
		Content:  doc.Content,
		Metadata: metadata,
	})
	if err != nil {
		return 0, err
	}

	chunks := rag.Chunk(doc.Content, doc.Title)
	return p.store.ReplaceChunks(ctx, doc.ID, chunks, metadata)
}
