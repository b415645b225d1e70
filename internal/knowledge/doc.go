// Package knowledge persists documents and their embedded chunks in
// PostgreSQL with pgvector, and answers user-scoped similarity queries.
//
// Documents are keyed by connector-stable string ids so re-syncing a source
// overwrites the previous copy instead of accumulating duplicates. Chunk
// embeddings are generated through a Genkit ai.Embedder at write time.
package knowledge
