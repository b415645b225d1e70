package knowledge

import "github.com/google/uuid"

// VectorDimension is the embedding width of text-embedding-3-small and
// matches the vector(1536) column in the schema.
const VectorDimension = 1536

// Document is a unit of synced content belonging to a source. The ID is a
// connector-stable string (a Notion page id, "slack-<channel id>", or a
// generated uuid for uploads).
type Document struct {
	ID       string
	SourceID uuid.UUID
	Title    string
	Content  string
	Metadata map[string]string
}

// Match is one chunk returned by similarity search, joined with the
// document and source it came from. Score is cosine similarity in [0, 1]
// for normalized embeddings.
type Match struct {
	Content       string
	Score         float64
	DocumentTitle string
	SourceType    string
	SourceName    string
	Metadata      map[string]string
}
