package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/ingest"
)

// Batch adapts one upload request to the ingest pipeline. Unlike the
// remote connectors it carries its payload up front and ignores the
// credential.
type Batch struct {
	files []File
}

// NewBatch validates the whole request before accepting any file: the
// count limit first, then every file's size and type. A single bad file
// rejects the batch.
func NewBatch(files []File) (*Batch, error) {
	if len(files) == 0 {
		return nil, &ValidationError{msg: "No files provided"}
	}
	if len(files) > MaxFiles {
		return nil, &ValidationError{msg: fmt.Sprintf("Maximum %d files per upload", MaxFiles)}
	}
	for _, f := range files {
		if err := Validate(f); err != nil {
			return nil, err
		}
	}
	return &Batch{files: files}, nil
}

// SourceName names the source created for this batch: the file name for a
// single upload, a count otherwise.
func (b *Batch) SourceName() string {
	if len(b.files) == 1 {
		return b.files[0].Name
	}
	return fmt.Sprintf("%d files uploaded", len(b.files))
}

// FileNames lists the names of the batch's files.
func (b *Batch) FileNames() []string {
	names := make([]string, len(b.files))
	for i, f := range b.files {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of files in the batch.
func (b *Batch) Len() int { return len(b.files) }

// ListResources parses each file into a document with a generated id. The
// first parse failure aborts the batch so the caller can report it as a
// client error.
func (b *Batch) ListResources(ctx context.Context, _ string) ([]ingest.RawDocument, error) {
	docs := make([]ingest.RawDocument, 0, len(b.files))
	for _, f := range b.files {
		content, err := Parse(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, ingest.RawDocument{
			ID:      uuid.NewString(),
			Title:   f.Name,
			Content: content,
			Metadata: map[string]string{
				"fileName": f.Name,
				"fileSize": strconv.FormatInt(f.Size, 10),
				"fileType": strings.ToLower(filepath.Ext(f.Name)),
			},
		})
	}
	return docs, nil
}
