package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/synapse-ai/synapse/internal/knowledge"
	"github.com/synapse-ai/synapse/internal/log"
)

type stubSearcher struct {
	matches []knowledge.Match
	err     error

	gotUserID   string
	gotQuery    string
	gotTopK     int
	gotMinScore float64
}

func (s *stubSearcher) SearchChunks(ctx context.Context, userID, query string, topK int, minScore float64) ([]knowledge.Match, error) {
	s.gotUserID = userID
	s.gotQuery = query
	s.gotTopK = topK
	s.gotMinScore = minScore
	return s.matches, s.err
}

func TestRetrievePassesDefaults(t *testing.T) {
	searcher := &stubSearcher{matches: []knowledge.Match{{Content: "c", Score: 0.7}}}
	r := NewRetriever(searcher, log.NewNop())

	matches, err := r.Retrieve(context.Background(), "user-1", "query text")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if searcher.gotUserID != "user-1" || searcher.gotQuery != "query text" {
		t.Errorf("search args = %q, %q", searcher.gotUserID, searcher.gotQuery)
	}
	if searcher.gotTopK != TopK {
		t.Errorf("topK = %d, want %d", searcher.gotTopK, TopK)
	}
	if searcher.gotMinScore != MinScore {
		t.Errorf("minScore = %v, want %v", searcher.gotMinScore, MinScore)
	}
}

func TestRetrieveEmptyIsNotError(t *testing.T) {
	r := NewRetriever(&stubSearcher{}, log.NewNop())
	matches, err := r.Retrieve(context.Background(), "user-1", "query")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0", len(matches))
	}
}

func TestRetrieveWrapsSearchError(t *testing.T) {
	cause := errors.New("db down")
	r := NewRetriever(&stubSearcher{err: cause}, log.NewNop())
	_, err := r.Retrieve(context.Background(), "user-1", "query")
	if !errors.Is(err, cause) {
		t.Fatalf("Retrieve error = %v, want wrapped %v", err, cause)
	}
}
