package rag

import (
	"fmt"
	"math"
	"strings"

	"github.com/synapse-ai/synapse/internal/knowledge"
)

const (
	// RelevanceGate is the best-match score below which retrieval results
	// are discarded entirely. Keeps marginal matches from polluting the
	// prompt with noise.
	RelevanceGate = 0.35

	// ExcerptLength bounds the citation excerpt in runes.
	ExcerptLength = 200
)

// Citation points a reader back at the source a piece of context came from.
// Field names match the wire format consumed by clients.
type Citation struct {
	SourceType    string  `json:"sourceType"`
	SourceName    string  `json:"sourceName"`
	DocumentTitle string  `json:"documentTitle"`
	Chunk         string  `json:"chunk"`
	Score         float64 `json:"score"`
	URL           string  `json:"url,omitempty"`
}

// Assemble turns retrieved matches into a context block and its citations.
// If no match reaches RelevanceGate the whole result set is dropped and
// both return values are empty. Otherwise every match becomes a numbered
// context entry and a citation, in retrieval order.
func Assemble(matches []knowledge.Match) (string, []Citation) {
	if len(matches) == 0 {
		return "", nil
	}

	var topScore float64
	for _, m := range matches {
		if m.Score > topScore {
			topScore = m.Score
		}
	}
	if topScore < RelevanceGate {
		return "", nil
	}

	citations := make([]Citation, len(matches))
	blocks := make([]string, len(matches))
	for i, m := range matches {
		citations[i] = Citation{
			SourceType:    m.SourceType,
			SourceName:    m.SourceName,
			DocumentTitle: m.DocumentTitle,
			Chunk:         excerpt(m.Content),
			Score:         m.Score,
			URL:           m.Metadata["url"],
		}
		blocks[i] = fmt.Sprintf("[Source %d: %s/%s - \"%s\" (relevance: %d%%)]\n%s",
			i+1, m.SourceType, m.SourceName, m.DocumentTitle,
			int(math.Round(m.Score*100)), m.Content)
	}

	return strings.Join(blocks, "\n\n"), citations
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= ExcerptLength {
		return content
	}
	return string(runes[:ExcerptLength])
}
