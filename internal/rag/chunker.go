package rag

import (
	"regexp"
	"strings"
)

const (
	// ChunkSize is the word count at which a chunk is emitted.
	ChunkSize = 200

	// ChunkOverlap is the number of trailing words carried into the next
	// chunk for context continuity.
	ChunkOverlap = 50
)

var paragraphBreak = regexp.MustCompile(`\n\n+`)

// Chunk splits text into word-bounded chunks of at most ChunkSize words,
// with ChunkOverlap words shared between consecutive chunks. Paragraphs
// feed one buffer, so a chunk may span paragraph boundaries. When title is
// non-empty every chunk is prefixed with "[title]\n" so the document name
// survives embedding.
func Chunk(text, title string) []string {
	var chunks []string
	var current []string

	for _, para := range paragraphBreak.Split(text, -1) {
		for _, word := range strings.Fields(para) {
			current = append(current, word)
			if len(current) >= ChunkSize {
				chunks = appendChunk(chunks, current, title)
				current = append([]string(nil), current[len(current)-ChunkOverlap:]...)
			}
		}
	}

	if len(current) > 0 {
		chunks = appendChunk(chunks, current, title)
	}
	return chunks
}

func appendChunk(chunks, words []string, title string) []string {
	text := strings.TrimSpace(strings.Join(words, " "))
	if text == "" {
		return chunks
	}
	if title != "" {
		text = "[" + title + "]\n" + text
	}
	return append(chunks, text)
}
