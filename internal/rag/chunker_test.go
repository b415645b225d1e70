package rag

import (
	"strings"
	"testing"
)

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix + strings.Repeat("x", i%3+1)
	}
	return strings.Join(parts, " ")
}

func wordCount(chunk string) int {
	// Drop the title line if present.
	if strings.HasPrefix(chunk, "[") {
		if idx := strings.Index(chunk, "\n"); idx >= 0 {
			chunk = chunk[idx+1:]
		}
	}
	return len(strings.Fields(chunk))
}

func TestChunkEmpty(t *testing.T) {
	if got := Chunk("", ""); len(got) != 0 {
		t.Errorf("Chunk(\"\") = %d chunks, want 0", len(got))
	}
	if got := Chunk("   \n\n  \t ", ""); len(got) != 0 {
		t.Errorf("whitespace-only input produced %d chunks", len(got))
	}
}

func TestChunkShortInput(t *testing.T) {
	chunks := Chunk("hello world", "")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestChunkSizeBound(t *testing.T) {
	chunks := Chunk(words(1000, "w"), "")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := wordCount(c); n > ChunkSize {
			t.Errorf("chunk %d has %d words, max %d", i, n, ChunkSize)
		}
	}
}

func TestChunkOverlap(t *testing.T) {
	// Unique words so overlap can be verified positionally.
	parts := make([]string, 500)
	for i := range parts {
		parts[i] = "w" + strings.Repeat("i", i/26) + string(rune('a'+i%26))
	}
	chunks := Chunk(strings.Join(parts, " "), "")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	tail := first[len(first)-ChunkOverlap:]
	for i, w := range tail {
		if second[i] != w {
			t.Fatalf("overlap mismatch at %d: %q vs %q", i, second[i], w)
		}
	}
}

func TestChunkCoversAllWords(t *testing.T) {
	input := words(450, "tok")
	chunks := Chunk(input, "")

	joined := strings.Join(chunks, " ")
	for _, w := range strings.Fields(input) {
		if !strings.Contains(joined, w) {
			t.Fatalf("word %q missing from chunks", w)
		}
	}
}

func TestChunkTitlePrefix(t *testing.T) {
	chunks := Chunk(words(500, "w"), "Project Plan")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasPrefix(c, "[Project Plan]\n") {
			t.Errorf("chunk %d missing title prefix: %q", i, c[:40])
		}
	}
}

func TestChunkSpansParagraphs(t *testing.T) {
	// Two 150-word paragraphs share one buffer, so the first emitted chunk
	// contains words from both.
	text := words(150, "a") + "\n\n\n" + words(150, "b")
	chunks := Chunk(text, "")
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !strings.Contains(chunks[0], "ax") || !strings.Contains(chunks[0], "bx") {
		t.Error("first chunk should span the paragraph boundary")
	}
}
