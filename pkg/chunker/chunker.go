package chunker

import (
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Options struct {
	ChunkSize int // target chunk size in characters
	Overlap   int // characters carried over between consecutive chunks
}

func DefaultOptions() Options {
	return Options{
		ChunkSize: 1000,
		Overlap:   200,
	}
}

// Chunk is a bounded slice of document text prepared for embedding.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Split breaks text into paragraph-aware chunks with overlap. Paragraphs are
// never split internally: a single paragraph longer than ChunkSize is emitted
// as one oversized chunk. Each chunk receives a fresh id and its own copy of
// the metadata map.
func Split(text string, opts Options, metadata map[string]any) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	var chunks []Chunk
	current := ""

	for _, para := range splitParagraphs(text) {
		switch {
		case current == "":
			current = para
		case utf8.RuneCountInString(current)+utf8.RuneCountInString(para) > opts.ChunkSize:
			chunks = append(chunks, newChunk(current, metadata))
			current = overlapTail(current, opts.Overlap) + " " + para
		default:
			current = current + "\n\n" + para
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, newChunk(current, metadata))
	}

	return chunks
}

// splitParagraphs splits on blank-line boundaries, preserving order and
// dropping empty segments.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// overlapTail returns the last n characters of s, or all of s if shorter.
func overlapTail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func newChunk(content string, metadata map[string]any) Chunk {
	return Chunk{
		ID:       uuid.NewString(),
		Content:  strings.TrimSpace(content),
		Metadata: maps.Clone(metadata),
	}
}
