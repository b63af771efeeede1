// Package chunk splits document text into word-aligned segments that fit a
// model's input budget.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the chunk budget used when none is configured.
const DefaultMaxSize = 8000

// Split returns text unchanged as a single chunk when it fits in maxSize
// characters. Otherwise words are accumulated greedily, each costing its
// length plus one separator, and a new chunk starts when the next word would
// overflow the budget. A word longer than maxSize becomes a chunk of its own.
func Split(text string, maxSize int) []string {
	if utf8.RuneCountInString(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var current []string
	size := 0
	for _, word := range strings.Fields(text) {
		cost := utf8.RuneCountInString(word) + 1
		if size+cost > maxSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			size = cost
			continue
		}
		current = append(current, word)
		size += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// Chunker carries a configured budget.
type Chunker struct {
	MaxSize int
}

func NewChunker(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Chunker{MaxSize: maxSize}
}

func (c *Chunker) Split(text string) []string {
	return Split(text, c.MaxSize)
}
