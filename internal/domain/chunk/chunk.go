// Package chunk splits document text into overlapping fixed-size spans.
package chunk

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/policyrag/internal/domain"
)

// Defaults used when configuration leaves chunking unset.
const (
	DefaultSize    = 600
	DefaultOverlap = 100
)

// Chunk is a contiguous span of a source document (immutable value object).
type Chunk struct {
	id       string
	text     string
	sourceID string
	index    int
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id, text, sourceID string, index int) Chunk {
	return Chunk{id: id, text: text, sourceID: sourceID, index: index}
}

// ID returns the chunk identifier.
func (c *Chunk) ID() string { return c.id }

// Text returns the chunk content.
func (c *Chunk) Text() string { return c.text }

// SourceDocumentID returns the originating document identifier.
func (c *Chunk) SourceDocumentID() string { return c.sourceID }

// Index returns the position of the chunk within its document.
func (c *Chunk) Index() int { return c.index }

// ID derives the chunk identifier from the document identifier and chunk index.
func ID(documentID string, index int) string {
	return documentID + "_chunk_" + strconv.Itoa(index)
}

// Split cuts text into windows of at most size runes; each window after the first
// starts overlap runes before the end of the previous one. The last window always
// ends at the end of text. Content is returned untouched.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidInput)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d: %w", size, overlap, domain.ErrInvalidInput)
	}
	if text == "" {
		return nil, nil
	}

	// Byte offset of every rune start, plus len(text) as a sentinel.
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	runes := len(offsets)
	offsets = append(offsets, len(text))

	stride := size - overlap
	spans := make([]string, 0, runes/stride+1)
	for start := 0; ; start += stride {
		end := min(start+size, runes)
		spans = append(spans, text[offsets[start]:offsets[end]])
		if end == runes {
			break
		}
	}
	return spans, nil
}

// Reassemble joins spans produced by Split with the same overlap back into the original text.
func Reassemble(spans []string, overlap int) string {
	var b strings.Builder
	for i, s := range spans {
		if i == 0 {
			b.WriteString(s)
			continue
		}
		b.WriteString(skipRunes(s, overlap))
	}
	return b.String()
}

// Build splits text and tags every span with its deterministic identifier.
func Build(documentID, text string, size, overlap int) ([]Chunk, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id is required: %w", domain.ErrInvalidInput)
	}
	spans, err := Split(text, size, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = Chunk{id: ID(documentID, i), text: s, sourceID: documentID, index: i}
	}
	return chunks, nil
}

func skipRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}
