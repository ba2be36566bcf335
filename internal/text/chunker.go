package text

import (
	"context"
	"fmt"
	"iter"

	"textvault/internal/ingest"
)

// charsPerToken is the approximation used throughout: ~4 characters per
// token for English-like text.
const charsPerToken = 4

// WindowChunker splits a document into token-bounded windows with a fixed
// overlap between consecutive windows. Concatenating the windows with the
// overlap removed reconstructs the source text exactly, so no content is
// lost at chunk boundaries.
type WindowChunker struct {
	maxTokens     int
	overlapTokens int
}

func NewWindowChunker(maxTokens, overlapTokens int) *WindowChunker {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		overlapTokens = 0
	}
	return &WindowChunker{maxTokens: maxTokens, overlapTokens: overlapTokens}
}

// Chunk lazily yields the document's windows in order. Each chunk carries a
// context header describing the document, used when composing the text that
// is embedded.
func (c *WindowChunker) Chunk(ctx context.Context, doc *ingest.Document) iter.Seq2[ingest.Chunk, error] {
	return func(yield func(ingest.Chunk, error) bool) {
		runes := []rune(doc.Content)
		if len(runes) == 0 {
			return
		}

		window := c.maxTokens * charsPerToken
		overlap := c.overlapTokens * charsPerToken
		step := window - overlap
		header := contextHeader(doc)

		for start := 0; start < len(runes); start += step {
			if err := ctx.Err(); err != nil {
				yield(ingest.Chunk{}, err)
				return
			}

			end := start + window
			if end > len(runes) {
				end = len(runes)
			}
			chunk := ingest.Chunk{
				DocumentID: doc.ID,
				Content:    string(runes[start:end]),
				Context:    header,
			}
			if !yield(chunk, nil) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}
}

// Overlap reports the number of leading runes of each non-initial chunk
// that repeat the tail of its predecessor.
func (c *WindowChunker) Overlap() int {
	return c.overlapTokens * charsPerToken
}

// contextHeader builds the surrounding-context string stored on each chunk,
// giving the embedding model the document it came from.
func contextHeader(doc *ingest.Document) string {
	if doc.Title == "" {
		return fmt.Sprintf("Type: %s", doc.MediaType)
	}
	return fmt.Sprintf("Title: %s\nType: %s", doc.Title, doc.MediaType)
}
