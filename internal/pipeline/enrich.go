package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"textvault/internal/ingest"
)

// ChatModel is the narrow slice of a chat-completion vendor the enrichers
// depend on.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// summaryMetadataKey is where the summarizer stashes its output. The
// orchestrator's summary promotion lifts it into the canonical summary
// field afterwards.
const summaryMetadataKey = "chunk_summary"

// SummaryEnricher asks the chat model for a short summary of each chunk,
// bounded to maxWords words, and records it under a summary-named metadata
// key. The transform is lazy: nothing is summarized until the sequence is
// consumed.
type SummaryEnricher struct {
	chat     ChatModel
	maxWords int
}

func NewSummaryEnricher(chat ChatModel, maxWords int) *SummaryEnricher {
	if maxWords <= 0 {
		maxWords = 40
	}
	return &SummaryEnricher{chat: chat, maxWords: maxWords}
}

func (e *SummaryEnricher) Process(ctx context.Context, chunks iter.Seq2[ingest.Chunk, error]) iter.Seq2[ingest.Chunk, error] {
	return func(yield func(ingest.Chunk, error) bool) {
		for chunk, err := range chunks {
			if err != nil {
				yield(chunk, err)
				return
			}

			prompt := fmt.Sprintf("Summarize the following text in at most %d words. Reply with the summary only.\n\n%s", e.maxWords, chunk.Content)
			summary, err := e.chat.Generate(ctx, prompt)
			if err != nil {
				yield(ingest.Chunk{}, fmt.Errorf("%w: summarizing chunk: %v", ingest.ErrTransient, err))
				return
			}

			summary = truncateWords(strings.TrimSpace(summary), e.maxWords)
			if summary != "" {
				chunk.Metadata = setMetadataKey(chunk.Metadata, summaryMetadataKey, summary)
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// truncateWords hard-caps s at n words in case the model ignores the bound.
func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}

// setMetadataKey sets key on a serialized JSON metadata object, treating an
// absent or unparsable value as an empty object.
func setMetadataKey(metadata, key string, value any) string {
	m := map[string]any{}
	if strings.TrimSpace(metadata) != "" {
		// Unparsable metadata is replaced rather than propagated.
		_ = json.Unmarshal([]byte(metadata), &m)
	}
	m[key] = value
	out, err := json.Marshal(m)
	if err != nil {
		return metadata
	}
	return string(out)
}

// markdownImageRe matches markdown images with an empty alt text.
var markdownImageRe = regexp.MustCompile(`!\[\]\(([^)\s]+)\)`)

// AltTextEnricher fills in descriptive alt text for embedded images that
// lack one, so the surrounding prose chunks embed with that context.
type AltTextEnricher struct {
	chat ChatModel
}

func NewAltTextEnricher(chat ChatModel) *AltTextEnricher {
	return &AltTextEnricher{chat: chat}
}

func (e *AltTextEnricher) Process(ctx context.Context, doc *ingest.Document) (*ingest.Document, error) {
	matches := markdownImageRe.FindAllStringSubmatch(doc.Content, -1)
	if len(matches) == 0 {
		return doc, nil
	}

	content := doc.Content
	for _, m := range matches {
		prompt := fmt.Sprintf("Write a one-sentence alt text for an image referenced as %q in the document titled %q. Reply with the alt text only.", m[1], doc.Title)
		alt, err := e.chat.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%w: generating alt text for %s: %v", ingest.ErrTransient, m[1], err)
		}
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		content = strings.Replace(content, m[0], fmt.Sprintf("![%s](%s)", alt, m[1]), 1)
	}

	enriched := *doc
	enriched.Content = content
	return &enriched, nil
}
