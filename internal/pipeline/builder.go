package pipeline

import (
	"context"
	"fmt"
	"strings"

	"textvault/internal/ingest"
	"textvault/internal/settings"
	"textvault/internal/text"
)

// SettingsService provides the runtime settings a pipeline is built from.
type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Builder assembles the capability set for one upload: a reader chosen by
// content type, the window chunker, enrichers per the enable flags, and the
// configured embedding generator. It re-reads settings on every build so
// model or chunking changes apply to the next upload without a restart.
type Builder struct {
	settings SettingsService
	embedder ingest.Embedder
	chat     ChatModel
}

func NewBuilder(settings SettingsService, embedder ingest.Embedder, chat ChatModel) *Builder {
	return &Builder{settings: settings, embedder: embedder, chat: chat}
}

func (b *Builder) Build(ctx context.Context, upload *ingest.Upload) (*ingest.Pipeline, error) {
	set, err := b.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading settings: %v", ingest.ErrConfiguration, err)
	}

	if set.EmbeddingProvider != "gemini" {
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", ingest.ErrConfiguration, set.EmbeddingProvider)
	}

	reader, err := readerFor(upload.MediaType)
	if err != nil {
		return nil, err
	}

	p := &ingest.Pipeline{
		Reader:   reader,
		Chunker:  text.NewWindowChunker(set.MaxTokensPerChunk, set.OverlapTokens),
		Embedder: b.embedder,
	}

	if set.EnableImageAltText {
		p.DocumentEnrichers = append(p.DocumentEnrichers, NewAltTextEnricher(b.chat))
	}
	if set.EnableSummary {
		p.ChunkEnrichers = append(p.ChunkEnrichers, NewSummaryEnricher(b.chat, set.SummaryMaxWordCount))
	}

	return p, nil
}

func readerFor(mediaType string) (ingest.DocumentReader, error) {
	mt := mediaType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.TrimSpace(strings.ToLower(mt))

	switch {
	case strings.HasPrefix(mt, "text/"):
		return TextReader{}, nil
	case mt == "application/json", mt == "application/x-ndjson":
		return TextReader{}, nil
	case mt == "application/pdf":
		return PDFReader{}, nil
	default:
		return nil, fmt.Errorf("%w: no reader for media type %q", ingest.ErrUnsupportedFormat, mediaType)
	}
}
