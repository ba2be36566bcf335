package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service runs one upload through the pipeline and keeps derived chunks
// consistent with their owning upload across metadata patches and deletion.
// All mutation of the chunk store is scoped by the upload id (sourceId).
type Service struct {
	uploads  UploadSource
	storage  ObjectStorage
	builder  PipelineBuilder
	store    ChunkStore
	settings SettingsSource

	now func() time.Time
}

func NewService(uploads UploadSource, storage ObjectStorage, builder PipelineBuilder, store ChunkStore, settings SettingsSource) *Service {
	return &Service{
		uploads:  uploads,
		storage:  storage,
		builder:  builder,
		store:    store,
		settings: settings,
		now:      time.Now,
	}
}

// Ingest reads the upload's raw bytes, runs the enrichment pipeline, merges
// metadata, embeds and persists the chunk batch. On any failure no partial
// chunk set for this upload is committed.
func (s *Service) Ingest(ctx context.Context, uploadID string) error {
	upload, err := s.uploads.Get(ctx, uploadID)
	if err != nil {
		return err
	}

	set, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading ingestion settings: %v", ErrConfiguration, err)
	}

	pipeline, err := s.builder.Build(ctx, upload)
	if err != nil {
		return err
	}

	rc, err := s.storage.Download(ctx, upload.StoragePath)
	if err != nil {
		return fmt.Errorf("%w: downloading %s: %v", ErrTransient, upload.StoragePath, err)
	}
	defer rc.Close()

	doc, err := pipeline.Reader.Read(ctx, rc, upload.ID, upload.MediaType)
	if err != nil {
		return err
	}
	if doc.Title == "" {
		doc.Title = upload.Name
	}

	for _, enricher := range pipeline.DocumentEnrichers {
		doc, err = enricher.Process(ctx, doc)
		if err != nil {
			return fmt.Errorf("document enrichment: %w", err)
		}
	}

	seq := pipeline.Chunker.Chunk(ctx, doc)
	for _, enricher := range pipeline.ChunkEnrichers {
		seq = enricher.Process(ctx, seq)
	}

	base := s.now().UTC()
	var chunks []Chunk
	i := 0
	for chunk, err := range seq {
		if err != nil {
			return fmt.Errorf("chunking: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunk.ID = uuid.New().String()
		chunk.SourceID = upload.ID
		if chunk.DocumentID == "" {
			chunk.DocumentID = doc.ID
		}
		// createdAt is monotonic within the batch so query order is stable.
		chunk.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		chunks = append(chunks, chunk)
		i++
	}

	// Re-read the upload record so the merge sees its current metadata. A
	// metadata patch racing this ingestion then resolves toward last write
	// wins instead of corrupting chunk state.
	current, err := s.uploads.Get(ctx, uploadID)
	if err != nil {
		return err
	}

	for i := range chunks {
		enriched := chunks[i].Metadata
		chunks[i].Metadata = mergeUploadMetadata(enriched, current.Metadata)
		promoteSummary(&chunks[i], enriched)
	}

	for i := range chunks {
		vec, err := pipeline.Embedder.Embed(ctx, embedText(&chunks[i]))
		if err != nil {
			return fmt.Errorf("%w: embedding chunk %d: %v", ErrTransient, i, err)
		}
		chunks[i].Embedding = vec
	}

	if err := s.store.Write(ctx, upload.ID, chunks, set.EmbeddingDimension, set.IncrementalIngestion); err != nil {
		return fmt.Errorf("%w: writing %d chunks for %s: %v", ErrPersistence, len(chunks), upload.ID, err)
	}

	slog.InfoContext(ctx, "upload ingested", "upload_id", upload.ID, "chunks", len(chunks), "incremental", set.IncrementalIngestion)
	return nil
}

// embedText composes the text handed to the embedding model: the chunker's
// surrounding context, when present, is prepended to the chunk body.
func embedText(c *Chunk) string {
	if c.Context == "" {
		return c.Content
	}
	return c.Context + "\n---\n" + c.Content
}

// UpdateMetadata re-runs the metadata merge for every chunk owned by
// uploadID against uploadMetadata and persists the metadata field only.
// It never re-chunks, re-embeds or calls an enricher, and it is an
// idempotent no-op when the upload has no ingested chunks yet.
func (s *Service) UpdateMetadata(ctx context.Context, uploadID, uploadMetadata string) error {
	chunks, err := s.store.Query(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("%w: querying chunks for %s: %v", ErrPersistence, uploadID, err)
	}

	for _, c := range chunks {
		merged := mergeUploadMetadata(c.Metadata, uploadMetadata)
		if merged == c.Metadata {
			continue
		}
		if err := s.store.UpdateMetadata(ctx, c.ID, merged); err != nil {
			return fmt.Errorf("%w: patching chunk %s: %v", ErrPersistence, c.ID, err)
		}
	}
	return nil
}

// DeleteByUploadID removes every chunk owned by uploadID. Deleting an
// upload that was never ingested is a no-op, not an error.
func (s *Service) DeleteByUploadID(ctx context.Context, uploadID string) error {
	if err := s.store.DeleteBySourceID(ctx, uploadID); err != nil {
		return fmt.Errorf("%w: deleting chunks for %s: %v", ErrPersistence, uploadID, err)
	}
	return nil
}

// UploadContent is the read-side view of an ingested upload: its chunks in
// creation order plus a document-level summary promoted from the first
// chunk that carries one.
type UploadContent struct {
	Chunks  []Chunk `json:"chunks"`
	Summary string  `json:"summary,omitempty"`
}

// GetByUploadID returns all chunks for the upload ordered by createdAt
// ascending. It reports ErrNotFound only when zero chunks exist at all.
func (s *Service) GetByUploadID(ctx context.Context, uploadID string) (*UploadContent, error) {
	chunks, err := s.store.Query(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks for %s: %v", ErrPersistence, uploadID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks for upload %s", ErrNotFound, uploadID)
	}

	content := &UploadContent{Chunks: chunks}
	for _, c := range chunks {
		if strings.TrimSpace(c.Summary) != "" {
			content.Summary = c.Summary
			break
		}
	}
	return content, nil
}
