package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"textvault/internal/ingest"
	"textvault/internal/middleware"
	"textvault/internal/storage"
)

// Upload is a document accepted for ingestion. Status and the ingest error
// fields track the asynchronous pipeline; Metadata is the caller-supplied
// JSON object that gets merged into every derived chunk.
type Upload struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MediaType      string    `json:"media_type"`
	StoragePath    string    `json:"-"`
	Status         string    `json:"status"`
	IngestAttempts int       `json:"ingest_attempts"`
	IngestError    string    `json:"ingest_error,omitempty"`
	Metadata       string    `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, up *Upload) error
	Get(ctx context.Context, id string) (*Upload, error)
	List(ctx context.Context) ([]Upload, error)
	UpdateMetadata(ctx context.Context, id, metadata string) error
	SetIngestState(ctx context.Context, id, status string, attempts int, errMsg string) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ContentService is the chunk-side boundary: reading, patching and deleting
// the chunks derived from an upload.
type ContentService interface {
	GetByUploadID(ctx context.Context, uploadID string) (*ingest.UploadContent, error)
	UpdateMetadata(ctx context.Context, uploadID, uploadMetadata string) error
	DeleteByUploadID(ctx context.Context, uploadID string) error
}

// Enqueuer hands accepted uploads to the ingestion worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg ingest.UploadToProcess) error
}

type Service struct {
	repo    Repository
	blobs   storage.BlobStore
	content ContentService
	queue   Enqueuer
}

func NewService(repo Repository, blobs storage.BlobStore, content ContentService, queue Enqueuer) *Service {
	return &Service{repo: repo, blobs: blobs, content: content, queue: queue}
}

// Create stores the raw bytes, persists a pending upload record and queues
// it for ingestion. Create blocks under queue backpressure, so a slow
// pipeline throttles acceptance instead of losing uploads.
func (s *Service) Create(ctx context.Context, up *Upload, r io.Reader) error {
	if up.Metadata != "" && !json.Valid([]byte(up.Metadata)) {
		return fmt.Errorf("metadata is not valid JSON")
	}

	up.ID = uuid.New().String()
	up.StoragePath = fmt.Sprintf("%s%s", up.ID, filepath.Ext(up.Name))
	up.Status = ingest.StatusPending

	if err := s.blobs.Upload(ctx, up.StoragePath, r); err != nil {
		return fmt.Errorf("storing upload bytes: %w", err)
	}

	if err := s.repo.Save(ctx, up); err != nil {
		// Keep storage consistent with the record that failed to persist.
		if cleanupErr := s.blobs.Delete(ctx, up.StoragePath); cleanupErr != nil {
			slog.WarnContext(ctx, "failed to clean up stored blob", "error", cleanupErr, "path", up.StoragePath)
		}
		return err
	}

	if err := s.queue.Enqueue(ctx, ingest.UploadToProcess{
		UploadID:      up.ID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}); err != nil {
		return fmt.Errorf("queueing upload %s: %w", up.ID, err)
	}

	slog.InfoContext(ctx, "upload accepted", "upload_id", up.ID, "name", up.Name, "media_type", up.MediaType)
	return nil
}

// Detail is an upload record joined with its ingested chunks.
type Detail struct {
	Upload
	Summary     string         `json:"summary,omitempty"`
	Chunks      []ingest.Chunk `json:"chunks"`
	TotalChunks int            `json:"total_chunks"`
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	up, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Upload: *up, Chunks: []ingest.Chunk{}}

	content, err := s.content.GetByUploadID(ctx, id)
	switch {
	case err == nil:
		detail.Chunks = content.Chunks
		detail.Summary = content.Summary
		detail.TotalChunks = len(content.Chunks)
	case ingest.IsNotFound(err):
		// Not ingested yet; the record alone is the answer.
	default:
		slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "upload_id", id)
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context) ([]Upload, error) {
	return s.repo.List(ctx)
}

// UpdateMetadata persists the new upload metadata and propagates the merge
// to every existing chunk. Uploads that are still pending simply pick up
// the new metadata when ingestion runs.
func (s *Service) UpdateMetadata(ctx context.Context, id, metadata string) error {
	if metadata != "" && !json.Valid([]byte(metadata)) {
		return fmt.Errorf("metadata is not valid JSON")
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateMetadata(ctx, id, metadata); err != nil {
		return err
	}
	return s.content.UpdateMetadata(ctx, id, metadata)
}

// Delete removes the chunks first, then the record, then the blob. A
// half-finished delete therefore leaves a visible record to retry against
// rather than orphaned chunks.
func (s *Service) Delete(ctx context.Context, id string) error {
	up, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.content.DeleteByUploadID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, up.StoragePath); err != nil {
		slog.WarnContext(ctx, "failed to delete stored blob", "error", err, "path", up.StoragePath)
	}
	return nil
}

// Reingest resets the upload to pending and queues it again. With
// incremental ingestion on, the fresh chunk batch replaces the old one.
func (s *Service) Reingest(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetIngestState(ctx, id, ingest.StatusPending, 0, ""); err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, ingest.UploadToProcess{
		UploadID:      id,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
}
