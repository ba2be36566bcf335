package job

import (
	"context"
	"encoding/json"
	"fmt"

	"textvault/internal/ingest"
	"textvault/internal/middleware"
)

// Enqueuer hands retried jobs back to the ingestion worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg ingest.UploadToProcess) error
}

// StatusSetter resets the upload record when its failed job is retried.
type StatusSetter interface {
	SetIngestState(ctx context.Context, id, status string, attempts int, errMsg string) error
}

type Service struct {
	repo    Repository
	queue   Enqueuer
	uploads StatusSetter
}

func NewService(repo Repository, queue Enqueuer, uploads StatusSetter) *Service {
	return &Service{repo: repo, queue: queue, uploads: uploads}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry replays the failed job's original queue message and removes it from
// the ledger. The upload goes back to pending so its status reflects the
// new attempt.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var msg ingest.UploadToProcess
	if err := json.Unmarshal(job.Payload, &msg); err != nil {
		return fmt.Errorf("decoding job %s payload: %w", id, err)
	}
	if msg.UploadID == "" {
		msg.UploadID = job.UploadID
	}
	msg.CorrelationID = middleware.GetCorrelationID(ctx)

	if err := s.uploads.SetIngestState(ctx, msg.UploadID, ingest.StatusPending, 0, ""); err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Recorder adapts the ledger to the worker's failure callback.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) RecordFailure(ctx context.Context, uploadID string, cause error) error {
	payload, err := json.Marshal(ingest.UploadToProcess{
		UploadID:      uploadID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	return r.repo.Save(ctx, &Job{
		UploadID: uploadID,
		Handler:  "ingestion-worker",
		Payload:  payload,
		Error:    cause.Error(),
	})
}
