package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"textvault/internal/middleware"
)

// Ingestor is the slice of the orchestrator the worker drives.
type Ingestor interface {
	Ingest(ctx context.Context, uploadID string) error
}

// WorkerConfig tunes the retry policy of the drain loop.
type WorkerConfig struct {
	// MaxAttempts caps how often a transient failure is retried before the
	// upload is marked failed. Minimum 1.
	MaxAttempts int
	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration
	// IngestTimeout bounds a single ingestion attempt. Zero disables it.
	IngestTimeout time.Duration
}

// Worker drains the upload queue sequentially and invokes the orchestrator
// for each message. Processing one upload at a time avoids concurrent
// writers to the same sourceId by construction. A failing upload is logged,
// recorded and published, never allowed to stop the loop.
type Worker struct {
	queue    *Queue
	ingestor Ingestor
	uploads  UploadSource
	failures FailureRecorder
	results  ResultPublisher
	cfg      WorkerConfig
}

func NewWorker(queue *Queue, ingestor Ingestor, uploads UploadSource, failures FailureRecorder, results ResultPublisher, cfg WorkerConfig) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	return &Worker{
		queue:    queue,
		ingestor: ingestor,
		uploads:  uploads,
		failures: failures,
		results:  results,
		cfg:      cfg,
	}
}

// Run processes messages until ctx is cancelled or the queue is closed and
// its backlog drained. The in-flight ingestion finishes (or aborts via its
// own context) before Run returns; no further messages are pulled
// afterwards.
func (w *Worker) Run(ctx context.Context) {
	slog.InfoContext(ctx, "ingestion worker started", "max_attempts", w.cfg.MaxAttempts)
	for {
		if ctx.Err() != nil {
			slog.Info("ingestion worker stopped")
			return
		}
		select {
		case <-ctx.Done():
			slog.Info("ingestion worker stopped")
			return
		case msg := <-w.queue.Messages():
			w.processOne(ctx, msg)
		case <-w.queue.Done():
			w.drain(ctx)
			return
		}
	}
}

// drain finishes the backlog accepted before Close. Cancellation still wins:
// a cancelled context stops the drain rather than processing doomed work.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			slog.Info("ingestion worker stopped")
			return
		}
		select {
		case msg := <-w.queue.Messages():
			w.processOne(ctx, msg)
		default:
			slog.Info("ingestion worker stopped: queue drained")
			return
		}
	}
}

func (w *Worker) processOne(ctx context.Context, msg UploadToProcess) {
	if msg.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, msg.CorrelationID)
	}

	if err := w.uploads.SetStatus(ctx, msg.UploadID, StatusProcessing, 0, ""); err != nil {
		slog.ErrorContext(ctx, "failed to mark upload processing", "upload_id", msg.UploadID, "error", err)
	}

	attempts := 0
	backoff := retry.WithMaxRetries(uint64(w.cfg.MaxAttempts-1), retry.NewExponential(w.cfg.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		ingestCtx := ctx
		if w.cfg.IngestTimeout > 0 {
			var cancel context.CancelFunc
			ingestCtx, cancel = context.WithTimeout(ctx, w.cfg.IngestTimeout)
			defer cancel()
		}

		err := w.ingestor.Ingest(ingestCtx, msg.UploadID)
		if err != nil && IsTransient(err) {
			slog.WarnContext(ctx, "transient ingestion failure, will retry", "upload_id", msg.UploadID, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil {
		// An upload deleted while queued is a skip, not a failure: there is
		// no record left to mark and nothing worth a ledger entry.
		if IsNotFound(err) {
			slog.InfoContext(ctx, "upload gone, skipping", "upload_id", msg.UploadID, "error", err)
			return
		}
		slog.ErrorContext(ctx, "ingestion failed", "upload_id", msg.UploadID, "attempts", attempts, "error", err)
		if sErr := w.uploads.SetStatus(ctx, msg.UploadID, StatusFailed, attempts, err.Error()); sErr != nil {
			slog.ErrorContext(ctx, "failed to mark upload failed", "upload_id", msg.UploadID, "error", sErr)
		}
		if w.failures != nil {
			if rErr := w.failures.RecordFailure(ctx, msg.UploadID, err); rErr != nil {
				slog.ErrorContext(ctx, "failed to record ingestion failure", "upload_id", msg.UploadID, "error", rErr)
			}
		}
		w.publish(ctx, msg, StatusFailed, attempts, err)
		return
	}

	if sErr := w.uploads.SetStatus(ctx, msg.UploadID, StatusCompleted, attempts, ""); sErr != nil {
		slog.ErrorContext(ctx, "failed to mark upload completed", "upload_id", msg.UploadID, "error", sErr)
	}
	w.publish(ctx, msg, StatusCompleted, attempts, nil)
}

func (w *Worker) publish(ctx context.Context, msg UploadToProcess, status string, attempts int, cause error) {
	if w.results == nil {
		return
	}
	res := Result{
		UploadID:      msg.UploadID,
		Status:        status,
		Attempts:      attempts,
		CorrelationID: msg.CorrelationID,
		FinishedAt:    time.Now().UTC(),
	}
	if cause != nil {
		res.Error = cause.Error()
	}
	if err := w.results.PublishResult(ctx, res); err != nil {
		slog.WarnContext(ctx, "failed to publish ingestion result", "upload_id", msg.UploadID, "error", err)
	}
}
