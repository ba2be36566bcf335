package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"textvault/internal/middleware"
)

type UploadRepo interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type ChunkStore interface {
	CountChunks(ctx context.Context) (int, error)
}

// QueueLener reports current work-queue depth.
type QueueLener interface {
	Len() int
}

type Handler struct {
	uploadRepo UploadRepo
	jobRepo    JobRepo
	chunkStore ChunkStore
	queue      QueueLener
}

func NewHandler(u UploadRepo, j JobRepo, c ChunkStore, q QueueLener) *Handler {
	return &Handler{uploadRepo: u, jobRepo: j, chunkStore: c, queue: q}
}

type StatsResponse struct {
	Uploads    int `json:"uploads"`
	Chunks     int `json:"chunks"`
	FailedJobs int `json:"failed_jobs"`
	QueueDepth int `json:"queue_depth"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uCount, err := h.uploadRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count uploads", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count uploads", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	cCount, err := h.chunkStore.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Uploads:    uCount,
		Chunks:     cCount,
		FailedJobs: jCount,
		QueueDepth: h.queue.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
