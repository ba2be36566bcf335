package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"textvault/features/job"
	"textvault/features/stats"
	"textvault/features/upload"
	"textvault/internal/adapter/gemini"
	"textvault/internal/config"
	"textvault/internal/ingest"
	"textvault/internal/middleware"
	"textvault/internal/pipeline"
	"textvault/internal/settings"
	"textvault/internal/storage"
)

// App wires the HTTP surface and the ingestion worker from bootstrapped
// dependencies.
type App struct {
	Handler       http.Handler
	Worker        *ingest.Worker
	Queue         *ingest.Queue
	UploadService *upload.Service

	port int
}

// ChunkStore is the full chunk-side surface the app wires against.
type ChunkStore interface {
	ingest.ChunkStore
	CountChunks(ctx context.Context) (int, error)
}

func New(
	cfg *config.Config,
	db *sql.DB,
	chunkStore ChunkStore,
	blobs storage.BlobStore,
	results ingest.ResultPublisher,
) (*App, error) {

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	seedSettings(settingsService, cfg)
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Gemini (rebuilt when the configured key changes)
	geminiClient := gemini.NewDynamicClient(settingsService)
	embedder := gemini.NewDynamicEmbedder(geminiClient)
	chat := gemini.NewDynamicChat(geminiClient)

	// Ingestion core
	queue := ingest.NewQueue(cfg.QueueCapacity)
	uploadRepo := upload.NewPostgresRepo(db)
	uploadSource := &uploadSourceAdapter{repo: uploadRepo}

	builder := pipeline.NewBuilder(settingsService, embedder, chat)
	ingestService := ingest.NewService(uploadSource, blobs, builder, chunkStore, settingsService)

	// Feature: Job (failure ledger + retry)
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, queue, uploadRepo)
	jobHandler := job.NewHandler(jobService)

	worker := ingest.NewWorker(queue, ingestService, uploadSource, job.NewRecorder(jobRepo), results, ingest.WorkerConfig{
		MaxAttempts:    cfg.WorkerMaxAttempts,
		RetryBaseDelay: time.Duration(cfg.WorkerRetryBaseMs) * time.Millisecond,
		IngestTimeout:  time.Duration(cfg.IngestTimeoutSec) * time.Second,
	})

	// Feature: Upload
	uploadService := upload.NewService(uploadRepo, blobs, ingestService, queue)
	uploadHandler := upload.NewHandler(uploadService, cfg.MaxUploadSizeMB<<20)

	// Feature: Stats
	statsHandler := stats.NewHandler(uploadRepo, jobRepo, chunkStore, queue)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /uploads", middleware.CorrelationID(enableCORS(uploadHandler.Create)))
	mux.Handle("GET /uploads", middleware.CorrelationID(enableCORS(uploadHandler.List)))
	mux.Handle("GET /uploads/{id}", middleware.CorrelationID(enableCORS(uploadHandler.Get)))
	mux.Handle("PATCH /uploads/{id}/metadata", middleware.CorrelationID(enableCORS(uploadHandler.UpdateMetadata)))
	mux.Handle("DELETE /uploads/{id}", middleware.CorrelationID(enableCORS(uploadHandler.Delete)))
	mux.Handle("POST /uploads/{id}/reingest", middleware.CorrelationID(enableCORS(uploadHandler.Reingest)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:       mux,
		Worker:        worker,
		Queue:         queue,
		UploadService: uploadService,
		port:          cfg.ServerPort,
	}, nil
}

// Run serves HTTP and drains the ingestion queue until ctx is cancelled.
// On shutdown the queue stops accepting uploads first, then the server and
// worker wind down.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "port", a.port)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.Worker.Run(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Queue.Close()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// seedSettings copies config defaults into the settings row for fields the
// operator has not set yet. Only the API key is ever overwritten on top of
// an existing value, and only when that value is empty.
func seedSettings(svc *settings.Service, cfg *config.Config) {
	ctx := context.Background()
	set, err := svc.Get(ctx)
	if err != nil {
		slog.Warn("failed to fetch settings for seeding", "error", err)
		return
	}

	changed := false
	if set.GeminiAPIKey == "" && cfg.GeminiAPIKey != "" {
		set.GeminiAPIKey = cfg.GeminiAPIKey
		changed = true
	}
	if set.Collection == "" {
		set.Collection = cfg.Collection
		changed = true
	}
	if changed {
		if err := svc.Update(ctx, set); err != nil {
			slog.Warn("failed to seed settings", "error", err)
		} else {
			slog.Info("seeded settings from environment")
		}
	}
}

// uploadSourceAdapter narrows the upload repository to the view the
// ingestion core depends on.
type uploadSourceAdapter struct {
	repo upload.Repository
}

func (a *uploadSourceAdapter) Get(ctx context.Context, id string) (*ingest.Upload, error) {
	up, err := a.repo.Get(ctx, id)
	if err != nil {
		// A queued upload may have been deleted before the worker reached
		// it; that is the NotFound taxonomy, not a raw driver error.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: upload %s", ingest.ErrNotFound, id)
		}
		return nil, err
	}
	return &ingest.Upload{
		ID:          up.ID,
		Name:        up.Name,
		MediaType:   up.MediaType,
		StoragePath: up.StoragePath,
		Metadata:    up.Metadata,
	}, nil
}

func (a *uploadSourceAdapter) SetStatus(ctx context.Context, id, status string, attempts int, errMsg string) error {
	return a.repo.SetIngestState(ctx, id, status, attempts, errMsg)
}
