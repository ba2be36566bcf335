package ingest

import (
	"context"
	"io"
	"iter"
	"time"

	"textvault/internal/settings"
)

// Chunk is the unit written to the chunk store: a bounded slice of a
// document's text plus its embedding and derived metadata.
type Chunk struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Context    string    `json:"context,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	// Metadata is either "" (stored as null) or a serialized JSON object.
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is the logical document a reader produces from raw upload bytes.
// A reader normally yields one document per upload, keyed by the upload id.
type Document struct {
	ID        string
	Title     string
	MediaType string
	Content   string
}

// Upload is the orchestrator's view of an upload record.
type Upload struct {
	ID          string
	Name        string
	MediaType   string
	StoragePath string
	// Metadata is the upload's own metadata as raw JSON, or "" when absent.
	Metadata string
}

// UploadToProcess is the queue message handed from upload acceptance to the
// ingestion worker. It is ephemeral and never persisted.
type UploadToProcess struct {
	UploadID      string
	CorrelationID string
}

// UploadSource is the upload-record boundary the orchestrator and worker
// depend on.
type UploadSource interface {
	Get(ctx context.Context, id string) (*Upload, error)
	SetStatus(ctx context.Context, id, status string, attempts int, errMsg string) error
}

// Upload ingestion statuses, tracked on the upload record so failures are
// observable instead of silently stalling.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ObjectStorage streams raw upload bytes out of whatever backend holds them.
type ObjectStorage interface {
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// DocumentReader parses raw bytes into a Document.
type DocumentReader interface {
	Read(ctx context.Context, r io.Reader, id, mediaType string) (*Document, error)
}

// Chunker splits a document into an ordered, finite, lazy sequence of
// chunks covering the whole document with configured overlap.
type Chunker interface {
	Chunk(ctx context.Context, doc *Document) iter.Seq2[Chunk, error]
}

// DocumentEnricher transforms a document before chunking (e.g. fills in
// alt text for embedded images).
type DocumentEnricher interface {
	Process(ctx context.Context, doc *Document) (*Document, error)
}

// ChunkEnricher transforms the chunk sequence lazily (e.g. a summarizer).
type ChunkEnricher interface {
	Process(ctx context.Context, chunks iter.Seq2[Chunk, error]) iter.Seq2[Chunk, error]
}

// Embedder generates a fixed-length vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pipeline is the capability set the builder assembles for one upload.
type Pipeline struct {
	Reader            DocumentReader
	Chunker           Chunker
	DocumentEnrichers []DocumentEnricher
	ChunkEnrichers    []ChunkEnricher
	Embedder          Embedder
}

// PipelineBuilder assembles the pipeline for an upload based on its content
// type and the current runtime settings.
type PipelineBuilder interface {
	Build(ctx context.Context, upload *Upload) (*Pipeline, error)
}

// ChunkStore is durable keyed storage for ingested chunks, scoped by the
// owning upload's id.
type ChunkStore interface {
	// Write persists the full chunk batch for one sourceID. In incremental
	// mode prior chunks for the sourceID are replaced; otherwise chunks are
	// appended. The write is atomic per sourceID: on failure no partial
	// batch remains.
	Write(ctx context.Context, sourceID string, chunks []Chunk, embeddingDims int, incremental bool) error
	// Query returns all chunks for sourceID ordered by createdAt ascending.
	Query(ctx context.Context, sourceID string) ([]Chunk, error)
	// UpdateMetadata persists a chunk's metadata field only.
	UpdateMetadata(ctx context.Context, chunkID, metadata string) error
	DeleteBySourceID(ctx context.Context, sourceID string) error
}

// SettingsSource provides the runtime pipeline settings. The orchestrator
// re-reads it per ingestion so retuned deployments take effect immediately.
type SettingsSource interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Result is the outcome of one worker-driven ingestion, published to
// interested services.
type Result struct {
	UploadID      string    `json:"upload_id"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Attempts      int       `json:"attempts"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

// ResultPublisher fans ingestion outcomes out to other services.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res Result) error
}

// FailureRecorder keeps a durable ledger of terminal ingestion failures so
// an operator can inspect and retry them.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, uploadID string, cause error) error
}
