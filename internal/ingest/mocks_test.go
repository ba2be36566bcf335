package ingest

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/stretchr/testify/mock"

	"textvault/internal/settings"
)

type MockUploadSource struct{ mock.Mock }

func (m *MockUploadSource) Get(ctx context.Context, id string) (*Upload, error) {
	args := m.Called(ctx, id)
	if up := args.Get(0); up != nil {
		return up.(*Upload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUploadSource) SetStatus(ctx context.Context, id, status string, attempts int, errMsg string) error {
	args := m.Called(ctx, id, status, attempts, errMsg)
	return args.Error(0)
}

type MockObjectStorage struct{ mock.Mock }

func (m *MockObjectStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockChunkStore struct{ mock.Mock }

func (m *MockChunkStore) Write(ctx context.Context, sourceID string, chunks []Chunk, embeddingDims int, incremental bool) error {
	args := m.Called(ctx, sourceID, chunks, embeddingDims, incremental)
	return args.Error(0)
}

func (m *MockChunkStore) Query(ctx context.Context, sourceID string) ([]Chunk, error) {
	args := m.Called(ctx, sourceID)
	if c := args.Get(0); c != nil {
		return c.([]Chunk), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChunkStore) UpdateMetadata(ctx context.Context, chunkID, metadata string) error {
	args := m.Called(ctx, chunkID, metadata)
	return args.Error(0)
}

func (m *MockChunkStore) DeleteBySourceID(ctx context.Context, sourceID string) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSettingsSource struct{ mock.Mock }

func (m *MockSettingsSource) Get(ctx context.Context) (*settings.Settings, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*settings.Settings), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockFailureRecorder struct{ mock.Mock }

func (m *MockFailureRecorder) RecordFailure(ctx context.Context, uploadID string, cause error) error {
	args := m.Called(ctx, uploadID, cause)
	return args.Error(0)
}

type MockResultPublisher struct{ mock.Mock }

func (m *MockResultPublisher) PublishResult(ctx context.Context, res Result) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

// Simple pipeline fakes used by service tests. The reader splits nothing;
// the chunker yields fixed-size word windows.

type stubReader struct{}

func (stubReader) Read(_ context.Context, r io.Reader, id, mediaType string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, MediaType: mediaType, Content: string(data)}, nil
}

type lineChunker struct{}

func (lineChunker) Chunk(_ context.Context, doc *Document) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for _, line := range strings.Split(doc.Content, "\n") {
			if line == "" {
				continue
			}
			if !yield(Chunk{DocumentID: doc.ID, Content: line}, nil) {
				return
			}
		}
	}
}

type metadataStamper struct{ metadata string }

func (s metadataStamper) Process(_ context.Context, seq iter.Seq2[Chunk, error]) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for c, err := range seq {
			if err == nil {
				c.Metadata = s.metadata
			}
			if !yield(c, err) {
				return
			}
		}
	}
}

type stubBuilder struct {
	pipeline *Pipeline
	err      error
}

func (b *stubBuilder) Build(context.Context, *Upload) (*Pipeline, error) {
	return b.pipeline, b.err
}
