package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedIngestor fails a fixed number of times before succeeding.
type scriptedIngestor struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (s *scriptedIngestor) Ingest(ctx context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return nil
}

func (s *scriptedIngestor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func runWorkerUntilIdle(t *testing.T, w *Worker, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("queue did not drain")
		case <-time.After(10 * time.Millisecond):
		}
	}
	// Give the in-flight message time to finish.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done
}

func workerConfig() WorkerConfig {
	return WorkerConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}
}

func TestWorker_SuccessMarksCompleted(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	results := new(MockResultPublisher)
	ing := &scriptedIngestor{}

	uploads.On("SetStatus", mock.Anything, "u1", StatusProcessing, 0, "").Return(nil)
	uploads.On("SetStatus", mock.Anything, "u1", StatusCompleted, 1, "").Return(nil)
	results.On("PublishResult", mock.Anything, mock.MatchedBy(func(r Result) bool {
		return r.UploadID == "u1" && r.Status == StatusCompleted && r.Attempts == 1
	})).Return(nil)

	require.NoError(t, q.Enqueue(context.Background(), UploadToProcess{UploadID: "u1", CorrelationID: "cid"}))

	w := NewWorker(q, ing, uploads, nil, results, workerConfig())
	runWorkerUntilIdle(t, w, q)

	uploads.AssertExpectations(t)
	results.AssertExpectations(t)
	assert.Equal(t, 1, ing.callCount())
}

func TestWorker_TransientFailureRetriesThenSucceeds(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	ing := &scriptedIngestor{failures: 2, err: fmt.Errorf("%w: flaky", ErrTransient)}

	uploads.On("SetStatus", mock.Anything, "u1", StatusProcessing, 0, "").Return(nil)
	uploads.On("SetStatus", mock.Anything, "u1", StatusCompleted, 3, "").Return(nil)

	require.NoError(t, q.Enqueue(context.Background(), UploadToProcess{UploadID: "u1"}))

	w := NewWorker(q, ing, uploads, nil, nil, workerConfig())
	runWorkerUntilIdle(t, w, q)

	uploads.AssertExpectations(t)
	assert.Equal(t, 3, ing.callCount())
}

func TestWorker_TransientFailureExhaustsRetries(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	failures := new(MockFailureRecorder)
	results := new(MockResultPublisher)
	ing := &scriptedIngestor{failures: 10, err: fmt.Errorf("%w: always down", ErrTransient)}

	uploads.On("SetStatus", mock.Anything, "u1", StatusProcessing, 0, "").Return(nil)
	uploads.On("SetStatus", mock.Anything, "u1", StatusFailed, 3, mock.Anything).Return(nil)
	failures.On("RecordFailure", mock.Anything, "u1", mock.Anything).Return(nil)
	results.On("PublishResult", mock.Anything, mock.MatchedBy(func(r Result) bool {
		return r.Status == StatusFailed && r.Error != ""
	})).Return(nil)

	require.NoError(t, q.Enqueue(context.Background(), UploadToProcess{UploadID: "u1"}))

	w := NewWorker(q, ing, uploads, failures, results, workerConfig())
	runWorkerUntilIdle(t, w, q)

	uploads.AssertExpectations(t)
	failures.AssertExpectations(t)
	assert.Equal(t, 3, ing.callCount())
}

func TestWorker_PermanentFailureDoesNotRetry(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	failures := new(MockFailureRecorder)
	ing := &scriptedIngestor{failures: 10, err: fmt.Errorf("%w: no reader for media type", ErrUnsupportedFormat)}

	uploads.On("SetStatus", mock.Anything, "u1", StatusProcessing, 0, "").Return(nil)
	uploads.On("SetStatus", mock.Anything, "u1", StatusFailed, 1, mock.Anything).Return(nil)
	failures.On("RecordFailure", mock.Anything, "u1", mock.Anything).Return(nil)

	require.NoError(t, q.Enqueue(context.Background(), UploadToProcess{UploadID: "u1"}))

	w := NewWorker(q, ing, uploads, failures, nil, workerConfig())
	runWorkerUntilIdle(t, w, q)

	assert.Equal(t, 1, ing.callCount())
	uploads.AssertExpectations(t)
}

func TestWorker_MissingUploadSkippedWithoutLedgerEntry(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	failures := new(MockFailureRecorder)
	results := new(MockResultPublisher)
	// The upload was deleted while its message sat in the queue.
	ing := &scriptedIngestor{failures: 10, err: fmt.Errorf("%w: upload u1", ErrNotFound)}

	uploads.On("SetStatus", mock.Anything, "u1", StatusProcessing, 0, "").Return(nil)

	require.NoError(t, q.Enqueue(context.Background(), UploadToProcess{UploadID: "u1"}))

	w := NewWorker(q, ing, uploads, failures, results, workerConfig())
	runWorkerUntilIdle(t, w, q)

	assert.Equal(t, 1, ing.callCount())
	uploads.AssertNotCalled(t, "SetStatus", mock.Anything, "u1", StatusFailed, mock.Anything, mock.Anything)
	failures.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything)
	results.AssertNotCalled(t, "PublishResult", mock.Anything, mock.Anything)
}

func TestWorker_DrainsBacklogAfterClose(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	uploads.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	var processed []string
	ing := ingestorFunc(func(ctx context.Context, uploadID string) error {
		mu.Lock()
		processed = append(processed, uploadID)
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "a"}))
	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "b"}))
	q.Close()

	w := NewWorker(q, ing, uploads, nil, nil, workerConfig())
	done := make(chan struct{})
	go func() {
		// No cancellation: Run must return on its own once the backlog is
		// drained.
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after draining the closed queue")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, processed)
}

func TestWorker_FailureDoesNotStopLoop(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	uploads.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	var processed []string
	ing := ingestorFunc(func(ctx context.Context, uploadID string) error {
		mu.Lock()
		processed = append(processed, uploadID)
		mu.Unlock()
		if uploadID == "bad" {
			return errors.New("permanent failure")
		}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "bad"}))
	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "good"}))

	w := NewWorker(q, ing, uploads, nil, nil, workerConfig())
	runWorkerUntilIdle(t, w, q)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"bad", "good"}, processed)
}

type ingestorFunc func(ctx context.Context, uploadID string) error

func (f ingestorFunc) Ingest(ctx context.Context, uploadID string) error { return f(ctx, uploadID) }

func TestWorker_StopsOnContextCancel(t *testing.T) {
	q := NewQueue(10)
	uploads := new(MockUploadSource)
	w := NewWorker(q, &scriptedIngestor{}, uploads, nil, nil, workerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
