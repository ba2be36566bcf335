package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue(10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: fmt.Sprintf("u%d", i)}))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		msg := <-q.Messages()
		assert.Equal(t, fmt.Sprintf("u%d", i), msg.UploadID)
	}
}

func TestQueue_EnqueueBlocksWhenFull(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "first"}))

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Enqueue(ctx, UploadToProcess{UploadID: "second"})
	}()

	select {
	case err := <-unblocked:
		t.Fatalf("enqueue should have blocked, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// Draining one slot releases the blocked producer.
	<-q.Messages()
	select {
	case err := <-unblocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after drain")
	}
}

func TestQueue_EnqueueRespectsContext(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), UploadToProcess{UploadID: "fill"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, UploadToProcess{UploadID: "blocked"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseRejectsNewMessages(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "kept"}))
	q.Close()
	q.Close() // idempotent

	err := q.Enqueue(ctx, UploadToProcess{UploadID: "rejected"})
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Accepted messages stay readable after close.
	msg := <-q.Messages()
	assert.Equal(t, "kept", msg.UploadID)
}

func TestQueue_CloseUnblocksWaitingProducer(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: "fill"}))

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Enqueue(ctx, UploadToProcess{UploadID: "waiting"})
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-unblocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked producer did not observe close")
	}
}

func TestQueue_DefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	ctx := context.Background()
	for i := 0; i < DefaultQueueCapacity; i++ {
		require.NoError(t, q.Enqueue(ctx, UploadToProcess{UploadID: fmt.Sprintf("u%d", i)}))
	}
	assert.Equal(t, DefaultQueueCapacity, q.Len())
}
