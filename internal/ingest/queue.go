package ingest

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueCapacity bounds the upload work queue when no capacity is
// configured.
const DefaultQueueCapacity = 100

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("upload queue closed")

// Queue is the bounded FIFO hand-off between upload acceptance and the
// single ingestion worker. Enqueue blocks when the queue is full: a slow
// ingestion path throttles uploads instead of dropping work. There is no
// priority and no dedup; a re-enqueued upload id is processed again.
type Queue struct {
	ch   chan UploadToProcess
	done chan struct{}
	once sync.Once
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:   make(chan UploadToProcess, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue hands a message to the worker, blocking under backpressure until
// space frees up, the queue closes, or ctx is done. Once accepted the
// message is never dropped.
func (q *Queue) Enqueue(ctx context.Context, msg UploadToProcess) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages exposes the ordered stream of queued messages to the single
// consumer. Messages accepted before Close remain readable until drained.
func (q *Queue) Messages() <-chan UploadToProcess {
	return q.ch
}

// Done is closed once the queue stops accepting new messages.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len reports the number of messages currently waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting new messages. The internal channel is left open so
// a producer blocked in Enqueue never races a close; it unblocks via Done.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
