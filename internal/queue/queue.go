// Package queue provides the bounded in-memory run queue that connects
// the API to the worker loop.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tradewatch/internal/pipeline"
)

// ErrClosed is returned by Enqueue and Dequeue once Close has been called.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch     chan pipeline.Run
	mu     sync.RWMutex
	closed bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch: make(chan pipeline.Run, capacity),
	}
}

// Enqueue pushes a queued run or returns if the context ends. Enqueue
// after Close returns ErrClosed. The read lock is held across the send
// so Close cannot close the channel under an in-flight Enqueue.
func (q *Queue) Enqueue(ctx context.Context, run pipeline.Run) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- run:
		return nil
	}
}

// Dequeue pops the next run, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (pipeline.Run, error) {
	select {
	case <-ctx.Done():
		return pipeline.Run{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case run, ok := <-q.ch:
		if !ok {
			return pipeline.Run{}, ErrClosed
		}
		return run, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
