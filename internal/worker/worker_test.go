package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradewatch/internal/pipeline"
	"tradewatch/internal/queue"
)

type recordingExecutor struct {
	mu   sync.Mutex
	ids  []string
	errs map[string]error
	done chan string
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{
		errs: make(map[string]error),
		done: make(chan string, 16),
	}
}

func (r *recordingExecutor) Execute(_ context.Context, run pipeline.Run) error {
	r.mu.Lock()
	r.ids = append(r.ids, run.ID)
	err := r.errs[run.ID]
	r.mu.Unlock()
	r.done <- run.ID
	return err
}

func (r *recordingExecutor) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func TestWorkerExecutesQueuedRuns(t *testing.T) {
	t.Parallel()

	q := queue.New(4)
	exec := newRecordingExecutor()
	w := New(q, exec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, pipeline.Run{ID: "run-1"}))
	require.NoError(t, q.Enqueue(ctx, pipeline.Run{ID: "run-2"}))

	for i := 0; i < 2; i++ {
		select {
		case <-exec.done:
		case <-time.After(time.Second):
			t.Fatal("worker did not execute run")
		}
	}
	assert.Equal(t, []string{"run-1", "run-2"}, exec.executed())
}

func TestWorkerContinuesAfterExecutionError(t *testing.T) {
	t.Parallel()

	q := queue.New(4)
	exec := newRecordingExecutor()
	exec.errs["run-bad"] = fmt.Errorf("synthesize: boom")
	w := New(q, exec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, pipeline.Run{ID: "run-bad"}))
	require.NoError(t, q.Enqueue(ctx, pipeline.Run{ID: "run-good"}))

	for i := 0; i < 2; i++ {
		select {
		case <-exec.done:
		case <-time.After(time.Second):
			t.Fatal("worker stalled after error")
		}
	}
	assert.Equal(t, []string{"run-bad", "run-good"}, exec.executed())
}

func TestWorkerStopsOnQueueClose(t *testing.T) {
	t.Parallel()

	q := queue.New(1)
	w := New(q, newRecordingExecutor(), zap.NewNop())

	stopped := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(stopped)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on queue close")
	}
}
