// Package worker implements the run execution loop.
package worker

import (
	"context"

	"go.uber.org/zap"

	"tradewatch/internal/pipeline"
	"tradewatch/internal/queue"
)

// Executor runs one queued run to a terminal state.
type Executor interface {
	Execute(ctx context.Context, run pipeline.Run) error
}

// Worker consumes queued runs and drives them through the orchestrator.
type Worker struct {
	queue        *queue.Queue
	orchestrator Executor
	logger       *zap.Logger
}

// New constructs a Worker.
func New(q *queue.Queue, orchestrator Executor, logger *zap.Logger) *Worker {
	return &Worker{
		queue:        q,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Run blocks, consuming runs until the context finishes or the queue
// closes. Run failures are already recorded on the run by the
// orchestrator, so the loop only logs and moves on.
func (w *Worker) Run(ctx context.Context) {
	for {
		run, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Info("run queue closed, stopping worker")
			return
		}
		w.logger.Debug("dequeued run", zap.String("run_id", run.ID))
		if err := w.orchestrator.Execute(ctx, run); err != nil {
			w.logger.Error("run execution failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}
