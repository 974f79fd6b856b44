// Package app wires the service's components together and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradewatch/internal/api"
	"tradewatch/internal/cache"
	"tradewatch/internal/config"
	"tradewatch/internal/fetch"
	"tradewatch/internal/id"
	"tradewatch/internal/llm"
	"tradewatch/internal/pipeline"
	"tradewatch/internal/queue"
	"tradewatch/internal/robots"
	"tradewatch/internal/search"
	"tradewatch/internal/storage/memory"
	"tradewatch/internal/storage/postgres"
	"tradewatch/internal/worker"
)

// workerCount is the number of concurrent run executors.
const workerCount = 1

// App holds the assembled service.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	runs         pipeline.RunStore
	queue        *queue.Queue
	apiServer    *api.Server
	workers      []*worker.Worker
	orchestrator *pipeline.Orchestrator
	pgStore      *postgres.RunStore
}

// New builds the full dependency graph from configuration. An empty
// db.dsn selects the in-memory run store.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	var runs pipeline.RunStore
	var pgStore *postgres.RunStore
	if cfg.DB.DSN != "" {
		store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("init run store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		runs = store
		pgStore = store
	} else {
		runs = memory.NewRunStore()
	}

	cacheStore := cache.New(cfg.Storage.DataDir)
	policy := robots.NewEnforcer(cfg.Fetch.UserAgent, cfg.FetchTimeout(), logger.Named("robots"))
	fetcher := fetch.New(fetch.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateInterval: cfg.RateInterval(),
	}, cacheStore, policy, logger.Named("fetch"))

	searchClient, err := search.New(cfg.Search, cfg.FetchTimeout(), logger.Named("search"))
	if err != nil {
		return nil, err
	}
	llmClient, err := llm.New(cfg.OpenAI, logger.Named("llm"))
	if err != nil {
		return nil, err
	}

	agg := pipeline.NewAggregator(fetcher, cacheStore, llmClient, logger.Named("aggregate"))
	orchestrator := pipeline.NewOrchestrator(
		cfg, searchClient, agg, llmClient, llmClient, runs, cacheStore, logger.Named("pipeline"))

	q := queue.New(16)
	workers := make([]*worker.Worker, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		workers = append(workers, worker.New(q, orchestrator,
			logger.Named("worker").With(zap.Int("index", i))))
	}

	apiServer := api.NewServer(runs, q, id.NewGenerator(), cfg, logger.Named("api"))

	return &App{
		cfg:          cfg,
		logger:       logger,
		runs:         runs,
		queue:        q,
		apiServer:    apiServer,
		workers:      workers,
		orchestrator: orchestrator,
		pgStore:      pgStore,
	}, nil
}

// Run starts the workers and HTTP server and blocks until the context
// is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, w := range a.workers {
		go w.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()
	a.logger.Info("shutdown complete")
	return nil
}

// RunOnce executes a single run synchronously, bypassing the queue.
func (a *App) RunOnce(ctx context.Context, params pipeline.RunParams) (pipeline.Run, error) {
	runID, err := id.NewGenerator().NewID()
	if err != nil {
		return pipeline.Run{}, err
	}
	run := pipeline.Run{
		ID:        runID,
		Status:    pipeline.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
		Params:    params,
	}
	if err := a.runs.CreateRun(ctx, run); err != nil {
		return pipeline.Run{}, fmt.Errorf("create run: %w", err)
	}
	if err := a.orchestrator.Execute(ctx, run); err != nil {
		return a.mustGetRun(ctx, runID), err
	}
	return a.mustGetRun(ctx, runID), nil
}

// Runs exposes the run store for command output.
func (a *App) Runs() pipeline.RunStore {
	return a.runs
}

// Close releases held resources.
func (a *App) Close() {
	a.queue.Close()
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func (a *App) mustGetRun(ctx context.Context, runID string) pipeline.Run {
	run, err := a.runs.GetRun(ctx, runID)
	if err != nil {
		return pipeline.Run{ID: runID}
	}
	return run
}
