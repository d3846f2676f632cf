package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/archive"
	"github.com/wikicite/archiver/internal/domain"
)

// SourceTransitioner is the slice of the task service the verification
// worker reports results through.
type SourceTransitioner interface {
	SetSourceChecked(ctx context.Context, sourceID uuid.UUID, memento domain.Memento) error
	SetSourceFailed(ctx context.Context, sourceID uuid.UUID) error
}

// AnalyzeWorker runs a pool of goroutines that verify memento candidates
// against their source's citing page. Mementos within one job are tried
// sequentially and the first match wins; jobs across sources run
// concurrently up to the pool size.
type AnalyzeWorker struct {
	queue      *AnalyzeQueue
	verifier   archive.Verifier
	service    SourceTransitioner
	workers    int
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewAnalyzeWorker creates a verification worker pool of the given size.
func NewAnalyzeWorker(
	queue *AnalyzeQueue,
	verifier archive.Verifier,
	service SourceTransitioner,
	workers int,
	logger *slog.Logger,
) *AnalyzeWorker {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AnalyzeWorker{
		queue:      queue,
		verifier:   verifier,
		service:    service,
		workers:    workers,
		logger:     logger.With("component", "analyze_worker"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the worker goroutines.
func (w *AnalyzeWorker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
	w.logger.Info("verification workers started", "worker_count", w.workers)
}

// Stop cancels in-flight verification and waits for the workers to exit.
func (w *AnalyzeWorker) Stop() {
	w.cancelFunc()
	w.wg.Wait()
}

func (w *AnalyzeWorker) worker(id int) {
	defer w.wg.Done()

	w.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("stopping worker", "worker_id", id)
			return

		case job, ok := <-w.queue.Jobs():
			if !ok {
				w.logger.Debug("analyze queue closed, stopping worker", "worker_id", id)
				return
			}
			w.processJob(w.ctx, job, id)
		}
	}
}

// processJob tries each memento in order until one snapshot matches the
// citing page's title. A fetch failure counts as a non-match for that
// memento. Exhausting the list fails the source.
func (w *AnalyzeWorker) processJob(ctx context.Context, job AnalyzeJob, workerID int) {
	logger := w.logger.With(
		"task_id", job.TaskID,
		"source_id", job.SourceID,
		"worker_id", workerID,
	)

	logger.Debug("verifying source", "memento_count", len(job.Mementos))

	for _, memento := range job.Mementos {
		if ctx.Err() != nil {
			logger.Debug("verification interrupted by shutdown")
			return
		}

		matched, err := w.verifier.Verify(ctx, job.PageTitle, memento.URI)
		if err != nil {
			logger.Debug("snapshot not usable, trying next memento",
				"error", err,
				"memento_uri", memento.URI)
			continue
		}
		if !matched {
			continue
		}

		logger.Info("memento verified", "memento_uri", memento.URI)
		if err := w.service.SetSourceChecked(ctx, job.SourceID, memento); err != nil {
			logger.Error("failed to record checked source", "error", err)
		}
		return
	}

	logger.Info("no memento matched, failing source")
	if err := w.service.SetSourceFailed(ctx, job.SourceID); err != nil {
		logger.Error("failed to record failed source", "error", err)
	}
}
