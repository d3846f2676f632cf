package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
)

// Common errors returned by the queues
var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// AnalyzeJob is one source verification unit of work. It carries the
// memento candidates resolved at enqueue time so the worker never talks
// to the archive lookup service.
type AnalyzeJob struct {
	TaskID    uuid.UUID
	SourceID  uuid.UUID
	PageTitle string
	Mementos  []domain.Memento
}

// AnalyzeQueue is a buffered queue of source verification jobs. It
// implements the enqueuer interface the task service expects.
type AnalyzeQueue struct {
	jobs   chan AnalyzeJob
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewAnalyzeQueue creates an analyze queue with the specified buffer size.
func NewAnalyzeQueue(size int, logger *slog.Logger) *AnalyzeQueue {
	return &AnalyzeQueue{
		jobs:   make(chan AnalyzeJob, size),
		logger: logger.With("component", "analyze_queue"),
	}
}

// EnqueueAnalyze adds a verification job for the given source.
// Returns an error if the queue is full or closed.
func (q *AnalyzeQueue) EnqueueAnalyze(
	_ context.Context,
	task *domain.Task,
	source *domain.Source,
) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	job := AnalyzeJob{
		TaskID:    task.ID,
		SourceID:  source.ID,
		PageTitle: task.PageTitle,
		Mementos:  source.Mementos,
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("analyze job enqueued",
			"task_id", job.TaskID,
			"source_id", job.SourceID,
			"memento_count", len(job.Mementos),
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Close closes the queue, preventing further submission.
func (q *AnalyzeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("analyze queue closed")
	}
}

// Jobs returns a read-only channel for consuming verification jobs.
func (q *AnalyzeQueue) Jobs() <-chan AnalyzeJob {
	return q.jobs
}

// WriteQueue is a buffered queue of write-back jobs keyed by task ID.
// A task already queued or being processed is not enqueued again, so at
// most one write-back per task is ever in flight.
type WriteQueue struct {
	jobs     chan uuid.UUID
	logger   *slog.Logger
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
	closed   bool
}

// NewWriteQueue creates a write queue with the specified buffer size.
func NewWriteQueue(size int, logger *slog.Logger) *WriteQueue {
	return &WriteQueue{
		jobs:     make(chan uuid.UUID, size),
		logger:   logger.With("component", "write_queue"),
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Enqueue schedules a write-back for the given task. A duplicate of a
// job still in flight is silently dropped. Returns an error if the
// queue is full or closed.
func (q *WriteQueue) Enqueue(_ context.Context, taskID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if _, dup := q.inFlight[taskID]; dup {
		q.logger.Debug("write-back already in flight, dropping duplicate",
			"task_id", taskID)
		return nil
	}

	select {
	case q.jobs <- taskID:
		q.inFlight[taskID] = struct{}{}
		q.logger.Debug("write-back job enqueued",
			"task_id", taskID,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// done releases the in-flight slot for the task after its write-back
// finished, successfully or not.
func (q *WriteQueue) done(taskID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, taskID)
	if len(q.inFlight) == 0 && len(q.jobs) == 0 {
		q.logger.Info("write queue drained")
	}
}

// Close closes the queue, preventing further submission.
func (q *WriteQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("write queue closed")
	}
}

// Jobs returns a read-only channel for consuming write-back jobs.
func (q *WriteQueue) Jobs() <-chan uuid.UUID {
	return q.jobs
}
