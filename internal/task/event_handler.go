package task

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/events"
)

// TaskRecomputer recomputes a task's status from its stored source set.
type TaskRecomputer interface {
	CheckForArchived(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
}

// StatusEventHandler connects domain events to the processing pipeline:
// every source transition triggers a task status recompute, and a task
// reaching the archived status is handed to the write queue. Any source
// event is a trigger regardless of its specific type, so the recompute
// never depends on event delivery order.
type StatusEventHandler struct {
	recomputer TaskRecomputer
	writeQueue *WriteQueue
	logger     *slog.Logger
}

// NewStatusEventHandler creates the pipeline event handler.
func NewStatusEventHandler(
	recomputer TaskRecomputer,
	writeQueue *WriteQueue,
	logger *slog.Logger,
) *StatusEventHandler {
	return &StatusEventHandler{
		recomputer: recomputer,
		writeQueue: writeQueue,
		logger:     logger.With("component", "status_event_handler"),
	}
}

// HandleEvent implements events.EventHandler.
func (h *StatusEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	switch {
	case event.IsSourceEvent():
		h.logger.Debug("recomputing task status after source event",
			"event_type", event.Type,
			"task_id", event.Task.ID)
		if _, err := h.recomputer.CheckForArchived(ctx, event.Task.ID); err != nil {
			h.logger.Error("failed to recompute task status",
				"error", err,
				"task_id", event.Task.ID)
			return err
		}
		return nil

	case event.Type == events.EventTaskArchived:
		h.logger.Debug("scheduling write-back for archived task",
			"task_id", event.Task.ID)
		if err := h.writeQueue.Enqueue(ctx, event.Task.ID); err != nil {
			h.logger.Error("failed to enqueue write-back",
				"error", err,
				"task_id", event.Task.ID)
			return err
		}
		return nil
	}

	return nil
}

// Ensure StatusEventHandler implements events.EventHandler
var _ events.EventHandler = (*StatusEventHandler)(nil)

// Reconciler recomputes every unfinished task, returning those that are
// ready for write-back.
type Reconciler interface {
	CheckAllForArchived(ctx context.Context) ([]*domain.Task, error)
}

// Reconcile recomputes every unfinished task and requeues the archived
// ones for write-back. Run once at startup so tasks whose events were
// lost to a crash still make progress.
func Reconcile(
	ctx context.Context,
	reconciler Reconciler,
	writeQueue *WriteQueue,
	logger *slog.Logger,
) error {
	archived, err := reconciler.CheckAllForArchived(ctx)
	if err != nil {
		return err
	}

	for _, task := range archived {
		if err := writeQueue.Enqueue(ctx, task.ID); err != nil {
			logger.Error("failed to requeue archived task",
				"error", err,
				"task_id", task.ID)
		}
	}

	logger.Info("startup reconciliation finished",
		"requeued_count", len(archived))
	return nil
}
