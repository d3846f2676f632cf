package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/archive"
	"github.com/wikicite/archiver/internal/citetemplates"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/events"
	"github.com/wikicite/archiver/internal/store"
	"github.com/wikicite/archiver/internal/wiki"
)

// AnalyzeEnqueuer submits one verification job per source. Implemented
// by the analyze queue; defined here so the service does not depend on
// the queue package.
type AnalyzeEnqueuer interface {
	EnqueueAnalyze(ctx context.Context, task *domain.Task, source *domain.Source) error
}

// TaskService owns the task/source state machine: it creates tasks from
// live page content, applies source transitions reported by the
// verification worker, and recomputes task status idempotently from the
// stored source set.
type TaskService interface {
	// Create extracts citation templates from the page's current content,
	// builds the task and its sources, enqueues one analyze job per
	// pending source, and returns the created task.
	Create(ctx context.Context, pageID int64) (*domain.Task, error)

	// GetTask retrieves a task with its sources.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListTasks returns one page of tasks and the next page cursor.
	ListTasks(ctx context.Context, page store.ListTasksPage) ([]*domain.Task, string, error)

	// SetCancelled cancels a non-terminal task.
	// Returns ErrInvalidTaskState if the task is already terminal.
	SetCancelled(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// SetDone marks a task done with the revision created by write-back.
	// A terminal task is left untouched; the late transition is ignored.
	SetDone(ctx context.Context, id uuid.UUID, newRevisionID int64) (*domain.Task, error)

	// SetSourceChecked records a verified memento match for a source and
	// emits the source.checked event. Late calls against sources of
	// terminal tasks are ignored.
	SetSourceChecked(ctx context.Context, sourceID uuid.UUID, memento domain.Memento) error

	// SetSourceFailed records that a source exhausted its mementos
	// without a match and emits the source.failed event.
	SetSourceFailed(ctx context.Context, sourceID uuid.UUID) error

	// CheckForArchived recomputes the task's status from its current
	// source set. Idempotent and safe to call redundantly: the
	// task.archived event fires only on an actual transition.
	CheckForArchived(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// CheckAllForArchived recomputes every non-terminal task and returns
	// those in the archived status. Used on process restart to reconcile
	// any missed events.
	CheckAllForArchived(ctx context.Context) ([]*domain.Task, error)
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	txRunner      store.TxRunner
	taskStore     store.TaskStore
	sourceStore   store.SourceStore
	wikiClient    wiki.Client
	archiveClient archive.Client
	registry      *citetemplates.Registry
	analyzeQueue  AnalyzeEnqueuer
	eventEmitter  events.EventEmitter
	logger        *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	txRunner store.TxRunner,
	taskStore store.TaskStore,
	sourceStore store.SourceStore,
	wikiClient wiki.Client,
	archiveClient archive.Client,
	registry *citetemplates.Registry,
	analyzeQueue AnalyzeEnqueuer,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (TaskService, error) {
	if txRunner == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "txRunner cannot be nil"}
	}
	if taskStore == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "taskStore cannot be nil"}
	}
	if sourceStore == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "sourceStore cannot be nil"}
	}
	if wikiClient == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "wikiClient cannot be nil"}
	}
	if archiveClient == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "archiveClient cannot be nil"}
	}
	if registry == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "registry cannot be nil"}
	}
	if analyzeQueue == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "analyzeQueue cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		txRunner:      txRunner,
		taskStore:     taskStore,
		sourceStore:   sourceStore,
		wikiClient:    wikiClient,
		archiveClient: archiveClient,
		registry:      registry,
		analyzeQueue:  analyzeQueue,
		eventEmitter:  eventEmitter,
		logger:        logger.With("component", "task_service"),
	}, nil
}

// Create implements TaskService.Create.
func (s *taskServiceImpl) Create(ctx context.Context, pageID int64) (*domain.Task, error) {
	page, err := s.wikiClient.ReadPage(ctx, pageID)
	if err != nil {
		s.logger.Error("failed to read page for task creation",
			"error", err,
			"page_id", pageID)
		return nil, NewTaskServiceError("create_task", "failed to read page", err)
	}

	task, err := domain.NewTask(pageID, page.Title, page.RevisionID)
	if err != nil {
		return nil, NewTaskServiceError("create_task", "failed to build task", err)
	}

	citations := wiki.ExtractCitations(page.Content, s.registry)
	sources := make([]*domain.Source, 0, len(citations))
	for i, citation := range citations {
		source, err := domain.NewSource(
			task.ID,
			citation.TemplateName,
			citation.Wikitext,
			citation.URL,
			citation.Dead,
			i,
		)
		if err != nil {
			return nil, NewTaskServiceError("create_task", "failed to build source", err)
		}

		// Citations without an original URL, and citations that already
		// carry archive parameters, are out of scope for verification.
		if citation.URL == "" || citation.AlreadyArchived {
			if err := source.MarkDiscarded(); err != nil {
				return nil, NewTaskServiceError("create_task", "failed to discard source", err)
			}
		}

		sources = append(sources, source)
	}
	task.Sources = sources

	err = s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTaskStore := s.taskStore.WithTx(tx)
		txSourceStore := s.sourceStore.WithTx(tx)

		if err := txTaskStore.Create(ctx, task); err != nil {
			return NewTaskServiceError("create_task", "failed to save task", err)
		}
		for _, source := range sources {
			if err := txSourceStore.Create(ctx, source); err != nil {
				return NewTaskServiceError("create_task", "failed to save source", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"page_id", pageID,
		"page_title", page.Title,
		"source_count", len(sources))

	if err := s.eventEmitter.EmitEvent(ctx, events.NewTaskEvent(events.EventTaskCreated, task)); err != nil {
		s.logger.Error("failed to emit task created event",
			"error", err,
			"task_id", task.ID)
	}

	pending := 0
	for _, source := range sources {
		if source.Status != domain.SourceStatusPending {
			continue
		}
		pending++
		s.scheduleAnalyze(ctx, task, source)
	}

	// A task with nothing to verify settles immediately.
	if pending == 0 {
		return s.CheckForArchived(ctx, task.ID)
	}

	return task, nil
}

// scheduleAnalyze looks up memento candidates for the source and hands
// it to the analyze queue. Lookup failure is transient I/O: the job is
// enqueued with no mementos and the worker fails the source.
func (s *taskServiceImpl) scheduleAnalyze(ctx context.Context, task *domain.Task, source *domain.Source) {
	mementos, err := s.archiveClient.ListMementos(ctx, source.URL, time.Now().UTC())
	if err != nil {
		s.logger.Warn("memento lookup failed, source will fail verification",
			"error", err,
			"source_id", source.ID,
			"url", source.URL)
	}
	source.Mementos = mementos

	if err := s.sourceStore.Update(ctx, source); err != nil {
		s.logger.Error("failed to save source mementos",
			"error", err,
			"source_id", source.ID)
	}

	if err := s.analyzeQueue.EnqueueAnalyze(ctx, task, source); err != nil {
		s.logger.Error("failed to enqueue analyze job",
			"error", err,
			"task_id", task.ID,
			"source_id", source.ID)
	}
}

// GetTask implements TaskService.GetTask.
func (s *taskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// ListTasks implements TaskService.ListTasks.
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	page store.ListTasksPage,
) ([]*domain.Task, string, error) {
	tasks, nextToken, err := s.taskStore.List(ctx, page)
	if err != nil {
		return nil, "", NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nextToken, nil
}

// SetCancelled implements TaskService.SetCancelled.
func (s *taskServiceImpl) SetCancelled(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var task *domain.Task

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTaskStore := s.taskStore.WithTx(tx)

		var err error
		task, err = txTaskStore.GetByIDForUpdate(ctx, id)
		if err != nil {
			return NewTaskServiceError("cancel_task", "failed to retrieve task", err)
		}

		if task.IsTerminal() {
			return ErrInvalidTaskState
		}

		if err := task.UpdateStatus(domain.TaskStatusCancelled); err != nil {
			return NewTaskServiceError("cancel_task", "failed to update status", err)
		}
		return txTaskStore.UpdateStatus(ctx, id, domain.TaskStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task cancelled", "task_id", id)
	s.emitTaskEvent(ctx, events.EventTaskCancelled, task)
	return task, nil
}

// SetDone implements TaskService.SetDone.
func (s *taskServiceImpl) SetDone(
	ctx context.Context,
	id uuid.UUID,
	newRevisionID int64,
) (*domain.Task, error) {
	var task *domain.Task
	var done bool

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTaskStore := s.taskStore.WithTx(tx)

		var err error
		task, err = txTaskStore.GetByIDForUpdate(ctx, id)
		if err != nil {
			return NewTaskServiceError("set_done", "failed to retrieve task", err)
		}

		if task.IsTerminal() {
			// The edit is already committed; a cancellation that raced it
			// just means nobody is watching anymore.
			s.logger.Warn("ignoring done transition for terminal task",
				"task_id", id,
				"status", task.Status)
			return nil
		}

		if err := task.UpdateStatus(domain.TaskStatusDone); err != nil {
			return NewTaskServiceError("set_done", "failed to update status", err)
		}
		task.RevisionID = newRevisionID
		done = true
		return txTaskStore.SetDone(ctx, id, newRevisionID)
	})
	if err != nil {
		return nil, err
	}

	if done {
		s.logger.Info("task done",
			"task_id", id,
			"new_revision_id", newRevisionID)
		s.emitTaskEvent(ctx, events.EventTaskDone, task)
	}
	return task, nil
}

// SetSourceChecked implements TaskService.SetSourceChecked.
func (s *taskServiceImpl) SetSourceChecked(
	ctx context.Context,
	sourceID uuid.UUID,
	memento domain.Memento,
) error {
	return s.transitionSource(
		ctx,
		sourceID,
		events.EventSourceChecked,
		func(source *domain.Source) error {
			return source.MarkChecked(memento)
		},
	)
}

// SetSourceFailed implements TaskService.SetSourceFailed.
func (s *taskServiceImpl) SetSourceFailed(ctx context.Context, sourceID uuid.UUID) error {
	return s.transitionSource(
		ctx,
		sourceID,
		events.EventSourceFailed,
		func(source *domain.Source) error {
			return source.MarkFailed()
		},
	)
}

// transitionSource applies a terminal transition to a source and emits
// the corresponding source event exactly once. Transitions against
// sources of terminal tasks, and repeated transitions, are ignored.
func (s *taskServiceImpl) transitionSource(
	ctx context.Context,
	sourceID uuid.UUID,
	eventType events.EventType,
	transition func(*domain.Source) error,
) error {
	var task *domain.Task
	var source *domain.Source
	var applied bool

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTaskStore := s.taskStore.WithTx(tx)
		txSourceStore := s.sourceStore.WithTx(tx)

		var err error
		source, err = txSourceStore.GetByID(ctx, sourceID)
		if err != nil {
			return NewTaskServiceError("transition_source", "failed to retrieve source", err)
		}

		task, err = txTaskStore.GetByIDForUpdate(ctx, source.TaskID)
		if err != nil {
			return NewTaskServiceError("transition_source", "failed to retrieve task", err)
		}

		if task.IsTerminal() {
			s.logger.Debug("ignoring source transition for terminal task",
				"task_id", task.ID,
				"source_id", sourceID,
				"task_status", task.Status)
			return nil
		}

		if err := transition(source); err != nil {
			if errors.Is(err, domain.ErrSourceTerminal) {
				s.logger.Warn("ignoring repeated source transition",
					"source_id", sourceID,
					"status", source.Status)
				return nil
			}
			return NewTaskServiceError("transition_source", "failed to transition source", err)
		}

		if err := txSourceStore.Update(ctx, source); err != nil {
			return NewTaskServiceError("transition_source", "failed to save source", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.logger.Info("source transitioned",
		"source_id", sourceID,
		"task_id", task.ID,
		"status", source.Status)

	if err := s.eventEmitter.EmitEvent(ctx, events.NewSourceEvent(eventType, task, source)); err != nil {
		s.logger.Error("failed to emit source event",
			"error", err,
			"event_type", eventType,
			"source_id", sourceID)
	}
	return nil
}

// CheckForArchived implements TaskService.CheckForArchived.
//
// Recomputation reads the task row under lock and derives the status
// purely from the stored source set, so concurrent source events for the
// same task serialize here instead of losing updates. The archived
// event is emitted only when the status actually changes, which keeps
// redundant calls from re-triggering write-back.
func (s *taskServiceImpl) CheckForArchived(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	var task *domain.Task
	var transition events.EventType

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTaskStore := s.taskStore.WithTx(tx)

		var err error
		task, err = txTaskStore.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return NewTaskServiceError("check_for_archived", "failed to retrieve task", err)
		}

		if task.IsTerminal() {
			return nil
		}

		newStatus := domain.ResolveTaskStatus(task.Sources)
		if newStatus == task.Status {
			return nil
		}

		if err := task.UpdateStatus(newStatus); err != nil {
			return NewTaskServiceError("check_for_archived", "failed to update status", err)
		}
		if err := txTaskStore.UpdateStatus(ctx, taskID, newStatus); err != nil {
			return NewTaskServiceError("check_for_archived", "failed to save status", err)
		}

		switch newStatus {
		case domain.TaskStatusArchived:
			transition = events.EventTaskArchived
		case domain.TaskStatusSkipped:
			transition = events.EventTaskSkipped
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transition != "" {
		s.logger.Info("task status recomputed",
			"task_id", taskID,
			"status", task.Status)
		s.emitTaskEvent(ctx, transition, task)
	}
	return task, nil
}

// CheckAllForArchived implements TaskService.CheckAllForArchived.
func (s *taskServiceImpl) CheckAllForArchived(ctx context.Context) ([]*domain.Task, error) {
	candidates, err := s.taskStore.FindByStatus(
		ctx,
		domain.TaskStatusCreated,
		domain.TaskStatusArchived,
	)
	if err != nil {
		return nil, NewTaskServiceError("check_all_for_archived", "failed to list tasks", err)
	}

	var archived []*domain.Task
	for _, candidate := range candidates {
		task := candidate
		if task.Status == domain.TaskStatusCreated {
			task, err = s.CheckForArchived(ctx, task.ID)
			if err != nil {
				s.logger.Error("failed to recompute task during reconciliation",
					"error", err,
					"task_id", candidate.ID)
				continue
			}
		}
		if task.Status == domain.TaskStatusArchived {
			archived = append(archived, task)
		}
	}

	s.logger.Info("reconciliation completed",
		"candidate_count", len(candidates),
		"archived_count", len(archived))
	return archived, nil
}

func (s *taskServiceImpl) emitTaskEvent(ctx context.Context, eventType events.EventType, task *domain.Task) {
	if err := s.eventEmitter.EmitEvent(ctx, events.NewTaskEvent(eventType, task)); err != nil {
		s.logger.Error("failed to emit task event",
			"error", err,
			"event_type", eventType,
			"task_id", task.ID)
	}
}
