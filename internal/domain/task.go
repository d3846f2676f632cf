package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusCreated   TaskStatus = "created"
	TaskStatusArchived  TaskStatus = "archived"
	TaskStatusDone      TaskStatus = "done"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is the unit of work for one wiki page's citation repair. It owns
// an ordered set of sources (insertion order = citation order in the
// page content). Except for explicit cancellation, its status is a pure
// function of the child source statuses; see ResolveTaskStatus.
type Task struct {
	ID         uuid.UUID  `json:"id"`
	PageID     int64      `json:"page_id"`
	PageTitle  string     `json:"page_title"`
	RevisionID int64      `json:"revision_id"`
	Status     TaskStatus `json:"status"`
	Sources    []*Source  `json:"sources,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewTask creates a new Task in the created status for the given page.
// RevisionID is the page revision the sources were extracted from.
// Returns an error if validation fails.
func NewTask(pageID int64, pageTitle string, revisionID int64) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:         uuid.New(),
		PageID:     pageID,
		PageTitle:  pageTitle,
		RevisionID: revisionID,
		Status:     TaskStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.PageID <= 0 {
		return ErrInvalidPageID
	}

	if t.PageTitle == "" {
		return ErrEmptyPageTitle
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the task has reached a status from which
// no further transition occurs. Terminal tasks are immutable; late
// events for them are ignored by the recompute path.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskStatusDone, TaskStatusFailed, TaskStatusSkipped, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// UpdateStatus updates the task's status and the UpdatedAt timestamp.
// Returns ErrTaskTerminal if the task is already terminal and
// ErrInvalidTaskStatus if the new status is unknown.
func (t *Task) UpdateStatus(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	if t.IsTerminal() {
		return ErrTaskTerminal
	}

	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ResolveTaskStatus computes the non-terminal task status implied by the
// given source set. It is a pure function: calling it twice with the same
// sources yields the same result, which is what makes the recompute path
// idempotent and order-insensitive.
//
//   - created: at least one non-discarded source is still pending
//   - archived: every non-discarded source is terminal and at least one
//     source is checked
//   - skipped: every source ended discarded or failed with none checked
func ResolveTaskStatus(sources []*Source) TaskStatus {
	anyChecked := false

	for _, source := range sources {
		switch source.Status {
		case SourceStatusPending:
			return TaskStatusCreated
		case SourceStatusChecked:
			anyChecked = true
		}
	}

	if anyChecked {
		return TaskStatusArchived
	}

	return TaskStatusSkipped
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusCreated, TaskStatusArchived, TaskStatusDone,
		TaskStatusFailed, TaskStatusSkipped, TaskStatusCancelled:
		return true
	default:
		return false
	}
}
