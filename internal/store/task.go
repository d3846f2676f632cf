package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
)

// ListTasksPage describes one page of a cursor-paginated task listing.
type ListTasksPage struct {
	// Size is the maximum number of tasks to return. Implementations
	// apply a default when zero and clamp oversized values.
	Size int

	// Token is the opaque cursor returned by a previous listing, or
	// empty for the first page.
	Token string

	// OrderBy selects the sort column. Only "created_at" (default) and
	// "updated_at" are supported.
	OrderBy string
}

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// Create saves a new task to the store. It does not persist the
	// task's sources; use SourceStore within the same transaction.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID, with its sources loaded
	// in citation order. Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByIDForUpdate retrieves a task like GetByID but locks the task
	// row for the duration of the surrounding transaction. Callers use
	// this to make read-then-write status recomputation a single logical
	// step when concurrent source events target the same task.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateStatus updates the status of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error

	// SetDone marks a task done and records the revision created by the
	// write-back commit. Returns ErrTaskNotFound if the task does not exist.
	SetDone(ctx context.Context, id uuid.UUID, newRevisionID int64) error

	// List returns one page of tasks ordered newest-first along with the
	// cursor for the next page, empty when the listing is exhausted.
	// Sources are not loaded. Returns ErrInvalidPageToken for a cursor
	// that cannot be decoded.
	List(ctx context.Context, page ListTasksPage) ([]*domain.Task, string, error)

	// FindByStatus retrieves all tasks in any of the given statuses, with
	// sources loaded. Used by startup reconciliation.
	FindByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller
	// (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
