package service

import (
	"errors"
	"fmt"

	"github.com/wikicite/archiver/internal/store"
	"github.com/wikicite/archiver/internal/wiki"
)

// Common sentinel errors for TaskService
var (
	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrSourceNotFound indicates that the source does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrPageNotFound indicates that the wiki page does not exist.
	ErrPageNotFound = errors.New("page not found")

	// ErrInvalidTaskState indicates a mutation attempt on a task that has
	// already reached a terminal status.
	ErrInvalidTaskState = errors.New("task is in a terminal state")
)

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task").
	Operation string
	// Message is a human-readable description of the error.
	Message string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Known sentinel errors are returned directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrSourceNotFound) ||
		errors.Is(err, ErrPageNotFound) ||
		errors.Is(err, ErrInvalidTaskState) {
		return err
	}

	// Map store- and collaborator-level sentinels to service-level ones.
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	if errors.Is(err, store.ErrSourceNotFound) {
		return ErrSourceNotFound
	}
	if errors.Is(err, wiki.ErrPageNotFound) {
		return ErrPageNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
