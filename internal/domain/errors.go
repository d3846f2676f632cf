package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrEmptyTaskID is returned when a task ID is missing.
	ErrEmptyTaskID = errors.New("task ID cannot be empty")

	// ErrEmptyPageTitle is returned when a task has no page title.
	ErrEmptyPageTitle = errors.New("page title cannot be empty")

	// ErrInvalidPageID is returned when a page ID is zero or negative.
	ErrInvalidPageID = errors.New("page ID must be positive")

	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrTaskTerminal is returned when attempting to transition a task
	// that has already reached a terminal status.
	ErrTaskTerminal = errors.New("task is in a terminal status")

	// ErrEmptySourceID is returned when a source ID is missing.
	ErrEmptySourceID = errors.New("source ID cannot be empty")

	// ErrEmptySourceTaskID is returned when a source has no owning task.
	ErrEmptySourceTaskID = errors.New("source task ID cannot be empty")

	// ErrEmptyTemplateName is returned when a source has no template name.
	ErrEmptyTemplateName = errors.New("template name cannot be empty")

	// ErrEmptyTemplateWikitext is returned when a source has no wikitext
	// fragment to replace.
	ErrEmptyTemplateWikitext = errors.New("template wikitext cannot be empty")

	// ErrInvalidSourceStatus is returned when a source status is not valid.
	ErrInvalidSourceStatus = errors.New("invalid source status")

	// ErrSourceTerminal is returned when attempting to transition a source
	// that has already reached a terminal status.
	ErrSourceTerminal = errors.New("source is in a terminal status")
)
