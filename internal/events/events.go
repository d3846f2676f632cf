package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
)

// EventType identifies a domain event emitted by the pipeline.
type EventType string

// Domain events. Source events fire on source status transitions, task
// events on task status transitions. Each event carries the full updated
// entity so handlers never need to re-read the store to act on it.
const (
	EventSourceChecked EventType = "source.checked"
	EventSourceFailed  EventType = "source.failed"
	EventTaskCreated   EventType = "task.created"
	EventTaskArchived  EventType = "task.archived"
	EventTaskDone      EventType = "task.done"
	EventTaskSkipped   EventType = "task.skipped"
	EventTaskCancelled EventType = "task.cancelled"
)

// Event is a domain event published through the emitter. Task is always
// populated; Source is populated only for source.* events.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	Task      *domain.Task   `json:"task"`
	Source    *domain.Source `json:"source,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTaskEvent creates an event for a task status transition.
func NewTaskEvent(eventType EventType, task *domain.Task) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Task:      task,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSourceEvent creates an event for a source status transition. The
// task is the source's owner at the time of the transition.
func NewSourceEvent(eventType EventType, task *domain.Task, source *domain.Source) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Task:      task,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// IsSourceEvent reports whether the event is a source.* event.
func (e *Event) IsSourceEvent() bool {
	return strings.HasPrefix(string(e.Type), "source.")
}

// IsTaskEvent reports whether the event is a task.* event.
func (e *Event) IsTaskEvent() bool {
	return strings.HasPrefix(string(e.Type), "task.")
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
