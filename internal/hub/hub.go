// Package hub fans task events out to per-task subscriber groups. Every
// observer of a task shares one event stream: events are delivered in
// emission order and the stream is closed exactly once when the task
// reaches a terminal status.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/events"
)

// subscriptionBuffer is the per-subscriber channel capacity. A task
// produces a bounded handful of transitions, so only a consumer that
// stopped reading can exhaust the buffer; such a subscription is closed
// rather than allowed to miss transitions mid-stream.
const subscriptionBuffer = 16

// Subscription is one observer's stream of events for a single task.
// The channel is closed when the task reaches a terminal status, the
// subscription is cancelled, or the consumer falls more than
// subscriptionBuffer events behind.
type Subscription struct {
	C      <-chan *events.Event
	ch     chan *events.Event
	taskID uuid.UUID
	hub    *Hub
	once   sync.Once
}

// Cancel detaches the subscription from the hub and closes its channel.
// Safe to call more than once and after the task completed.
func (s *Subscription) Cancel() {
	s.hub.unsubscribe(s)
}

// Hub is the per-task broadcast registry. It implements
// events.EventHandler so emitted task events reach subscribers without
// the service knowing about observation.
type Hub struct {
	mu     sync.Mutex
	topics map[uuid.UUID]map[*Subscription]struct{}
	logger *slog.Logger
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger.With("component", "hub"),
	}
}

// Subscribe attaches a new observer to the given task's event stream.
// Subscribing to an already-terminal task yields a stream that closes as
// soon as no further events arrive; callers should check task status
// before deciding to wait.
func (h *Hub) Subscribe(taskID uuid.UUID) *Subscription {
	ch := make(chan *events.Event, subscriptionBuffer)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		taskID: taskID,
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[taskID]
	if !ok {
		topic = make(map[*Subscription]struct{})
		h.topics[taskID] = topic
	}
	topic[sub] = struct{}{}

	h.logger.Debug("subscriber attached",
		"task_id", taskID,
		"subscriber_count", len(topic))
	return sub
}

// SubscriberCount reports how many observers the task currently has.
func (h *Hub) SubscriberCount(taskID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[taskID])
}

// HandleEvent implements events.EventHandler. Task events are fanned out
// to the task's subscribers; once the carried task is terminal the topic
// is closed and removed. Source events are not forwarded: observers see
// them reflected in the task transitions they cause.
func (h *Hub) HandleEvent(_ context.Context, event *events.Event) error {
	if !event.IsTaskEvent() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	topic, ok := h.topics[event.Task.ID]
	if !ok {
		return nil
	}

	for sub := range topic {
		select {
		case sub.ch <- event:
		default:
			// Dropping the event would leave a gap in the stream the
			// consumer cannot detect. Ending it makes the loss visible.
			h.logger.Warn("subscriber too slow, closing its stream",
				"task_id", event.Task.ID,
				"event_type", event.Type)
			delete(topic, sub)
			sub.once.Do(func() { close(sub.ch) })
		}
	}

	if event.Task.IsTerminal() || len(topic) == 0 {
		h.closeTopicLocked(event.Task.ID)
	}
	return nil
}

// Close shuts every open stream down, e.g. on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for taskID := range h.topics {
		h.closeTopicLocked(taskID)
	}
}

func (h *Hub) closeTopicLocked(taskID uuid.UUID) {
	topic, ok := h.topics[taskID]
	if !ok {
		return
	}
	for sub := range topic {
		sub.once.Do(func() { close(sub.ch) })
	}
	delete(h.topics, taskID)
	h.logger.Debug("topic closed",
		"task_id", taskID,
		"subscriber_count", len(topic))
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if topic, ok := h.topics[sub.taskID]; ok {
		delete(topic, sub)
		if len(topic) == 0 {
			delete(h.topics, sub.taskID)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

// Ensure Hub implements events.EventHandler
var _ events.EventHandler = (*Hub)(nil)
