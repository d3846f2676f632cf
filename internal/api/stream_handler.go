package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wikicite/archiver/internal/api/shared"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/hub"
	"github.com/wikicite/archiver/internal/service"
)

// snapshotEventType labels the initial state message on a stream, before
// any transition events.
const snapshotEventType = "task.snapshot"

// StreamHandler serves task event streams over websocket. Every observer
// of a task shares the hub's per-task stream; the connection is closed
// by the server once the task reaches a terminal status.
type StreamHandler struct {
	taskService service.TaskService
	eventHub    *hub.Hub
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(taskService service.TaskService, eventHub *hub.Hub, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		taskService: taskService,
		eventHub:    eventHub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "stream_handler"),
	}
}

// StreamTask handles GET /api/tasks/{id}/stream requests. The first
// message is a snapshot of the task's current state, followed by one
// message per status transition until the task completes.
func (h *StreamHandler) StreamTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	// Subscribe before reading the snapshot so a transition arriving in
	// between is seen either in the snapshot or on the stream.
	sub := h.eventHub.Subscribe(id)

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		sub.Cancel()
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		h.logger.Debug("websocket upgrade failed", "error", err, "task_id", id)
		return
	}

	h.stream(ws, sub, task)
}

// CreateAndStreamTask handles GET /api/tasks/stream?page_id=N requests.
// It creates the task and streams its lifecycle over the same
// connection, so a caller never misses the transitions of a task that
// completes quickly.
func (h *StreamHandler) CreateAndStreamTask(w http.ResponseWriter, r *http.Request) {
	pageID, err := strconv.ParseInt(r.URL.Query().Get("page_id"), 10, 64)
	if err != nil || pageID <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid page_id")
		return
	}

	task, err := h.taskService.Create(r.Context(), pageID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	sub := h.eventHub.Subscribe(task.ID)

	// Re-read so the snapshot reflects transitions that happened between
	// creation and subscription.
	current, err := h.taskService.GetTask(r.Context(), task.ID)
	if err == nil {
		task = current
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		h.logger.Debug("websocket upgrade failed", "error", err, "task_id", task.ID)
		return
	}

	h.stream(ws, sub, task)
}

// stream pumps the subscription to the websocket until the task
// completes or the client disconnects.
func (h *StreamHandler) stream(ws *websocket.Conn, sub *hub.Subscription, task *domain.Task) {
	defer func() {
		sub.Cancel()
		_ = ws.Close()
	}()

	logger := h.logger.With("task_id", task.ID)
	logger.Debug("stream opened", "status", task.Status)

	snapshot := TaskEventMessage{
		Type: snapshotEventType,
		Task: taskToDTOResponse(task),
	}
	if err := ws.WriteJSON(snapshot); err != nil {
		logger.Debug("failed to write snapshot", "error", err)
		return
	}

	if task.IsTerminal() {
		h.writeClose(ws)
		return
	}

	// Drain incoming messages so client-initiated closes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Debug("client disconnected")
			return

		case event, ok := <-sub.C:
			if !ok {
				h.writeClose(ws)
				logger.Debug("stream completed")
				return
			}
			message := TaskEventMessage{
				Type: string(event.Type),
				Task: taskToDTOResponse(event.Task),
			}
			if err := ws.WriteJSON(message); err != nil {
				logger.Debug("failed to write event", "error", err)
				return
			}
		}
	}
}

func (h *StreamHandler) writeClose(ws *websocket.Conn) {
	_ = ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task completed"),
	)
}
