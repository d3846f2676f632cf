package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/api/shared"
	"github.com/wikicite/archiver/internal/service"
	"github.com/wikicite/archiver/internal/store"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		validator:   validator.New(),
		logger:      logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/tasks requests. It reads the page, builds
// the task with its sources and starts verification; processing continues
// asynchronously, so the task is returned with 202 Accepted.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	task, err := h.taskService.Create(r.Context(), req.PageID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToDTOResponse(task))
}

// GetTask handles GET /api/tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToDTOResponse(task))
}

// ListTasks handles GET /api/tasks requests with cursor pagination via
// the page_size, page_token and order_by query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	page := store.ListTasksPage{
		Token:   r.URL.Query().Get("page_token"),
		OrderBy: r.URL.Query().Get("order_by"),
	}

	if rawSize := r.URL.Query().Get("page_size"); rawSize != "" {
		size, err := strconv.Atoi(rawSize)
		if err != nil || size < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid page_size")
			return
		}
		page.Size = size
	}

	tasks, nextToken, err := h.taskService.ListTasks(r.Context(), page)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := TaskListResponse{
		Tasks:         make([]TaskResponse, 0, len(tasks)),
		NextPageToken: nextToken,
	}
	for _, task := range tasks {
		response.Tasks = append(response.Tasks, taskToDTOResponse(task))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// CancelTask handles POST /api/tasks/{id}/cancel requests.
// Cancelling a task that already reached a terminal status is a conflict.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.SetCancelled(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToDTOResponse(task))
}

// taskIDFromRequest parses the {id} URL parameter, responding with 400
// when it is not a valid UUID.
func (h *TaskHandler) taskIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
