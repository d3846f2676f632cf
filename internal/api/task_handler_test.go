package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/hub"
	"github.com/wikicite/archiver/internal/service"
	"github.com/wikicite/archiver/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubTaskService serves canned responses for handler tests.
type stubTaskService struct {
	task      *domain.Task
	tasks     []*domain.Task
	nextToken string
	err       error

	createdPageID int64
	cancelledID   uuid.UUID
}

func (s *stubTaskService) Create(_ context.Context, pageID int64) (*domain.Task, error) {
	s.createdPageID = pageID
	return s.task, s.err
}

func (s *stubTaskService) GetTask(_ context.Context, _ uuid.UUID) (*domain.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) ListTasks(
	_ context.Context,
	_ store.ListTasksPage,
) ([]*domain.Task, string, error) {
	return s.tasks, s.nextToken, s.err
}

func (s *stubTaskService) SetCancelled(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.cancelledID = id
	return s.task, s.err
}

func (s *stubTaskService) SetDone(
	_ context.Context,
	_ uuid.UUID,
	_ int64,
) (*domain.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) SetSourceChecked(
	_ context.Context,
	_ uuid.UUID,
	_ domain.Memento,
) error {
	return s.err
}

func (s *stubTaskService) SetSourceFailed(_ context.Context, _ uuid.UUID) error {
	return s.err
}

func (s *stubTaskService) CheckForArchived(
	_ context.Context,
	_ uuid.UUID,
) (*domain.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) CheckAllForArchived(_ context.Context) ([]*domain.Task, error) {
	return s.tasks, s.err
}

var _ service.TaskService = (*stubTaskService)(nil)

func sampleTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(42, "Example Co", 1001)
	require.NoError(t, err)

	source, err := domain.NewSource(
		task.ID,
		"cite web",
		"{{cite web |url=http://example.com/a |title=A}}",
		"http://example.com/a",
		false,
		0,
	)
	require.NoError(t, err)
	require.NoError(t, source.MarkChecked(domain.Memento{
		URI:       "http://archive.test/a1",
		Timestamp: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
	}))
	task.Sources = []*domain.Source{source}
	return task
}

func newTestServer(svc service.TaskService) *httptest.Server {
	taskHandler := NewTaskHandler(svc, testLogger)
	streamHandler := NewStreamHandler(svc, hub.New(testLogger), testLogger)
	return httptest.NewServer(NewRouter(taskHandler, streamHandler))
}

func TestCreateTask(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := &stubTaskService{task: sampleTask(t)}
		server := newTestServer(svc)
		defer server.Close()

		body := bytes.NewBufferString(`{"page_id": 42}`)
		resp, err := http.Post(server.URL+"/api/tasks", "application/json", body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, int64(42), svc.createdPageID)

		var got TaskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, "Example Co", got.PageTitle)
		assert.Equal(t, "created", got.Status)
		require.Len(t, got.Sources, 1)
		assert.Equal(t, "checked", got.Sources[0].Status)
		assert.Equal(t, "http://archive.test/a1", got.Sources[0].ArchiveURL)
	})

	t.Run("invalid body", func(t *testing.T) {
		server := newTestServer(&stubTaskService{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/tasks", "application/json",
			bytes.NewBufferString(`not json`))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing page_id", func(t *testing.T) {
		server := newTestServer(&stubTaskService{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/tasks", "application/json",
			bytes.NewBufferString(`{}`))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("page not found maps to unprocessable entity", func(t *testing.T) {
		server := newTestServer(&stubTaskService{err: service.ErrPageNotFound})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/tasks", "application/json",
			bytes.NewBufferString(`{"page_id": 42}`))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestGetTask(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		task := sampleTask(t)
		server := newTestServer(&stubTaskService{task: task})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/tasks/" + task.ID.String())
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got TaskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, task.ID.String(), got.ID)
	})

	t.Run("invalid id", func(t *testing.T) {
		server := newTestServer(&stubTaskService{})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/tasks/not-a-uuid")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		server := newTestServer(&stubTaskService{err: service.ErrTaskNotFound})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/tasks/" + uuid.NewString())
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListTasks(t *testing.T) {
	t.Run("returns page with next token", func(t *testing.T) {
		svc := &stubTaskService{
			tasks:     []*domain.Task{sampleTask(t), sampleTask(t)},
			nextToken: "cursor123",
		}
		server := newTestServer(svc)
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/tasks?page_size=2")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got TaskListResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Len(t, got.Tasks, 2)
		assert.Equal(t, "cursor123", got.NextPageToken)
	})

	t.Run("rejects malformed page size", func(t *testing.T) {
		server := newTestServer(&stubTaskService{})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/tasks?page_size=lots")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid token maps to bad request", func(t *testing.T) {
		server := newTestServer(&stubTaskService{err: store.ErrInvalidPageToken})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/tasks?page_token=garbage")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCancelTask(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		task := sampleTask(t)
		task.Status = domain.TaskStatusCancelled
		svc := &stubTaskService{task: task}
		server := newTestServer(svc)
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/tasks/"+task.ID.String()+"/cancel",
			"application/json", nil)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, task.ID, svc.cancelledID)
	})

	t.Run("terminal task maps to conflict", func(t *testing.T) {
		server := newTestServer(&stubTaskService{err: service.ErrInvalidTaskState})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/tasks/"+uuid.NewString()+"/cancel",
			"application/json", nil)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}
