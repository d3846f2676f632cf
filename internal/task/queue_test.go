package task

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wikicite/archiver/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func analyzeFixture(t *testing.T) (*domain.Task, *domain.Source) {
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
	source.Mementos = []domain.Memento{{URI: "http://archive.test/a1"}}
	return task, source
}

func TestAnalyzeQueue(t *testing.T) {
	t.Run("enqueued job carries source context", func(t *testing.T) {
		queue := NewAnalyzeQueue(2, testLogger)
		task, source := analyzeFixture(t)

		require.NoError(t, queue.EnqueueAnalyze(context.Background(), task, source))

		job := <-queue.Jobs()
		assert.Equal(t, task.ID, job.TaskID)
		assert.Equal(t, source.ID, job.SourceID)
		assert.Equal(t, "Example Co", job.PageTitle)
		assert.Len(t, job.Mementos, 1)
	})

	t.Run("full queue rejects", func(t *testing.T) {
		queue := NewAnalyzeQueue(1, testLogger)
		task, source := analyzeFixture(t)

		require.NoError(t, queue.EnqueueAnalyze(context.Background(), task, source))
		err := queue.EnqueueAnalyze(context.Background(), task, source)
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("closed queue rejects", func(t *testing.T) {
		queue := NewAnalyzeQueue(1, testLogger)
		task, source := analyzeFixture(t)

		queue.Close()
		err := queue.EnqueueAnalyze(context.Background(), task, source)
		assert.ErrorIs(t, err, ErrQueueClosed)
	})
}

func TestWriteQueue(t *testing.T) {
	t.Run("duplicate in-flight task is dropped", func(t *testing.T) {
		queue := NewWriteQueue(4, testLogger)
		taskID := uuid.New()

		require.NoError(t, queue.Enqueue(context.Background(), taskID))
		require.NoError(t, queue.Enqueue(context.Background(), taskID))

		assert.Len(t, queue.jobs, 1)
	})

	t.Run("task can be requeued after release", func(t *testing.T) {
		queue := NewWriteQueue(4, testLogger)
		taskID := uuid.New()

		require.NoError(t, queue.Enqueue(context.Background(), taskID))
		<-queue.Jobs()
		queue.done(taskID)

		require.NoError(t, queue.Enqueue(context.Background(), taskID))
		assert.Len(t, queue.jobs, 1)
	})

	t.Run("full queue rejects distinct tasks", func(t *testing.T) {
		queue := NewWriteQueue(1, testLogger)

		require.NoError(t, queue.Enqueue(context.Background(), uuid.New()))
		err := queue.Enqueue(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("closed queue rejects", func(t *testing.T) {
		queue := NewWriteQueue(1, testLogger)
		queue.Close()
		err := queue.Enqueue(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrQueueClosed)
	})
}
