package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wikicite/archiver/internal/archive"
	"github.com/wikicite/archiver/internal/domain"
)

// fakeVerifier matches or fails memento URIs from fixed maps and records
// the order snapshots were tried in.
type fakeVerifier struct {
	mu      sync.Mutex
	matches map[string]bool
	errs    map[string]error
	tried   []string
}

func (v *fakeVerifier) Verify(_ context.Context, _, mementoURI string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tried = append(v.tried, mementoURI)
	if err, ok := v.errs[mementoURI]; ok {
		return false, err
	}
	return v.matches[mementoURI], nil
}

func (v *fakeVerifier) triedURIs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.tried...)
}

// recordingTransitioner captures transitions and signals each one so
// tests can wait for the asynchronous worker.
type recordingTransitioner struct {
	mu      sync.Mutex
	checked map[uuid.UUID]domain.Memento
	failed  map[uuid.UUID]bool
	signal  chan uuid.UUID
}

func newRecordingTransitioner() *recordingTransitioner {
	return &recordingTransitioner{
		checked: make(map[uuid.UUID]domain.Memento),
		failed:  make(map[uuid.UUID]bool),
		signal:  make(chan uuid.UUID, 16),
	}
}

func (r *recordingTransitioner) SetSourceChecked(
	_ context.Context,
	sourceID uuid.UUID,
	memento domain.Memento,
) error {
	r.mu.Lock()
	r.checked[sourceID] = memento
	r.mu.Unlock()
	r.signal <- sourceID
	return nil
}

func (r *recordingTransitioner) SetSourceFailed(_ context.Context, sourceID uuid.UUID) error {
	r.mu.Lock()
	r.failed[sourceID] = true
	r.mu.Unlock()
	r.signal <- sourceID
	return nil
}

func (r *recordingTransitioner) checkedMemento(sourceID uuid.UUID) (domain.Memento, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	memento, ok := r.checked[sourceID]
	return memento, ok
}

func (r *recordingTransitioner) hasFailed(sourceID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[sourceID]
}

func waitForSignal(t *testing.T, signal <-chan uuid.UUID) {
	t.Helper()
	select {
	case <-signal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker to report a transition")
	}
}

func runAnalyzeJob(t *testing.T, verifier archive.Verifier, job AnalyzeJob) *recordingTransitioner {
	t.Helper()

	queue := NewAnalyzeQueue(4, testLogger)
	transitioner := newRecordingTransitioner()
	worker := NewAnalyzeWorker(queue, verifier, transitioner, 1, testLogger)

	task := &domain.Task{ID: job.TaskID, PageTitle: job.PageTitle}
	source := &domain.Source{ID: job.SourceID, TaskID: job.TaskID, Mementos: job.Mementos}
	require.NoError(t, queue.EnqueueAnalyze(context.Background(), task, source))

	worker.Start()
	defer worker.Stop()

	waitForSignal(t, transitioner.signal)
	return transitioner
}

func TestAnalyzeWorker(t *testing.T) {
	sourceID := uuid.New()

	t.Run("first matching memento wins", func(t *testing.T) {
		verifier := &fakeVerifier{matches: map[string]bool{
			"http://archive.test/a2": true,
			"http://archive.test/a3": true,
		}}
		job := AnalyzeJob{
			TaskID:    uuid.New(),
			SourceID:  sourceID,
			PageTitle: "Example Co",
			Mementos: []domain.Memento{
				{URI: "http://archive.test/a1"},
				{URI: "http://archive.test/a2"},
				{URI: "http://archive.test/a3"},
			},
		}

		transitioner := runAnalyzeJob(t, verifier, job)

		memento, ok := transitioner.checkedMemento(sourceID)
		require.True(t, ok)
		assert.Equal(t, "http://archive.test/a2", memento.URI)
		assert.False(t, transitioner.hasFailed(sourceID))

		// The third memento is never fetched once the second matched.
		assert.Equal(
			t,
			[]string{"http://archive.test/a1", "http://archive.test/a2"},
			verifier.triedURIs(),
		)
	})

	t.Run("fetch failure counts as non-match", func(t *testing.T) {
		verifier := &fakeVerifier{
			matches: map[string]bool{"http://archive.test/a2": true},
			errs:    map[string]error{"http://archive.test/a1": archive.ErrUnreachable},
		}
		job := AnalyzeJob{
			TaskID:    uuid.New(),
			SourceID:  sourceID,
			PageTitle: "Example Co",
			Mementos: []domain.Memento{
				{URI: "http://archive.test/a1"},
				{URI: "http://archive.test/a2"},
			},
		}

		transitioner := runAnalyzeJob(t, verifier, job)

		memento, ok := transitioner.checkedMemento(sourceID)
		require.True(t, ok)
		assert.Equal(t, "http://archive.test/a2", memento.URI)
	})

	t.Run("exhausted mementos fail the source", func(t *testing.T) {
		verifier := &fakeVerifier{}
		job := AnalyzeJob{
			TaskID:    uuid.New(),
			SourceID:  sourceID,
			PageTitle: "Example Co",
			Mementos: []domain.Memento{
				{URI: "http://archive.test/a1"},
				{URI: "http://archive.test/a2"},
			},
		}

		transitioner := runAnalyzeJob(t, verifier, job)

		assert.True(t, transitioner.hasFailed(sourceID))
		_, ok := transitioner.checkedMemento(sourceID)
		assert.False(t, ok)
	})

	t.Run("empty memento list fails immediately", func(t *testing.T) {
		verifier := &fakeVerifier{}
		job := AnalyzeJob{
			TaskID:    uuid.New(),
			SourceID:  sourceID,
			PageTitle: "Example Co",
		}

		transitioner := runAnalyzeJob(t, verifier, job)

		assert.True(t, transitioner.hasFailed(sourceID))
		assert.Empty(t, verifier.triedURIs())
	})
}
