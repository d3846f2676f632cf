package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/store"
	"github.com/wikicite/archiver/internal/wiki"
)

// fakeTxRunner executes the function directly; the in-memory stores
// ignore the nil transaction.
type fakeTxRunner struct{}

func (fakeTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}

// memStore is a shared in-memory backing for the task and source store
// fakes so both see the same aggregate.
type memStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*domain.Task
	sources map[uuid.UUID]*domain.Source
}

func newMemStore() *memStore {
	return &memStore{
		tasks:   make(map[uuid.UUID]*domain.Task),
		sources: make(map[uuid.UUID]*domain.Source),
	}
}

func (m *memStore) sourcesForTask(taskID uuid.UUID) []*domain.Source {
	var sources []*domain.Source
	for _, source := range m.sources {
		if source.TaskID == taskID {
			sources = append(sources, source)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Position < sources[j].Position
	})
	return sources
}

type memTaskStore struct{ m *memStore }

func (s *memTaskStore) Create(_ context.Context, task *domain.Task) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	clone := *task
	s.m.tasks[task.ID] = &clone
	return nil
}

func (s *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	task, ok := s.m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *task
	clone.Sources = s.m.sourcesForTask(id)
	return &clone, nil
}

func (s *memTaskStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.GetByID(ctx, id)
}

func (s *memTaskStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	task, ok := s.m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memTaskStore) SetDone(_ context.Context, id uuid.UUID, newRevisionID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	task, ok := s.m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.Status = domain.TaskStatusDone
	task.RevisionID = newRevisionID
	task.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memTaskStore) List(
	_ context.Context,
	page store.ListTasksPage,
) ([]*domain.Task, string, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var tasks []*domain.Task
	for _, task := range s.m.tasks {
		clone := *task
		tasks = append(tasks, &clone)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if page.Size > 0 && len(tasks) > page.Size {
		tasks = tasks[:page.Size]
	}
	return tasks, "", nil
}

func (s *memTaskStore) FindByStatus(
	_ context.Context,
	statuses ...domain.TaskStatus,
) ([]*domain.Task, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var tasks []*domain.Task
	for _, task := range s.m.tasks {
		for _, status := range statuses {
			if task.Status == status {
				clone := *task
				clone.Sources = s.m.sourcesForTask(task.ID)
				tasks = append(tasks, &clone)
				break
			}
		}
	}
	return tasks, nil
}

func (s *memTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return s }

type memSourceStore struct{ m *memStore }

func (s *memSourceStore) Create(_ context.Context, source *domain.Source) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	clone := *source
	s.m.sources[source.ID] = &clone
	return nil
}

func (s *memSourceStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Source, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	source, ok := s.m.sources[id]
	if !ok {
		return nil, store.ErrSourceNotFound
	}
	clone := *source
	return &clone, nil
}

func (s *memSourceStore) Update(_ context.Context, source *domain.Source) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.sources[source.ID]; !ok {
		return store.ErrSourceNotFound
	}
	clone := *source
	s.m.sources[source.ID] = &clone
	return nil
}

func (s *memSourceStore) FindByTaskID(_ context.Context, taskID uuid.UUID) ([]*domain.Source, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.sourcesForTask(taskID), nil
}

func (s *memSourceStore) WithTx(_ *sql.Tx) store.SourceStore { return s }

// fakeWikiClient serves a fixed page and records commits.
type fakeWikiClient struct {
	page      *wiki.Page
	readErr   error
	commitErr error

	mu             sync.Mutex
	committedText  string
	commitSummary  string
	commitMinor    bool
	commitCount    int
	nextRevisionID int64
}

func (c *fakeWikiClient) ReadPage(_ context.Context, pageID int64) (*wiki.Page, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	clone := *c.page
	clone.PageID = pageID
	return &clone, nil
}

func (c *fakeWikiClient) Commit(
	_ context.Context,
	_, content, summary string,
	minor bool,
) (*wiki.CommitResult, error) {
	if c.commitErr != nil {
		return nil, c.commitErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committedText = content
	c.commitSummary = summary
	c.commitMinor = minor
	c.commitCount++
	return &wiki.CommitResult{NewRevisionID: c.nextRevisionID}, nil
}

// fakeArchiveClient returns a fixed memento list per URL.
type fakeArchiveClient struct {
	mementos map[string][]domain.Memento
	err      error
}

func (c *fakeArchiveClient) ListMementos(
	_ context.Context,
	uri string,
	_ time.Time,
) ([]domain.Memento, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.mementos[uri], nil
}

// fakeAnalyzeQueue records enqueued jobs.
type fakeAnalyzeQueue struct {
	mu      sync.Mutex
	entries []uuid.UUID
}

func (q *fakeAnalyzeQueue) EnqueueAnalyze(
	_ context.Context,
	_ *domain.Task,
	source *domain.Source,
) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, source.ID)
	return nil
}

func (q *fakeAnalyzeQueue) enqueued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.entries...)
}
