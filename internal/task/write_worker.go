package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/citetemplates"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/wiki"
)

// TaskCompleter is the slice of the task service the write-back worker
// reads tasks through and reports completion to.
type TaskCompleter interface {
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	SetDone(ctx context.Context, id uuid.UUID, newRevisionID int64) (*domain.Task, error)
}

// WriteWorker consumes archived tasks from the write queue and commits
// their verified archive links back to the page in a single edit. Jobs
// are processed one at a time; write-back failures are logged and the
// task is left archived for the next reconciliation pass.
type WriteWorker struct {
	queue      *WriteQueue
	tasks      TaskCompleter
	wikiClient wiki.Client
	registry   *citetemplates.Registry
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewWriteWorker creates the write-back worker.
func NewWriteWorker(
	queue *WriteQueue,
	tasks TaskCompleter,
	wikiClient wiki.Client,
	registry *citetemplates.Registry,
	logger *slog.Logger,
) *WriteWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &WriteWorker{
		queue:      queue,
		tasks:      tasks,
		wikiClient: wikiClient,
		registry:   registry,
		logger:     logger.With("component", "write_worker"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the worker goroutine.
func (w *WriteWorker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("write-back worker started")
}

// Stop cancels in-flight write-back and waits for the worker to exit.
func (w *WriteWorker) Stop() {
	w.cancelFunc()
	w.wg.Wait()
}

func (w *WriteWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("stopping write-back worker")
			return

		case taskID, ok := <-w.queue.Jobs():
			if !ok {
				w.logger.Debug("write queue closed, stopping worker")
				return
			}
			w.processTask(w.ctx, taskID)
			w.queue.done(taskID)
		}
	}
}

// processTask rewrites every checked source's citation template on the
// live page and commits the result as one minor edit. Sources whose
// verbatim fragment no longer appears in the page content are skipped;
// if nothing remains to rewrite, no edit is made.
func (w *WriteWorker) processTask(ctx context.Context, taskID uuid.UUID) {
	logger := w.logger.With("task_id", taskID)

	task, err := w.tasks.GetTask(ctx, taskID)
	if err != nil {
		logger.Error("failed to load task for write-back", "error", err)
		return
	}

	if task.Status != domain.TaskStatusArchived {
		logger.Debug("task no longer archived, skipping write-back",
			"status", task.Status)
		return
	}

	page, err := w.wikiClient.ReadPage(ctx, task.PageID)
	if err != nil {
		logger.Error("failed to read page for write-back", "error", err)
		return
	}

	if page.RevisionID != task.RevisionID {
		logger.Warn("page changed since task creation, rewriting against current revision",
			"task_revision_id", task.RevisionID,
			"page_revision_id", page.RevisionID)
	}

	content := page.Content
	rewritten := 0
	for _, source := range task.Sources {
		if source.Status != domain.SourceStatusChecked {
			continue
		}

		tpl, err := w.registry.Resolve(source.TemplateName)
		if err != nil {
			// A missing mapping is a configuration fault, unlike the
			// transient fragment skip below.
			logger.Error("no template mapping for checked source, rewrite failed",
				"error", err,
				"source_id", source.ID,
				"template_name", source.TemplateName)
			continue
		}

		if !strings.Contains(content, source.TemplateWikitext) {
			logger.Warn("citation no longer present in page content, skipping",
				"source_id", source.ID)
			continue
		}

		content = strings.Replace(
			content,
			source.TemplateWikitext,
			archivedFragment(source, tpl),
			1,
		)
		rewritten++
	}

	if rewritten == 0 {
		logger.Warn("no citations left to rewrite, leaving page untouched")
		return
	}

	summary := fmt.Sprintf("Added archive links to %d reference(s)", rewritten)
	result, err := w.wikiClient.Commit(ctx, task.PageTitle, content, summary, true)
	if err != nil {
		logger.Error("failed to commit page edit", "error", err)
		return
	}

	logger.Info("page edit committed",
		"rewritten_count", rewritten,
		"new_revision_id", result.NewRevisionID)

	if _, err := w.tasks.SetDone(ctx, taskID, result.NewRevisionID); err != nil {
		logger.Error("failed to mark task done", "error", err)
	}
}

// archivedFragment rebuilds the citation template with the archive
// parameters appended before the closing braces. The dead-link flag is
// set only when the template defines a parameter for it.
func archivedFragment(source *domain.Source, tpl citetemplates.Template) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(source.TemplateWikitext, "}}"))
	if source.Dead && tpl.DeadParam != "" {
		b.WriteString(" |" + tpl.DeadParam + "=yes")
	}
	b.WriteString(" |" + tpl.ArchiveURLParam + "=" + source.ArchiveURL)
	b.WriteString(" |" + tpl.ArchiveDateParam + "=" + source.ArchiveDate.Format("2006-01-02"))
	b.WriteString("}}")
	return b.String()
}
