package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/platform/logger"
	"github.com/wikicite/archiver/internal/store"
)

// Listing page size bounds
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create
// It saves a new task to the database, handling domain validation.
// The task's sources are not persisted; use SourceStore in the same
// transaction.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (id, page_id, page_title, revision_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.PageID,
		task.PageTitle,
		task.RevisionID,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.Int64("page_id", task.PageID))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.Int64("page_id", task.PageID))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// It retrieves a task with its sources loaded in citation order.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.getByID(ctx, id, false)
}

// GetByIDForUpdate implements store.TaskStore.GetByIDForUpdate
// It locks the task row for the duration of the surrounding transaction
// so that concurrent status recomputations serialize.
func (s *PostgresTaskStore) GetByIDForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Task, error) {
	return s.getByID(ctx, id, true)
}

func (s *PostgresTaskStore) getByID(
	ctx context.Context,
	id uuid.UUID,
	forUpdate bool,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, page_id, page_title, revision_id, status, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var task domain.Task
	var status string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.PageID,
		&task.PageTitle,
		&task.RevisionID,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	task.Status = domain.TaskStatus(status)

	sources, err := querySourcesByTaskID(ctx, s.db, log, id)
	if err != nil {
		return nil, err
	}
	task.Sources = sources

	return &task, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		log.Debug("task not found for status update",
			slog.String("task_id", id.String()))
		return err
	}

	log.Debug("task status updated",
		slog.String("task_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// SetDone implements store.TaskStore.SetDone
// It marks the task done and records the revision created by write-back.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) SetDone(
	ctx context.Context,
	id uuid.UUID,
	newRevisionID int64,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, revision_id = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.TaskStatusDone,
		newRevisionID,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to mark task done",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// List implements store.TaskStore.List
// Tasks are returned newest-first using keyset pagination over the sort
// column and the task ID as a tiebreaker; sources are not loaded.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	page store.ListTasksPage,
) ([]*domain.Task, string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	size := page.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	orderCol, err := listOrderColumn(page.OrderBy)
	if err != nil {
		return nil, "", err
	}

	var args []interface{}
	query := `
		SELECT id, page_id, page_title, revision_id, status, created_at, updated_at
		FROM tasks
	`
	if page.Token != "" {
		cursorTime, cursorID, err := decodePageToken(page.Token)
		if err != nil {
			return nil, "", err
		}
		query += fmt.Sprintf(" WHERE (%s, id) < ($1, $2)", orderCol)
		args = append(args, cursorTime, cursorID)
	}
	query += fmt.Sprintf(
		" ORDER BY %s DESC, id DESC LIMIT %d",
		orderCol,
		size+1,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		var status string
		if err := rows.Scan(
			&task.ID,
			&task.PageID,
			&task.PageTitle,
			&task.RevisionID,
			&status,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, "", MapError(err)
		}
		task.Status = domain.TaskStatus(status)
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, "", MapError(err)
	}

	var nextToken string
	if len(tasks) > size {
		tasks = tasks[:size]
		last := tasks[len(tasks)-1]
		cursorTime := last.CreatedAt
		if orderCol == "updated_at" {
			cursorTime = last.UpdatedAt
		}
		nextToken = encodePageToken(cursorTime, last.ID)
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nextToken, nil
}

// FindByStatus implements store.TaskStore.FindByStatus
// It retrieves all tasks in any of the given statuses with their sources
// loaded, oldest-first so reconciliation processes them in creation order.
func (s *PostgresTaskStore) FindByStatus(
	ctx context.Context,
	statuses ...domain.TaskStatus,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(statuses) == 0 {
		return []*domain.Task{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = status
	}

	query := fmt.Sprintf(`
		SELECT id, page_id, page_title, revision_id, status, created_at, updated_at
		FROM tasks
		WHERE status IN (%s)
		ORDER BY created_at ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		var status string
		if err := rows.Scan(
			&task.ID,
			&task.PageID,
			&task.PageTitle,
			&task.RevisionID,
			&status,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		task.Status = domain.TaskStatus(status)
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	for _, task := range tasks {
		sources, err := querySourcesByTaskID(ctx, s.db, log, task.ID)
		if err != nil {
			return nil, err
		}
		task.Sources = sources
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

// listOrderColumn validates the requested sort column. The column name
// is interpolated into SQL, so only known values pass.
func listOrderColumn(orderBy string) (string, error) {
	switch orderBy {
	case "", "created_at":
		return "created_at", nil
	case "updated_at":
		return "updated_at", nil
	default:
		return "", fmt.Errorf("%w: unsupported order column %q",
			store.ErrInvalidPageToken, orderBy)
	}
}

// encodePageToken builds the opaque keyset cursor for the next page.
func encodePageToken(t time.Time, id uuid.UUID) string {
	raw := t.UTC().Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodePageToken parses a cursor produced by encodePageToken.
// Returns store.ErrInvalidPageToken for anything it cannot decode.
func decodePageToken(token string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", store.ErrInvalidPageToken, err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, store.ErrInvalidPageToken
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", store.ErrInvalidPageToken, err)
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", store.ErrInvalidPageToken, err)
	}

	return t, id, nil
}
