package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
	"github.com/wikicite/archiver/internal/platform/logger"
	"github.com/wikicite/archiver/internal/store"
)

// PostgresSourceStore implements the store.SourceStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSourceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSourceStore creates a new PostgreSQL implementation of the
// SourceStore interface. If logger is nil, a default logger will be used.
func NewPostgresSourceStore(db store.DBTX, logger *slog.Logger) *PostgresSourceStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSourceStore{
		db:     db,
		logger: logger.With(slog.String("component", "source_store")),
	}
}

// Ensure PostgresSourceStore implements store.SourceStore interface
var _ store.SourceStore = (*PostgresSourceStore)(nil)

// WithTx implements store.SourceStore.WithTx
func (s *PostgresSourceStore) WithTx(tx *sql.Tx) store.SourceStore {
	return &PostgresSourceStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.SourceStore.Create
// Returns store.ErrInvalidEntity if the owning task does not exist.
func (s *PostgresSourceStore) Create(ctx context.Context, source *domain.Source) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := source.Validate(); err != nil {
		log.Warn("source validation failed during create",
			slog.String("error", err.Error()),
			slog.String("source_id", source.ID.String()))
		return err
	}

	mementos, err := marshalMementos(source.Mementos)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sources (id, task_id, template_name, template_wikitext, url,
			archive_url, archive_date, dead, status, position, mementos,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		source.ID,
		source.TaskID,
		source.TemplateName,
		source.TemplateWikitext,
		source.URL,
		source.ArchiveURL,
		nullableTime(source.ArchiveDate),
		source.Dead,
		source.Status,
		source.Position,
		mementos,
		source.CreatedAt,
		source.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create source",
			slog.String("error", err.Error()),
			slog.String("source_id", source.ID.String()),
			slog.String("task_id", source.TaskID.String()))
		return MapError(err)
	}

	log.Debug("source created",
		slog.String("source_id", source.ID.String()),
		slog.String("task_id", source.TaskID.String()))
	return nil
}

// GetByID implements store.SourceStore.GetByID
// Returns store.ErrSourceNotFound if the source does not exist.
func (s *PostgresSourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := sourceSelectColumns + ` FROM sources WHERE id = $1`

	source, err := scanSource(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug("source not found", slog.String("source_id", id.String()))
			return nil, store.ErrSourceNotFound
		}
		log.Error("failed to get source by ID",
			slog.String("error", err.Error()),
			slog.String("source_id", id.String()))
		return nil, MapError(err)
	}

	return source, nil
}

// Update implements store.SourceStore.Update
// Returns store.ErrSourceNotFound if the source does not exist.
func (s *PostgresSourceStore) Update(ctx context.Context, source *domain.Source) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := source.Validate(); err != nil {
		log.Warn("source validation failed during update",
			slog.String("error", err.Error()),
			slog.String("source_id", source.ID.String()))
		return err
	}

	mementos, err := marshalMementos(source.Mementos)
	if err != nil {
		return err
	}

	query := `
		UPDATE sources
		SET archive_url = $1, archive_date = $2, dead = $3, status = $4,
			mementos = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		source.ArchiveURL,
		nullableTime(source.ArchiveDate),
		source.Dead,
		source.Status,
		mementos,
		source.UpdatedAt,
		source.ID,
	)
	if err != nil {
		log.Error("failed to update source",
			slog.String("error", err.Error()),
			slog.String("source_id", source.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrSourceNotFound); err != nil {
		log.Debug("source not found for update",
			slog.String("source_id", source.ID.String()))
		return err
	}

	log.Debug("source updated",
		slog.String("source_id", source.ID.String()),
		slog.String("status", string(source.Status)))
	return nil
}

// FindByTaskID implements store.SourceStore.FindByTaskID
func (s *PostgresSourceStore) FindByTaskID(
	ctx context.Context,
	taskID uuid.UUID,
) ([]*domain.Source, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	return querySourcesByTaskID(ctx, s.db, log, taskID)
}

const sourceSelectColumns = `
	SELECT id, task_id, template_name, template_wikitext, url,
		archive_url, archive_date, dead, status, position, mementos,
		created_at, updated_at`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var source domain.Source
	var status string
	var archiveDate sql.NullTime
	var mementos []byte

	err := row.Scan(
		&source.ID,
		&source.TaskID,
		&source.TemplateName,
		&source.TemplateWikitext,
		&source.URL,
		&source.ArchiveURL,
		&archiveDate,
		&source.Dead,
		&status,
		&source.Position,
		&mementos,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.Status = domain.SourceStatus(status)
	if archiveDate.Valid {
		source.ArchiveDate = archiveDate.Time
	}
	if len(mementos) > 0 {
		if err := json.Unmarshal(mementos, &source.Mementos); err != nil {
			return nil, fmt.Errorf("failed to decode mementos: %w", err)
		}
	}

	return &source, nil
}

// querySourcesByTaskID loads a task's sources in citation order. Shared
// by the task store so GetByID returns the full aggregate.
func querySourcesByTaskID(
	ctx context.Context,
	db store.DBTX,
	log *slog.Logger,
	taskID uuid.UUID,
) ([]*domain.Source, error) {
	query := sourceSelectColumns + ` FROM sources WHERE task_id = $1 ORDER BY position ASC`

	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to query sources by task ID",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var sources []*domain.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			log.Error("failed to scan source row",
				slog.String("error", err.Error()),
				slog.String("task_id", taskID.String()))
			return nil, MapError(err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if sources == nil {
		sources = []*domain.Source{}
	}
	return sources, nil
}

// marshalMementos encodes the memento list for the JSONB column. An
// empty list is stored as SQL NULL.
func marshalMementos(mementos []domain.Memento) (interface{}, error) {
	if len(mementos) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(mementos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mementos: %w", err)
	}
	return raw, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
