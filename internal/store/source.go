package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wikicite/archiver/internal/domain"
)

// SourceStore defines the interface for source persistence.
type SourceStore interface {
	// Create saves a new source to the store.
	// Returns validation errors from the domain Source if data is invalid,
	// and ErrInvalidEntity if the owning task does not exist.
	Create(ctx context.Context, source *domain.Source) error

	// GetByID retrieves a source by its unique ID.
	// Returns ErrSourceNotFound if the source does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error)

	// Update saves changes to an existing source.
	// Returns ErrSourceNotFound if the source does not exist.
	Update(ctx context.Context, source *domain.Source) error

	// FindByTaskID retrieves all sources belonging to the given task in
	// citation order. Returns an empty slice if the task has no sources.
	FindByTaskID(ctx context.Context, taskID uuid.UUID) ([]*domain.Source, error)

	// WithTx returns a new SourceStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) SourceStore
}
