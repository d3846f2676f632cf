package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/wikicite/archiver/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// The transaction is committed if the function returns nil, or rolled
// back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// TxRunner abstracts transaction execution so services can be tested
// without a live database.
type TxRunner interface {
	// RunInTransaction executes fn within a transaction, committing on
	// nil and rolling back on error.
	RunInTransaction(ctx context.Context, fn TxFn) error
}

// SQLTxRunner is the production TxRunner backed by a *sql.DB.
type SQLTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner creates a TxRunner over the given database handle.
func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

// RunInTransaction implements TxRunner.
func (r *SQLTxRunner) RunInTransaction(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, r.db, fn)
}

// RunInTransaction executes the given function within a database
// transaction. If the function returns an error, the transaction is
// rolled back; otherwise it is committed. Panics roll the transaction
// back and are re-raised.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContextOrDefault(ctx, slog.Default())

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if txErr := tx.Rollback(); txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}
