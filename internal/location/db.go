package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"locations-server/internal/shared/database"
)

// DB is the Postgres-backed Database.
type DB struct {
	db     *database.DB
	repo   *Repository
	logger *slog.Logger
}

func NewDB(db *database.DB, logger *slog.Logger) *DB {
	return &DB{
		db:     db,
		repo:   NewRepository(db, logger),
		logger: logger,
	}
}

func (d *DB) InTx(ctx context.Context, fn func(Store) error) error {
	logger := d.logger.With("component", "location_db", "operation", "in_tx")

	tx, err := d.db.BeginTxContext(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(d.repo.WithTx(tx)); err != nil {
		logger.Debug("Transaction aborted", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *DB) Reader() Reader {
	return d.repo
}
