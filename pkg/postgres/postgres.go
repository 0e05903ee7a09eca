package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakechorley/creator-selection/pkg/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB provides selection state operations using PostgreSQL
type DB struct {
	pool *pgxpool.Pool
}

var _ db.SelectionStore = (*DB)(nil)

// NewDB creates a new PostgreSQL database connection
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool
func (d *DB) Close() {
	d.pool.Close()
}

// RunMigrations executes all pending SQL migration files in order.
// It tracks which migrations have been applied in a schema_migrations table.
func (d *DB) RunMigrations(ctx context.Context) error {
	// Create migrations tracking table if it doesn't exist
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	rows, err := d.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan migration filenames: %w", err)
	}

	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}

	for _, filename := range pending {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		// Run migration in a transaction
		err = pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", filename, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// pendingMigrations returns the embedded migration files not yet applied, in filename order
func pendingMigrations(applied []string) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if slices.Contains(applied, entry.Name()) {
			continue
		}
		pending = append(pending, entry.Name())
	}
	slices.Sort(pending)
	return pending, nil
}

// swapMarker replaces the series marker if it still equals expected.
// Zero affected rows is reported as ErrNotFound or ErrConcurrencyConflict.
func swapMarker(ctx context.Context, tx pgx.Tx, seriesID, expected, next string, completeCycles *int) error {
	var tag pgconn.CommandTag
	var err error
	if completeCycles != nil {
		tag, err = tx.Exec(ctx, `
			UPDATE selection_series
			SET concurrency_marker = $3, complete_cycles_count = $4
			WHERE id = $1 AND concurrency_marker = $2
		`, seriesID, expected, next, *completeCycles)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE selection_series
			SET concurrency_marker = $3
			WHERE id = $1 AND concurrency_marker = $2
		`, seriesID, expected, next)
	}
	if err != nil {
		return persistenceError("failed to update series marker", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM selection_series WHERE id = $1)`, seriesID).Scan(&exists); err != nil {
		return persistenceError("failed to check series", err)
	}
	if !exists {
		return fmt.Errorf("series %s: %w", seriesID, db.ErrNotFound)
	}
	return fmt.Errorf("series %s changed since it was read: %w", seriesID, db.ErrConcurrencyConflict)
}

// persistenceError wraps a driver error so callers can match db.ErrPersistence.
// Errors already carrying a db sentinel pass through unchanged.
func persistenceError(msg string, err error) error {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrConcurrencyConflict) || errors.Is(err, db.ErrPersistence) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		// serialization_failure behaves like a lost marker race
		return fmt.Errorf("%s: %w: %w", msg, db.ErrConcurrencyConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, db.ErrPersistence, err)
}
