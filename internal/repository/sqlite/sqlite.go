package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the sqlite3 driver for sql.Open in every binary that links
	// this package, not just the tests.
	_ "github.com/mattn/go-sqlite3"

	"seatwatch/internal/models"
)

// SnapshotRepository is the persistence contract consumed by the checker:
// read the previous run's snapshot, replace it with the current one.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context) (models.Snapshot, error)
	ReplaceSnapshot(ctx context.Context, snapshot models.Snapshot) error
}

// Repository stores availability snapshots in a local SQLite database.
type Repository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRepository opens (or creates) the database file and runs the initial
// schema migration.
func NewRepository(ctx context.Context, log *slog.Logger, storagePath string) (*Repository, error) {
	dtb, err := sql.Open("sqlite3", fmt.Sprintf("%s?_pragma=foreign_keys(1)", storagePath))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Check if the connection is actually established.
	if err = dtb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to establish connection to database: %w", err)
	}

	if err = initSchema(ctx, dtb); err != nil {
		return nil, fmt.Errorf("DB schema initialization error: %w", err)
	}

	return &Repository{db: dtb, log: log}, nil
}

// NewForTest wraps an existing database handle without running migrations.
// Used by tests that inject a mocked connection.
func NewForTest(db *sql.DB) *Repository {
	return &Repository{db: db, log: slog.Default()}
}

// initSchema creates the necessary tables if they don't already exist.
func initSchema(ctx context.Context, dtb *sql.DB) error {
	const migrationQuery = `
	CREATE TABLE IF NOT EXISTS run_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		checked_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS groups (
		key TEXT PRIMARY KEY NOT NULL,
		subject TEXT,
		subject_code TEXT,
		group_label TEXT,
		instructor TEXT,
		day INTEGER,
		start_min INTEGER,
		end_min INTEGER,
		location TEXT,
		description TEXT,
		enrolled INTEGER,
		capacity INTEGER
	);
	`
	_, err := dtb.ExecContext(ctx, migrationQuery)
	if err != nil {
		return fmt.Errorf("failed to execute migration query: %w", err)
	}

	return nil
}

// Close closes the connection to the database.
func (r *Repository) Close() error {
	if err := r.db.Close(); err != nil {
		r.log.Error("failed to close the database", "op", "repository.sqlite.Close", "error", err)
		return fmt.Errorf("failed to close the database: %w", err)
	}

	return nil
}

// DB is a getter for database handler.
func (r *Repository) DB() *sql.DB {
	return r.db
}
