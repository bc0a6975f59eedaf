package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seatwatch/internal/models"
	"seatwatch/internal/repository"
)

// GetSnapshot returns the snapshot persisted by the previous run, keyed by
// group key. Returns repository.ErrSnapshotNotFound on the first run.
func (r *Repository) GetSnapshot(ctx context.Context) (models.Snapshot, error) {
	const opn = "repository.sqlite.GetSnapshot"

	// 1. The run marker distinguishes "first run" from "empty listing".
	var checkedAt string
	err := r.db.QueryRowContext(ctx, "SELECT checked_at FROM run_state WHERE id = 1").Scan(&checkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("%s: failed to get run marker: %w", opn, err)
	}

	// 2. Read all persisted groups.
	rows, err := r.db.QueryContext(ctx,
		"SELECT subject, subject_code, group_label, instructor, day, start_min, end_min, location, description, enrolled, capacity FROM groups")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get groups: %w", opn, err)
	}
	defer rows.Close()

	snapshot := make(models.Snapshot)
	for rows.Next() {
		var g models.Group
		var day int
		if err = rows.Scan(&g.Subject, &g.SubjectCode, &g.Label, &g.Instructor, &day,
			&g.Start, &g.End, &g.Location, &g.Description, &g.Enrolled, &g.Capacity); err != nil {
			return nil, fmt.Errorf("%s: failed to scan group: %w", opn, err)
		}
		g.Day = time.Weekday(day)
		snapshot[g.Key()] = g
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", opn, err)
	}

	return snapshot, nil
}

// ReplaceSnapshot atomically swaps the persisted state for the given
// snapshot. Prior content is always discarded, never merged.
func (r *Repository) ReplaceSnapshot(ctx context.Context, snapshot models.Snapshot) error {
	const opn = "repository.sqlite.ReplaceSnapshot"

	// 1. begin transaction
	tx, err := r.db.BeginTx(ctx, nil) //nolint:varnamelen // tx its a default naming for transaction
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", opn, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after a successful commit only returns sql.ErrTxDone

	// 2. Update (or insert) the run marker.
	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO run_state (id, checked_at) VALUES (1, ?)",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%s: failed to update run marker: %w", opn, err)
	}

	// 3. Completely clear the groups table to record the new current state.
	_, err = tx.ExecContext(ctx, "DELETE FROM groups")
	if err != nil {
		return fmt.Errorf("%s: failed to delete old groups: %w", opn, err)
	}

	// 4. Preparing a request for the effective insertion of new groups.
	stmt, err := tx.PrepareContext(
		ctx,
		"INSERT INTO groups (key, subject, subject_code, group_label, instructor, day, start_min, end_min, location, description, enrolled, capacity) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare insert statement: %w", opn, err)
	}
	defer stmt.Close()

	// 5. Insert each group of the current snapshot.
	for key, g := range snapshot {
		if _, err = stmt.ExecContext(ctx, key, g.Subject, g.SubjectCode, g.Label, g.Instructor,
			int(g.Day), g.Start, g.End, g.Location, g.Description, g.Enrolled, g.Capacity); err != nil {
			return fmt.Errorf("%s: failed to insert group %s: %w", opn, key, err)
		}
	}

	// 6. If all operations went through without errors - confirm the transaction.
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", opn, err)
	}

	return nil
}
