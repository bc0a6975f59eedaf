package sqlite_test

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatwatch/internal/models"
	"seatwatch/internal/repository"
	"seatwatch/internal/repository/sqlite"
)

// =============================================================================
// Integration Tests (using a real temporary database)
// =============================================================================

// newTestDB is a helper function that creates a temporary database for a test.
func newTestDB(t *testing.T) *sqlite.Repository {
	t.Helper()

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := sqlite.NewRepository(t.Context(), logger, dbPath)
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		err = repo.Close()
		if err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	return repo
}

func testGroup(code, label string, enrolled int) models.Group {
	return models.Group{
		Subject:     "Subject " + code,
		SubjectCode: code,
		Label:       label,
		Instructor:  "mgr Nowak",
		Day:         time.Wednesday,
		Start:       600,
		End:         690,
		Location:    "sala 101",
		Description: "poziom A1",
		Enrolled:    enrolled,
		Capacity:    12,
	}
}

func snapshotOf(groups ...models.Group) models.Snapshot {
	snapshot := make(models.Snapshot, len(groups))
	for _, g := range groups {
		snapshot[g.Key()] = g
	}
	return snapshot
}

// TestRepository_Integration_ReplaceAndGetSnapshot simulates the full
// lifecycle of the repository against a real SQLite database.
func TestRepository_Integration_ReplaceAndGetSnapshot(t *testing.T) {
	repo := newTestDB(t)
	ctx := t.Context()

	// --- Scenario 1: Try to get a snapshot from an empty database ---
	t.Run("get_snapshot_from_empty_db", func(t *testing.T) {
		_, err := repo.GetSnapshot(ctx)
		require.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	})

	// --- Scenario 2: Persist the first snapshot ---
	snapshot1 := snapshotOf(
		testGroup("4020-ES", "1", 8),
		testGroup("4020-FR", "2", 12),
	)

	t.Run("replace_snapshot_first_time", func(t *testing.T) {
		require.NoError(t, repo.ReplaceSnapshot(ctx, snapshot1))
	})

	// --- Scenario 3: Get the saved snapshot and verify it ---
	t.Run("get_snapshot_after_first_replace", func(t *testing.T) {
		retrieved, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, snapshot1, retrieved)
	})

	// --- Scenario 4: Replace with a second snapshot (full replacement) ---
	snapshot2 := snapshotOf(testGroup("4020-DE", "1", 3))

	t.Run("replace_snapshot_second_time", func(t *testing.T) {
		require.NoError(t, repo.ReplaceSnapshot(ctx, snapshot2))
	})

	// --- Scenario 5: Verify the old content is gone ---
	t.Run("get_snapshot_after_second_replace", func(t *testing.T) {
		retrieved, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		require.Equal(t, snapshot2, retrieved)
		require.Len(t, retrieved, 1) // Verify old groups were deleted.
	})

	// --- Scenario 6: An empty snapshot is a valid state, distinct from "no snapshot" ---
	t.Run("replace_with_empty_snapshot", func(t *testing.T) {
		require.NoError(t, repo.ReplaceSnapshot(ctx, models.Snapshot{}))

		retrieved, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		require.Empty(t, retrieved)
	})
}

// =============================================================================
// Unit Tests (using sqlmock for failure scenarios)
// =============================================================================

// newMockedRepo creates a repository with a mocked database connection for testing failures.
func newMockedRepo(t *testing.T) (*sqlite.Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := sqlite.NewForTest(mockDB)

	t.Cleanup(func() { mockDB.Close() })

	return repo, mock
}

var groupColumns = []string{
	"subject", "subject_code", "group_label", "instructor", "day",
	"start_min", "end_min", "location", "description", "enrolled", "capacity",
}

func TestRepository_GetSnapshot_Failures(t *testing.T) {
	ctx := t.Context()

	t.Run("error_on_run_marker_query", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		expectedErr := errors.New("db connection lost")
		mock.ExpectQuery("SELECT checked_at FROM run_state").WillReturnError(expectedErr)

		_, err := repo.GetSnapshot(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), expectedErr.Error())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_groups_query", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		markerRows := sqlmock.NewRows([]string{"checked_at"}).AddRow("2026-02-10T10:00:00Z")
		mock.ExpectQuery("SELECT checked_at FROM run_state").WillReturnRows(markerRows)

		expectedErr := errors.New("table groups is locked")
		mock.ExpectQuery("SELECT subject, subject_code").WillReturnError(expectedErr)

		_, err := repo.GetSnapshot(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), expectedErr.Error())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_scan", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		markerRows := sqlmock.NewRows([]string{"checked_at"}).AddRow("2026-02-10T10:00:00Z")
		mock.ExpectQuery("SELECT checked_at FROM run_state").WillReturnRows(markerRows)

		groupRows := sqlmock.NewRows(groupColumns).
			AddRow(nil, nil, nil, nil, "not-a-day", nil, nil, nil, nil, "x", "y")
		mock.ExpectQuery("SELECT subject, subject_code").WillReturnRows(groupRows)

		_, err := repo.GetSnapshot(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to scan group")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_rows", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		markerRows := sqlmock.NewRows([]string{"checked_at"}).AddRow("2026-02-10T10:00:00Z")
		mock.ExpectQuery("SELECT checked_at FROM run_state").WillReturnRows(markerRows)

		groupRows := sqlmock.NewRows(groupColumns).
			AddRow("s", "c", "1", "i", 3, 600, 690, "l", "d", 8, 12).
			RowError(0, assert.AnError)
		mock.ExpectQuery("SELECT subject, subject_code").WillReturnRows(groupRows)

		_, err := repo.GetSnapshot(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "rows iteration error")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_ReplaceSnapshot_Failures(t *testing.T) {
	ctx := t.Context()
	snapshot := snapshotOf(testGroup("4020-ES", "1", 8))

	t.Run("error_on_begin_transaction", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		expectedErr := errors.New("cannot start transaction")
		mock.ExpectBegin().WillReturnError(expectedErr)

		err := repo.ReplaceSnapshot(ctx, snapshot)

		require.Error(t, err)
		assert.Contains(t, err.Error(), expectedErr.Error())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_run_marker_update", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT OR REPLACE INTO run_state").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := repo.ReplaceSnapshot(ctx, snapshot)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update run marker")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_delete_groups", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT OR REPLACE INTO run_state").WillReturnResult(sqlmock.NewResult(1, 1))

		expectedErr := errors.New("delete failed")
		mock.ExpectExec("DELETE FROM groups").WillReturnError(expectedErr)
		mock.ExpectRollback()

		err := repo.ReplaceSnapshot(ctx, snapshot)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to delete old groups")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_prepare", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT OR REPLACE INTO run_state").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("DELETE FROM groups").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectPrepare("INSERT INTO groups").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := repo.ReplaceSnapshot(ctx, snapshot)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to prepare insert statement")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_insert", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT OR REPLACE INTO run_state").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("DELETE FROM groups").WillReturnResult(sqlmock.NewResult(0, 0))

		prep := mock.ExpectPrepare("INSERT INTO groups")
		prep.ExpectExec().WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := repo.ReplaceSnapshot(ctx, snapshot)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert group")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error_on_commit", func(t *testing.T) {
		repo, mock := newMockedRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT OR REPLACE INTO run_state").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("DELETE FROM groups").WillReturnResult(sqlmock.NewResult(0, 0))

		prep := mock.ExpectPrepare("INSERT INTO groups")
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))

		expectedErr := errors.New("commit failed")
		mock.ExpectCommit().WillReturnError(expectedErr)

		err := repo.ReplaceSnapshot(ctx, snapshot)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
