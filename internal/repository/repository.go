package repository

import "errors"

// ErrSnapshotNotFound is returned when no availability snapshot has been
// persisted yet (first run). Callers treat it as an empty previous state,
// never as a fatal condition.
var ErrSnapshotNotFound = errors.New("no availability snapshot persisted yet")
