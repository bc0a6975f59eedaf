package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"seatwatch/internal/models"
	"seatwatch/internal/repository"
	"seatwatch/internal/repository/sqlite"
	"seatwatch/internal/schedule"
	"seatwatch/internal/usos"
)

// Checker is an orchestrator that performs a full verification cycle:
// fetch group records, filter out schedule conflicts, diff against the
// previous run's snapshot and persist the new one.
type Checker struct {
	log      *slog.Logger
	fetcher  usos.Fetcher
	repo     sqlite.SnapshotRepository
	schedule schedule.Weekly
}

type Interface interface {
	// Run performs the full change checking algorithm.
	Run(ctx context.Context) (*models.Changes, error)
}

// NewChecker creates a new Checker instance. The weekly schedule is built
// once per run by the caller and is read-only afterwards.
func NewChecker(log *slog.Logger, fetcher usos.Fetcher, repo sqlite.SnapshotRepository, weekly schedule.Weekly) *Checker {
	return &Checker{log: log, fetcher: fetcher, repo: repo, schedule: weekly}
}

// Run performs the full change checking algorithm. A fetch failure is
// fatal to the run; a missing or unreadable previous snapshot degrades to
// an empty one. The new snapshot is persisted before the result is
// returned, so a later notification failure cannot lose state.
func (c *Checker) Run(ctx context.Context) (*models.Changes, error) {
	const opn = "checker.Run"
	log := c.log.With("op", opn)

	// 1. Fetch the raw group records. Without them there is no snapshot.
	log.InfoContext(ctx, "Fetching group availability")
	groups, err := c.fetcher.FetchAvailability(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to fetch availability: %w", opn, err)
	}

	// 2. Build the conflict-filtered snapshot.
	current := BuildSnapshot(groups, c.schedule)
	log.InfoContext(ctx, "Built availability snapshot",
		"records", len(groups), "kept", len(current), "schedule_entries", len(c.schedule))

	// 3. Load the previous snapshot.
	previous, err := c.repo.GetSnapshot(ctx)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		log.InfoContext(ctx, "No previous snapshot found. Treating as first run.")
		previous = models.Snapshot{}
	case err != nil:
		log.WarnContext(ctx, "Failed to read previous snapshot; treating as empty", "error", err)
		previous = models.Snapshot{}
	}

	// 4. Classify every current group against the previous state.
	changes := Diff(current, previous)
	log.InfoContext(ctx, "Change detection complete",
		"newly_available", len(changes.NewlyAvailable),
		"newly_full", len(changes.NewlyFull),
		"spots_changed", len(changes.SpotsChanged),
	)

	// 5. The current snapshot fully replaces the persisted one.
	if err = c.repo.ReplaceSnapshot(ctx, current); err != nil {
		return nil, fmt.Errorf("%s: failed to persist snapshot: %w", opn, err)
	}
	log.InfoContext(ctx, "Successfully persisted snapshot")

	return &changes, nil
}

// BuildSnapshot keys the given records by Group.Key, dropping every record
// that collides with the weekly schedule. Later records win on key
// collision; duplicates should not occur upstream, but the contract is
// defined. Every group in the result is guaranteed conflict-free.
func BuildSnapshot(groups []models.Group, weekly schedule.Weekly) models.Snapshot {
	snapshot := make(models.Snapshot, len(groups))
	for _, g := range groups {
		if weekly.Conflicts(schedule.Window{Day: g.Day, Start: g.Start, End: g.End}) {
			continue
		}
		snapshot[g.Key()] = g
	}
	return snapshot
}

// Diff classifies every group of the current snapshot against the
// previous one:
//
//   - absent before, or previously 0 free, now >0 free: newly available
//   - previously >0 free, now 0: newly full
//   - free count moved and stays >0: spots changed
//
// A brand-new group with no free seats is not interesting and produces no
// event, and neither does a group that disappeared from the listing.
func Diff(current, previous models.Snapshot) models.Changes {
	var changes models.Changes

	for key, cur := range current {
		free := cur.FreeSeats()
		prev, found := previous[key]
		if !found {
			if free > 0 {
				changes.NewlyAvailable = append(changes.NewlyAvailable, cur)
			}
			continue
		}

		prevFree := prev.FreeSeats()
		switch {
		case free > 0 && prevFree == 0:
			changes.NewlyAvailable = append(changes.NewlyAvailable, cur)
		case free == 0 && prevFree > 0:
			changes.NewlyFull = append(changes.NewlyFull, cur)
		case free != prevFree && free > 0:
			changes.SpotsChanged = append(changes.SpotsChanged, models.SeatChange{Group: cur, PrevFree: prevFree})
		}
	}

	return changes
}
