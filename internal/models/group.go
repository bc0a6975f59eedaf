package models

import (
	"fmt"
	"time"
)

// Group is a single meeting of a course group as scraped from the
// registration page. A group that meets on several day/time combinations
// produces one Group value per combination, all sharing subject and label.
type Group struct {
	Subject     string
	SubjectCode string
	Label       string
	Instructor  string
	Day         time.Weekday
	Start       int // minutes since midnight
	End         int // minutes since midnight
	Location    string
	Description string
	Enrolled    int
	Capacity    int
}

// FreeSeats is always recomputed from Capacity and Enrolled. It may be
// negative when the source over-enrolls; callers must not clamp it.
func (g Group) FreeSeats() int {
	return g.Capacity - g.Enrolled
}

// Key identifies the same recurring class meeting across runs, independent
// of seat counts. Two meetings of one subject that share label, day and
// start time are indistinguishable under this scheme; the registration
// page does not produce such rows, so the ambiguity is accepted.
func (g Group) Key() string {
	return fmt.Sprintf("%s|gr%s|%d|%d", g.SubjectCode, g.Label, g.Day, g.Start)
}

// Snapshot is the complete, conflict-filtered availability state of one
// run, keyed by Group.Key. It fully replaces the persisted state at the
// end of a successful run.
type Snapshot map[string]Group
