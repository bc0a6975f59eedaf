package models

// SeatChange - a group whose free-seat count moved but stayed positive.
type SeatChange struct {
	Group    Group
	PrevFree int
}

// Changes - comparison result between two snapshots. Groups that vanish
// from the listing entirely are deliberately not reported.
type Changes struct {
	NewlyAvailable []Group
	NewlyFull      []Group
	SpotsChanged   []SeatChange
}

// Empty reports whether the comparison produced no events at all.
func (c *Changes) Empty() bool {
	return len(c.NewlyAvailable) == 0 && len(c.NewlyFull) == 0 && len(c.SpotsChanged) == 0
}
