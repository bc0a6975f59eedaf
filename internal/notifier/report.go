package notifier

import (
	"fmt"
	"sort"
	"strings"

	"seatwatch/internal/models"
	"seatwatch/internal/schedule"
)

// MaxFields is a hard limit of the downstream channel (a Discord embed
// carries at most 25 fields). Overflow entries are silently dropped here,
// not batched into additional messages.
const MaxFields = 25

// maxFullNames bounds the comma-joined listing in the newly-full message.
const maxFullNames = 10

const (
	colorAvailable = 0x00FF00
	colorFull      = 0xFF6600
	colorChanged   = 0x3399FF
	colorError     = 0xFF0000
)

// BuildMessages shapes a change set into at most three messages, one per
// category. Entries are sorted by subject, label and meeting time so
// repeated runs render identically.
func BuildMessages(changes *models.Changes) []Message {
	var messages []Message

	if len(changes.NewlyAvailable) > 0 {
		groups := sortedGroups(changes.NewlyAvailable)
		fields := make([]Field, 0, len(groups))
		for _, g := range groups {
			fields = append(fields, Field{
				Name: fmt.Sprintf("🟢 %s (gr. %s)", g.Subject, g.Label),
				Value: fmt.Sprintf("📅 %s %s-%s\n👤 %s\n💺 **%d** wolnych (%d/%d)",
					schedule.DayName(g.Day), schedule.FormatClock(g.Start), schedule.FormatClock(g.End),
					g.Instructor, g.FreeSeats(), g.Enrolled, g.Capacity),
			})
		}
		messages = append(messages, Message{
			Title:       fmt.Sprintf("🎉 Nowe wolne miejsca! (%d grup)", len(groups)),
			Description: "Pojawiły się wolne miejsca w lektoratach bez kolizji z Twoim planem:",
			Color:       colorAvailable,
			Fields:      capFields(fields),
		})
	}

	if len(changes.NewlyFull) > 0 {
		groups := sortedGroups(changes.NewlyFull)
		names := make([]string, 0, maxFullNames)
		for _, g := range groups {
			if len(names) == maxFullNames {
				break
			}
			names = append(names, fmt.Sprintf("%s gr.%s", g.Subject, g.Label))
		}
		messages = append(messages, Message{
			Title:       fmt.Sprintf("🔴 Zapełnione (%d)", len(groups)),
			Description: strings.Join(names, ", "),
			Color:       colorFull,
		})
	}

	if len(changes.SpotsChanged) > 0 {
		seatChanges := make([]models.SeatChange, len(changes.SpotsChanged))
		copy(seatChanges, changes.SpotsChanged)
		sort.Slice(seatChanges, func(i, j int) bool {
			return lessGroup(seatChanges[i].Group, seatChanges[j].Group)
		})

		fields := make([]Field, 0, len(seatChanges))
		for _, sc := range seatChanges {
			g := sc.Group
			fields = append(fields, Field{
				Name: fmt.Sprintf("🔄 %s (gr. %s)", g.Subject, g.Label),
				Value: fmt.Sprintf("📅 %s %s-%s\n💺 %d → **%d** wolnych",
					schedule.DayName(g.Day), schedule.FormatClock(g.Start), schedule.FormatClock(g.End),
					sc.PrevFree, g.FreeSeats()),
			})
		}
		messages = append(messages, Message{
			Title:       fmt.Sprintf("🔄 Zmiana miejsc (%d)", len(seatChanges)),
			Description: "Zmieniła się liczba wolnych miejsc:",
			Color:       colorChanged,
			Fields:      capFields(fields),
		})
	}

	return messages
}

// BuildFailureMessage shapes a fatal run failure into a message, so an
// unattended deployment surfaces the breakage on the same channels that
// would otherwise carry the change report.
func BuildFailureMessage(err error) Message {
	return Message{
		Title:       "❌ Błąd sprawdzania dostępności",
		Description: fmt.Sprintf("Nie udało się sprawdzić wolnych miejsc: %v. Sprawdź konfigurację i credentials.", err),
		Color:       colorError,
	}
}

func capFields(fields []Field) []Field {
	if len(fields) > MaxFields {
		return fields[:MaxFields]
	}
	return fields
}

func sortedGroups(groups []models.Group) []models.Group {
	sorted := make([]models.Group, len(groups))
	copy(sorted, groups)
	sort.Slice(sorted, func(i, j int) bool {
		return lessGroup(sorted[i], sorted[j])
	})
	return sorted
}

// lessGroup orders by subject and label, then by meeting time, so a group
// that meets several times a week still renders in a fixed order.
func lessGroup(a, b models.Group) bool {
	if a.Subject != b.Subject {
		return a.Subject < b.Subject
	}
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Start < b.Start
}
