// Package schedule models the user's weekly commitments and decides
// whether a candidate course meeting collides with them.
//
// Conflict checking fails open: a candidate whose times could not be
// parsed upstream (zero-length window) is reported as non-conflicting,
// so a scraping glitch never hides a group from the user - it is merely
// not protected against collision.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Window is one occupied time slot: a weekday plus a half-open
// [Start, End) interval in minutes since midnight.
type Window struct {
	Day   time.Weekday
	Start int
	End   int
}

// Weekly is the set of recurring commitments derived from the calendar.
// Entries are not required to be disjoint; conflict testing is existential.
type Weekly []Window

// Conflicts reports whether the candidate overlaps any entry on the same
// day under half-open semantics: touching boundaries do not collide.
func (w Weekly) Conflicts(candidate Window) bool {
	if candidate.Start >= candidate.End {
		return false
	}
	for _, entry := range w {
		if candidate.Day == entry.Day && candidate.Start < entry.End && candidate.End > entry.Start {
			return true
		}
	}
	return false
}

// ParseClock converts a "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	total := hours*60 + minutes
	if hours < 0 || minutes < 0 || minutes > 59 || total >= minutesPerDay {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return total, nil
}

// FormatClock renders minutes since midnight back as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// polishDays maps the weekday names and abbreviations the registration
// page uses onto time.Weekday.
var polishDays = map[string]time.Weekday{
	"poniedziałek": time.Monday,
	"poniedzialek": time.Monday,
	"pon":          time.Monday,
	"pn":           time.Monday,
	"wtorek":       time.Tuesday,
	"wt":           time.Tuesday,
	"środa":        time.Wednesday,
	"sroda":        time.Wednesday,
	"śr":           time.Wednesday,
	"sr":           time.Wednesday,
	"czwartek":     time.Thursday,
	"czw":          time.Thursday,
	"cz":           time.Thursday,
	"piątek":       time.Friday,
	"piatek":       time.Friday,
	"pt":           time.Friday,
	"sobota":       time.Saturday,
	"sob":          time.Saturday,
	"niedziela":    time.Sunday,
	"niedz":        time.Sunday,
	"nd":           time.Sunday,
}

// ParseDay resolves a Polish weekday name (full or abbreviated, any case)
// to a time.Weekday.
func ParseDay(name string) (time.Weekday, bool) {
	day, ok := polishDays[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))]
	return day, ok
}

// DayName renders a weekday with the Polish name used in notifications.
func DayName(day time.Weekday) string {
	switch day {
	case time.Monday:
		return "poniedziałek"
	case time.Tuesday:
		return "wtorek"
	case time.Wednesday:
		return "środa"
	case time.Thursday:
		return "czwartek"
	case time.Friday:
		return "piątek"
	case time.Saturday:
		return "sobota"
	case time.Sunday:
		return "niedziela"
	}
	return day.String()
}
