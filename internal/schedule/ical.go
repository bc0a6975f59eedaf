package schedule

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// DefaultMinOccurrences is how many times a (day, start, end) triple must
// repeat in the calendar export before it counts as a weekly commitment.
// Fewer repeats are treated as one-off anomalies (substitutions, shifted
// sessions, semester-boundary artifacts).
const DefaultMinOccurrences = 3

// maxRuleOccurrences caps weekly-rule expansion so an unbounded RRULE
// cannot blow up extraction.
const maxRuleOccurrences = 60

// Extractor builds a Weekly schedule from an iCalendar export.
type Extractor struct {
	log            *slog.Logger
	minOccurrences int
}

// NewExtractor creates an Extractor. A non-positive minOccurrences falls
// back to DefaultMinOccurrences.
func NewExtractor(log *slog.Logger, minOccurrences int) *Extractor {
	if minOccurrences <= 0 {
		minOccurrences = DefaultMinOccurrences
	}
	return &Extractor{log: log, minOccurrences: minOccurrences}
}

// Extract parses an iCalendar stream and returns the deduplicated weekly
// schedule. Individual malformed events are skipped with a warning;
// only a calendar-level parse failure is returned as an error.
func (e *Extractor) Extract(r io.Reader) (Weekly, error) {
	const opn = "schedule.Extract"

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse calendar: %w", opn, err)
	}

	counts := make(map[Window]int)
	skipped := 0

	for _, event := range cal.Events() {
		start, err := event.GetStartAt()
		if err != nil {
			skipped++
			continue
		}
		end, err := event.GetEndAt()
		if err != nil {
			skipped++
			continue
		}

		if raw := rawRRule(event); raw != "" {
			e.countRecurring(counts, raw, start, end.Sub(start))
			continue
		}
		e.countOccurrence(counts, start, end.Sub(start))
	}

	if skipped > 0 {
		e.log.Warn("Skipped calendar events with unparsable timestamps", "count", skipped)
	}

	weekly := make(Weekly, 0, len(counts))
	for window, n := range counts {
		if n >= e.minOccurrences {
			weekly = append(weekly, window)
		}
	}

	if len(weekly) == 0 {
		e.log.Warn("Calendar yielded an empty weekly schedule; no conflicts will ever be detected",
			"events", len(cal.Events()), "min_occurrences", e.minOccurrences)
	}

	return weekly, nil
}

// ExtractFile reads the calendar from disk. A missing or unparsable file
// degrades to an empty schedule with a warning: a batch run must not
// abort on calendar corruption, but the silent-degradation risk is logged.
func (e *Extractor) ExtractFile(path string) Weekly {
	file, err := os.Open(path)
	if err != nil {
		e.log.Warn("Calendar file unavailable; continuing with an empty schedule", "path", path, "error", err)
		return Weekly{}
	}
	defer file.Close()

	weekly, err := e.Extract(file)
	if err != nil {
		e.log.Warn("Calendar file could not be parsed; continuing with an empty schedule", "path", path, "error", err)
		return Weekly{}
	}
	return weekly
}

// countOccurrence folds one concrete event instance into the counter,
// discarding the date component. Zero-length and midnight-crossing
// instances are not representable as a Window and are dropped.
func (e *Extractor) countOccurrence(counts map[Window]int, start time.Time, duration time.Duration) {
	if duration <= 0 {
		e.log.Warn("Skipping calendar event with non-positive duration", "start", start)
		return
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := startMin + int(duration.Minutes())
	if endMin >= minutesPerDay {
		e.log.Warn("Skipping calendar event crossing midnight", "start", start)
		return
	}

	counts[Window{Day: start.Weekday(), Start: startMin, End: endMin}]++
}

// countRecurring expands a weekly rule into concrete instances so that a
// repeating commitment expressed as a single VEVENT still clears the
// occurrence threshold. Non-weekly frequencies are out of the model and
// count once, like a plain event.
func (e *Extractor) countRecurring(counts map[Window]int, raw string, start time.Time, duration time.Duration) {
	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		e.log.Warn("Skipping unparsable recurrence rule", "rrule", raw, "error", err)
		e.countOccurrence(counts, start, duration)
		return
	}

	if rule.Options.Freq != rrule.WEEKLY {
		e.log.Warn("Ignoring non-weekly recurrence rule", "rrule", raw)
		e.countOccurrence(counts, start, duration)
		return
	}

	rule.DTStart(start)
	instances := rule.Between(start.AddDate(0, 0, -1), start.AddDate(1, 0, 0), true)
	if len(instances) > maxRuleOccurrences {
		instances = instances[:maxRuleOccurrences]
	}
	for _, instance := range instances {
		e.countOccurrence(counts, instance, duration)
	}
}

func rawRRule(event *ical.VEvent) string {
	if prop := event.GetProperty(ical.ComponentPropertyRrule); prop != nil {
		return prop.Value
	}
	return ""
}
