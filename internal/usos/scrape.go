package usos

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"seatwatch/internal/models"
	"seatwatch/internal/schedule"
)

// Subject is one course inside a registration round.
type Subject struct {
	Name string
	Code string
}

// meetingRe matches one "day HH:MM - HH:MM" window inside the termin
// cell. A cell can carry several windows for groups meeting twice a week.
var meetingRe = regexp.MustCompile(`(\p{L}+\.?)\s+(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})`)

var nonDigits = regexp.MustCompile(`[^\d]`)

func (c *Client) fetchSubjects(ctx context.Context, reg Registration) ([]Subject, error) {
	pageURL := fmt.Sprintf("%s?_action=dla_stud/rejestracja/brdg2/wyborPrzedmiotu&rej_kod=%s", c.baseURL, reg.Code)
	body, _, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return c.parseSubjects(body)
}

func (c *Client) parseSubjects(body []byte) ([]Subject, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("subject page cannot be parsed as HTML: %w", err)
	}

	var subjects []Subject
	doc.Find("tr[id]").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		link := cells.Eq(0).Find("a").First()
		if link.Length() == 0 {
			return
		}
		subjects = append(subjects, Subject{
			Name: strings.TrimSpace(link.Text()),
			Code: row.AttrOr("id", ""),
		})
	})

	return subjects, nil
}

func (c *Client) fetchGroups(ctx context.Context, reg Registration, subject Subject) ([]models.Group, error) {
	pageURL := fmt.Sprintf(
		"%s?_action=dla_stud/rejestracja/brdg2/grupyPrzedmiotu&rej_kod=%s&prz_kod=%s&cdyd_kod=%s&odczyt=1&showLocationColumn=on&formFlag=1",
		c.baseURL, reg.Code, subject.Code, reg.Term)
	body, _, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return c.parseGroupTable(ctx, body, subject)
}

// parseGroupTable extracts one models.Group per meeting window from a
// subject's group table. Column positions are resolved from the header
// row, so reordering on the site does not break the scrape. Rows whose
// seat counts are not numeric default to zero instead of failing.
func (c *Client) parseGroupTable(ctx context.Context, body []byte, subject Subject) ([]models.Group, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("group page cannot be parsed as HTML: %w", err)
	}

	table := findGroupTable(doc)
	if table == nil {
		return nil, nil
	}

	columns := mapColumns(table)
	var groups []models.Group

	rowsRoot := table.Find("tbody")
	if rowsRoot.Length() == 0 {
		rowsRoot = table
	}

	rowsRoot.Find("tr").Each(func(idx int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 || row.HasClass("headnote") {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		cell := func(key string) string {
			i, ok := columns[key]
			if !ok || i >= cells.Length() {
				return ""
			}
			return strings.Join(strings.Fields(cells.Eq(i).Text()), " ")
		}

		label := cell("group")
		instructor := cell("instructor")
		termin := cell("termin")
		if termin == "" && instructor == "" {
			return
		}

		enrolled := parseCount(cell("enrolled"))
		capacity := parseCount(cell("limit"))

		for _, m := range meetingRe.FindAllStringSubmatch(termin, -1) {
			day, ok := schedule.ParseDay(m[1])
			if !ok {
				c.log.WarnContext(ctx, "Unrecognized weekday in group row",
					"day", m[1], "subject", subject.Code, "group", label)
				continue
			}
			start, err := schedule.ParseClock(m[2])
			if err != nil {
				c.log.WarnContext(ctx, "Unparsable start time in group row",
					"value", m[2], "subject", subject.Code, "group", label)
				continue
			}
			end, err := schedule.ParseClock(m[3])
			if err != nil {
				c.log.WarnContext(ctx, "Unparsable end time in group row",
					"value", m[3], "subject", subject.Code, "group", label)
				continue
			}

			groups = append(groups, models.Group{
				Subject:     subject.Name,
				SubjectCode: subject.Code,
				Label:       label,
				Instructor:  instructor,
				Day:         day,
				Start:       start,
				End:         end,
				Location:    cell("location"),
				Description: cell("description"),
				Enrolled:    enrolled,
				Capacity:    capacity,
			})
		}
	})

	return groups, nil
}

// findGroupTable prefers the "grey" table the registration page normally
// renders, falling back to any table mentioning an instructor column.
func findGroupTable(doc *goquery.Document) *goquery.Selection {
	if table := doc.Find("table.grey").First(); table.Length() > 0 {
		return table
	}

	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(t.Text()), "prowadz") {
			found = t
			return false
		}
		return true
	})
	return found
}

// mapColumns resolves header captions to cell indexes using the Polish
// keywords the page uses.
func mapColumns(table *goquery.Selection) map[string]int {
	header := table.Find("tr.headnote").First()
	if header.Length() == 0 {
		header = table.Find("thead tr").First()
	}

	columns := make(map[string]int)
	header.Find("th, td").Each(func(i int, h *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(h.Text()))
		for key, keyword := range map[string]string{
			"group":       "grupa",
			"instructor":  "prowadz",
			"termin":      "termin",
			"location":    "miejsce",
			"description": "opis",
			"enrolled":    "zapisanych",
		} {
			if strings.Contains(text, keyword) {
				columns[key] = i
			}
		}
		if strings.Contains(text, "limit") && strings.Contains(text, "rn") {
			columns["limit"] = i
		}
	})

	return columns
}

// parseCount strips everything non-numeric before parsing, since the page
// decorates counts with annotations. Empty or garbage cells become 0.
func parseCount(s string) int {
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
