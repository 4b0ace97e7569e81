// Package agenda holds the pure aggregation and filtering logic behind the
// dashboard: deadline and event urgency, pending filings and tasks, client
// debt flags and in-memory list filters. Nothing here touches the store.
package agenda

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateSep = regexp.MustCompile(`[-/]`)

// fallbackLayouts are tried when a date does not split into three parts.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon Jan 2 2006",
}

// ParseDate turns a stored date string into local midnight in loc.
// Accepted forms are YYYY-MM-DD, YYYY/MM/DD, DD/MM/YYYY and a handful of
// timestamp layouts. ok is false for empty or unparsable input; callers skip
// such records.
func ParseDate(s string, loc *time.Location) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	if parts := dateSep.Split(s, -1); len(parts) == 3 {
		return fromParts(parts, loc)
	}

	for _, layout := range fallbackLayouts {
		if p, err := time.Parse(layout, s); err == nil {
			// layouts without a zone parse as UTC; keep their wall clock
			if p.Location() != time.UTC || strings.HasSuffix(s, "Z") {
				p = p.In(loc)
			}
			y, m, d := p.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

// fromParts reads year/month/day tokens. The day token keeps only its first
// two characters so "10T09:30" still yields the 10th. A four-digit third
// token with a short first token is read as DD/MM/YYYY.
func fromParts(parts []string, loc *time.Location) (time.Time, bool) {
	y, m, d := parts[0], parts[1], parts[2]
	if len(y) <= 2 && len(d) >= 4 && isDigits(d[:4]) {
		y, d = d[:4], y
	}
	if len(d) > 2 {
		d = d[:2]
	}

	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// reject roll-over such as 2025-02-30
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Midnight zeroes the time of day of t in its own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayOffset is the number of calendar days from today to day. Both arguments
// are expected at local midnight; rounding absorbs DST hours.
func DayOffset(today, day time.Time) int {
	return int(math.Round(day.Sub(today).Hours() / 24))
}

// FormatDate renders a normalised date the way the practice writes it.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
