package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// timeNow is swapped out in tests.
var timeNow = time.Now

var strictDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// lenientDateLayouts are tried in order when the input is not already in
// canonical form. MM/DD variants come before DD/MM to match how the model
// tends to emit US-style statement dates.
var lenientDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"January 2, 2006",
}

// normalizeDate coerces an arbitrary date string into canonical
// "YYYY-MM-DD" form. It is total: unusable input falls back to today's
// date in the process's local calendar.
//
// A string already matching \d{4}-\d{2}-\d{2} is accepted whenever the
// month is 1-12 and the day is 1-31, without cross-checking the day
// against the month's actual length. Day 31 in a 30-day month passes
// through unchanged; downstream consumers tolerate it.
// ValidDate reports whether s is already in canonical "YYYY-MM-DD" form
// with month 1-12 and day 1-31. Like normalizeDate's strict branch it does
// not cross-check the day against the month's length.
func ValidDate(s string) bool {
	if !strictDateRe.MatchString(s) {
		return false
	}
	month, _ := strconv.Atoi(s[5:7])
	day, _ := strconv.Atoi(s[8:10])
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return timeNow().Format(dateLayout)
	}

	if strictDateRe.MatchString(raw) {
		year, _ := strconv.Atoi(raw[0:4])
		month, _ := strconv.Atoi(raw[5:7])
		day, _ := strconv.Atoi(raw[8:10])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}

	for _, layout := range lenientDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(dateLayout)
		}
	}

	return timeNow().Format(dateLayout)
}
