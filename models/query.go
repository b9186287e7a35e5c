package models

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Period is an inclusive creation-date window.
type Period struct {
	From time.Time
	To   time.Time
}

// ParsePeriod parses the dateFrom/dateTo query values. Both accept YYYY-MM-DD or RFC 3339;
// only the calendar date is kept, read in the timestamp's own offset.
func ParsePeriod(dateFrom, dateTo string) (Period, error) {
	from, err := parseDate("dateFrom", dateFrom)
	if err != nil {
		return Period{}, err
	}
	to, err := parseDate("dateTo", dateTo)
	if err != nil {
		return Period{}, err
	}
	if DayStart(from).After(DayStart(to)) {
		return Period{}, NewValidationError("dateFrom", "must not be after dateTo")
	}
	return Period{From: from, To: to}, nil
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, NewValidationError(field, "is required")
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, NewValidationError(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	// A timestamp names the calendar day in its own offset.
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// DayStart returns 00:00:00 of t's calendar day in UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayEnd returns the last representable instant of t's calendar day in UTC.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ParseTagList splits a comma-separated tag filter into distinct labels.
// Labels are trimmed and compared case-insensitively for de-duplication; empty labels are dropped.
func ParseTagList(raw string) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	return tags
}
