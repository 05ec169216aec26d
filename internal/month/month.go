// Package month handles the canonical YYYY-MM month keys used to bucket records.
package month

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical month format.
const Layout = "2006-01"

// Parse validates a YYYY-MM string and returns the first day of that month.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(Layout, s)
	if err != nil || len(s) != len(Layout) {
		return time.Time{}, fmt.Errorf("month %q is not in YYYY-MM form", s)
	}
	return t, nil
}

// Valid reports whether s is a well-formed YYYY-MM month.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Of returns the canonical month key for a timestamp.
func Of(t time.Time) string {
	return t.Format(Layout)
}

// Prev returns the month before m, or "" if m is malformed.
func Prev(m string) string {
	t, err := Parse(m)
	if err != nil {
		return ""
	}
	return Of(t.AddDate(0, -1, 0))
}

// Range expands an inclusive (start, end) pair into the monthly sequence
// between them. Both bounds must be valid and start must not be after end.
func Range(start, end string) ([]string, error) {
	s, err := Parse(start)
	if err != nil {
		return nil, err
	}
	e, err := Parse(end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, fmt.Errorf("range start %s is after end %s", start, end)
	}
	var out []string
	for cur := s; !cur.After(e); cur = cur.AddDate(0, 1, 0) {
		out = append(out, Of(cur))
	}
	return out, nil
}

// Display formats a month key for people: "2025-06" becomes "Jun 2025".
// Malformed keys are returned unchanged.
func Display(m string) string {
	t, err := Parse(m)
	if err != nil {
		return m
	}
	return t.Format("Jan 2006")
}
