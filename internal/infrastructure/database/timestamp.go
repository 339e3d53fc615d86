package database

import (
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for every TEXT timestamp
// column. Lexical order of formatted values equals chronological order, so
// range filters and ORDER BY work on the raw strings.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout value, falling back to RFC 3339 for rows
// written by other tools.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
