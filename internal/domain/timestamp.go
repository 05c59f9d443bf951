package domain

import (
	"fmt"
	"strings"
	"time"
)

// Wire layouts seen in the events API. The first is the compact numeric
// offset form ("+0100"), the rest are ISO-8601 extended.
var timestampLayouts = []string{
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999-0700",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseTimestamp accepts both wire formats and returns the instant.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty value: %w", ErrUnparsableTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", s, ErrUnparsableTimestamp)
}

// FormatTimestamp renders t in the compact wire form.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayouts[0])
}
