// Package timeparser reads the timestamps sensors attach to their readings.
package timeparser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layouts without a zone are read as UTC.
var readingLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseReadingTimestamp parses an RFC 3339 timestamp or a zoneless
// "YYYY-MM-DD hh:mm:ss" one. The result is in UTC.
func ParseReadingTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	for _, layout := range readingLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q, expected RFC 3339 or YYYY-MM-DD hh:mm:ss", value)
}

// IsWithinTolerance reports whether readingTime lies within tolerance of
// receivedTime, in either direction. The boundary is inclusive.
func IsWithinTolerance(readingTime, receivedTime time.Time, tolerance time.Duration) bool {
	skew := readingTime.Sub(receivedTime)
	return skew >= -tolerance && skew <= tolerance
}
