package domain

import "time"

// TimestampLayout is the wire format for every stored and returned timestamp (UTC, literal Z).
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string. RFC 3339 values are accepted as well.
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, raw)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
