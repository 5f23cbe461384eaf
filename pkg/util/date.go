package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseRange parses an optional [from, to] pair. Empty bounds stay zero.
// A non-empty bound that does not parse, or from after to, is an error.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	var ok bool
	if from != "" {
		if f, ok = ParseTime(from); !ok {
			return f, t, fmt.Errorf("invalid from %q", from)
		}
	}
	if to != "" {
		if t, ok = ParseTime(to); !ok {
			return f, t, fmt.Errorf("invalid to %q", to)
		}
	}
	if !f.IsZero() && !t.IsZero() && f.After(t) {
		return f, t, fmt.Errorf("from %s is after to %s", f.Format(time.RFC3339), t.Format(time.RFC3339))
	}
	return f, t, nil
}
