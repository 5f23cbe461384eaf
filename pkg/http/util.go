package http

import (
	"time"

	xutil "VitalSense/pkg/util"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseRange parses optional from/to query bounds; see util.ParseRange.
func ParseRange(from, to string) (time.Time, time.Time, error) { return xutil.ParseRange(from, to) }
