package timetrack

import (
	"fmt"
	"strings"
	"time"
)

// serverTimeLayouts are tried in order for session-start timestamps.
// The backend inherited a format that sometimes omits the timezone; a naive
// timestamp is parsed in the device's local zone, never assumed UTC, because
// the server writes wall-clock time for the technician's site. Treating it
// as UTC produced multi-hour drift in the source system.
var serverTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseServerTime parses a server-issued timestamp string. Timestamps with
// an explicit offset are honored; naive timestamps are interpreted in loc
// (pass time.Local outside of tests).
func ParseServerTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range serverTimeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
