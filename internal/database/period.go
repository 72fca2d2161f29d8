package database

import (
	"fmt"
	"time"
)

// TimestampLayout is how run timestamps are stored.
const TimestampLayout = "2006-01-02T15:04:05Z"

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format("2006-01-02")
}

// FormatRunDisplay formats a stored timestamp for human-readable display,
// e.g. "Oct 19, 2026 06:00 UTC". Unparseable input is returned as is.
func FormatRunDisplay(ts string) string {
	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 02, 2006 15:04 UTC")
}

// RunDuration returns how long a finished run took, or "" while it is
// still running.
func RunDuration(r Run) string {
	if r.FinishedAt == nil {
		return ""
	}
	start, err := time.Parse(TimestampLayout, r.StartedAt)
	if err != nil {
		return ""
	}
	end, err := time.Parse(TimestampLayout, *r.FinishedAt)
	if err != nil {
		return ""
	}
	d := end.Sub(start).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return d.String()
}
