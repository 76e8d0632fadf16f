// Package units holds the shared time conventions of the capture pipeline.
// Frame timestamps are naive wall-clock readings; every run interprets
// them, and its window bounds, in one configured location so comparisons
// stay like for like.
package units

import (
	"fmt"
	"time"
)

const (
	// TimeLayout renders window bounds, event values and log lines.
	TimeLayout = "2006-01-02 15:04:05"
	// CompactTimeLayout stamps output file names.
	CompactTimeLayout = "20060102150405"
)

// LoadLocation resolves a configured timezone name. Empty and "Local" mean
// the host timezone, which matches the historical behavior of the capture
// tooling; anything else must resolve in the system tz database.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", name, err)
	}
	return loc, nil
}

// IsTimezoneValid checks the name against the actual system tz database
// rather than a hardcoded list.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	if tz == "Local" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ParseWindowTime parses a window bound in the shared layout and location.
func ParseWindowTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(TimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q must match %q: %w", s, TimeLayout, err)
	}
	return t, nil
}
