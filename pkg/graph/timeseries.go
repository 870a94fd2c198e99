package graph

import (
	"fmt"
	"strings"
	"time"
)

// Resolution is the granularity at which timeseries samples are indexed.
type Resolution string

const (
	ResolutionYear  Resolution = "year"
	ResolutionMonth Resolution = "month"
	ResolutionDay   Resolution = "day"
	ResolutionHour  Resolution = "hour"
)

// ParseResolution validates a resolution tag from configuration.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case ResolutionYear, ResolutionMonth, ResolutionDay, ResolutionHour:
		return r, nil
	}
	return "", fmt.Errorf("unknown timeseries resolution: %q", s)
}

// Truncate floors a timestamp to the resolution, in UTC.
func (r Resolution) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch r {
	case ResolutionYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case ResolutionMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case ResolutionDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case ResolutionHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	}
	return t
}

// TimeFromComponents assembles a timestamp from named calendar components.
// Missing month/day default to 1, missing hour to 0. The bool return is
// false when every present component is zero: such rows are pre-aggregated
// totals upstream and are excluded from storage.
func TimeFromComponents(year, month, day, hour int64, present map[string]bool) (time.Time, bool) {
	allZero := true
	check := func(name string, v int64) {
		if present[name] && v != 0 {
			allZero = false
		}
	}
	check("year", year)
	check("month", month)
	check("day", day)
	check("hour", hour)
	if allZero {
		return time.Time{}, false
	}

	if !present["month"] || month == 0 {
		month = 1
	}
	if !present["day"] || day == 0 {
		day = 1
	}
	if !present["hour"] {
		hour = 0
	}
	return time.Date(int(year), time.Month(month), int(day), int(hour), 0, 0, 0, time.UTC), true
}
