package features

import (
	"fmt"
	"time"
)

// Granularity identifies the period bucketing used for time series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity validates a configured granularity string.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown period granularity %q (want day, week or month)", s)
}

// BucketStart truncates t to the start of its period. Weeks start Monday,
// months bucket to the first of the month. All periods are UTC dates.
func (g Granularity) BucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday=0
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Next returns the start of the period following p.
func (g Granularity) Next(p time.Time) time.Time {
	switch g {
	case GranularityDay:
		return p.AddDate(0, 0, 1)
	case GranularityWeek:
		return p.AddDate(0, 0, 7)
	case GranularityMonth:
		return p.AddDate(0, 1, 0)
	}
	return p
}
