package analytics

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDateRange is returned when a range ends before it
// starts. Range errors are rejected before any aggregation
// work begins.
var ErrInvalidDateRange = errors.New("date range ends before it starts")

// DateRange is an inclusive [From, To] span of calendar dates.
type DateRange struct {
	From string // YYYY-MM-DD
	To   string // YYYY-MM-DD
}

// Validate checks both endpoints are well-formed dates and
// From does not come after To.
func (r DateRange) Validate() error {
	from, err := time.Parse("2006-01-02", r.From)
	if err != nil {
		return fmt.Errorf("parsing range start %q: %w", r.From, err)
	}
	to, err := time.Parse("2006-01-02", r.To)
	if err != nil {
		return fmt.Errorf("parsing range end %q: %w", r.To, err)
	}
	if from.After(to) {
		return ErrInvalidDateRange
	}
	return nil
}

// Contains reports whether date falls inside the range.
// ISO dates compare correctly as strings.
func (r DateRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}

// EachDay calls fn for every date in the range in ascending
// order. Validate must have been called first.
func (r DateRange) EachDay(fn func(date string)) {
	start, err := time.Parse("2006-01-02", r.From)
	if err != nil {
		return
	}
	end, err := time.Parse("2006-01-02", r.To)
	if err != nil {
		return
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		fn(d.Format("2006-01-02"))
	}
}

// PriorPeriod returns the range of equal length immediately
// before this one, used for KPI period deltas.
func (r DateRange) PriorPeriod() (DateRange, error) {
	start, err := time.Parse("2006-01-02", r.From)
	if err != nil {
		return DateRange{}, fmt.Errorf(
			"parsing range start %q: %w", r.From, err,
		)
	}
	end, err := time.Parse("2006-01-02", r.To)
	if err != nil {
		return DateRange{}, fmt.Errorf(
			"parsing range end %q: %w", r.To, err,
		)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return DateRange{
		From: start.AddDate(0, 0, -days).Format("2006-01-02"),
		To:   start.AddDate(0, 0, -1).Format("2006-01-02"),
	}, nil
}

// Granularity is the time-bucket resolution for trend
// aggregation.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// ParseGranularity validates a granularity parameter. Empty
// input defaults to day.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case "":
		return GranularityDay, true
	case GranularityHour, GranularityDay, GranularityWeek:
		return Granularity(s), true
	}
	return "", false
}

// weekStart truncates a date to its ISO week (Monday start).
func weekStart(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return t.AddDate(0, 0, -(weekday - 1)).Format("2006-01-02")
}
