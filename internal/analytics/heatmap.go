package analytics

import (
	"sort"
	"time"

	"github.com/trackview/trackview/internal/activity"
)

// HourOfWeekCell is one cell in the 7x24 hour-of-week grid.
type HourOfWeekCell struct {
	DayOfWeek  int `json:"day_of_week"` // 0=Mon, 6=Sun
	Hour       int `json:"hour"`        // 0-23
	Productive int `json:"productive"`
	Neutral    int `json:"neutral"`
	Wasted     int `json:"wasted"`
	Idle       int `json:"idle"`
}

// HourOfWeek buckets session counters by day-of-week and
// start hour. Sessions outside the range or with malformed
// start times are skipped, matching the hourly trend chart.
func HourOfWeek(
	sessions []activity.DatedSession, rng DateRange,
) ([]HourOfWeekCell, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	var grid [7][24]HourOfWeekCell

	for _, ds := range sessions {
		if !rng.Contains(ds.Date) {
			continue
		}
		t, err := time.Parse("2006-01-02", ds.Date)
		if err != nil {
			continue
		}
		h := ds.Session.StartHour()
		if h < 0 {
			continue
		}
		dow := (int(t.Weekday()) + 6) % 7 // ISO Mon=0
		cell := &grid[dow][h]
		cell.Productive += ds.Session.ProductiveTime
		cell.Neutral += ds.Session.NeutralTime
		cell.Wasted += ds.Session.WastedTime
		cell.Idle += ds.Session.IdleTime
	}

	cells := make([]HourOfWeekCell, 0, 168)
	for d := range 7 {
		for h := range 24 {
			c := grid[d][h]
			c.DayOfWeek = d
			c.Hour = h
			cells = append(cells, c)
		}
	}
	return cells, nil
}

// HeatmapEntry is one day in the calendar heatmap.
type HeatmapEntry struct {
	Date  string `json:"date"`
	Value int    `json:"value"` // tracked seconds
	Level int    `json:"level"` // 0-4 intensity
}

// HeatmapLevels defines the quartile thresholds for levels 1-4.
type HeatmapLevels struct {
	L1 int `json:"l1"`
	L2 int `json:"l2"`
	L3 int `json:"l3"`
	L4 int `json:"l4"`
}

// computeQuartileLevels computes thresholds from sorted
// non-zero daily values.
func computeQuartileLevels(sorted []int) HeatmapLevels {
	if len(sorted) == 0 {
		return HeatmapLevels{L1: 1, L2: 2, L3: 3, L4: 4}
	}
	n := len(sorted)
	return HeatmapLevels{
		L1: sorted[0],
		L2: sorted[n/4],
		L3: sorted[n/2],
		L4: sorted[n*3/4],
	}
}

// assignLevel determines the heatmap level (0-4) for a value.
func assignLevel(value int, levels HeatmapLevels) int {
	if value <= 0 {
		return 0
	}
	if value <= levels.L2 {
		return 1
	}
	if value <= levels.L3 {
		return 2
	}
	if value <= levels.L4 {
		return 3
	}
	return 4
}

// CalendarHeatmap returns one entry per day in the range with
// the day's total tracked seconds and a quartile intensity
// level for calendar rendering.
func CalendarHeatmap(
	sessions []activity.DatedSession, rng DateRange,
) ([]HeatmapEntry, HeatmapLevels, error) {
	buckets, err := AggregateIntervals(
		sessions, GranularityDay, rng,
	)
	if err != nil {
		return nil, HeatmapLevels{}, err
	}

	var values []int
	for _, b := range buckets {
		if b.Total > 0 {
			values = append(values, b.Total)
		}
	}
	sort.Ints(values)
	levels := computeQuartileLevels(values)

	entries := make([]HeatmapEntry, len(buckets))
	for i, b := range buckets {
		entries[i] = HeatmapEntry{
			Date:  b.Key,
			Value: b.Total,
			Level: assignLevel(b.Total, levels),
		}
	}
	return entries, levels, nil
}
