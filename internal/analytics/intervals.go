package analytics

import (
	"fmt"
	"sort"

	"github.com/trackview/trackview/internal/activity"
)

// IntervalBucket holds summed counters for one time bucket.
// Key is the bucket's date for day and week granularity, or
// "YYYY-MM-DDTHH" for hour granularity.
type IntervalBucket struct {
	Key        string `json:"key"`
	Sessions   int    `json:"sessions"`
	Productive int    `json:"productive"`
	Neutral    int    `json:"neutral"`
	Wasted     int    `json:"wasted"`
	Idle       int    `json:"idle"`
	Total      int    `json:"total"`
}

// bucketKey derives the bucket a dated session belongs to.
// Returns false when the session cannot be bucketed (hour
// granularity with a malformed start time).
func bucketKey(
	ds activity.DatedSession, gran Granularity,
) (string, bool) {
	switch gran {
	case GranularityHour:
		h := ds.Session.StartHour()
		if h < 0 {
			return "", false
		}
		return fmt.Sprintf("%sT%02d", ds.Date, h), true
	case GranularityWeek:
		return weekStart(ds.Date), true
	default:
		return ds.Date, true
	}
}

// emptyAxis builds the complete zero-filled bucket axis for
// the range. Zero buckets are emitted so chart consumers see
// gaps instead of missing points.
func emptyAxis(
	rng DateRange, gran Granularity,
) ([]IntervalBucket, map[string]int) {
	var keys []string
	switch gran {
	case GranularityHour:
		rng.EachDay(func(date string) {
			for h := range 24 {
				keys = append(keys,
					fmt.Sprintf("%sT%02d", date, h))
			}
		})
	case GranularityWeek:
		seen := make(map[string]bool)
		rng.EachDay(func(date string) {
			w := weekStart(date)
			if !seen[w] {
				seen[w] = true
				keys = append(keys, w)
			}
		})
	default:
		rng.EachDay(func(date string) {
			keys = append(keys, date)
		})
	}

	buckets := make([]IntervalBucket, len(keys))
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		buckets[i] = IntervalBucket{Key: k}
		index[k] = i
	}
	return buckets, index
}

// AggregateIntervals folds sessions into time buckets at the
// requested granularity. The returned slice covers the whole
// range in strictly ascending key order; sessions outside the
// range are excluded, and sessions spanning midnight count
// entirely toward their recorded date.
func AggregateIntervals(
	sessions []activity.DatedSession,
	gran Granularity,
	rng DateRange,
) ([]IntervalBucket, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	buckets, index := emptyAxis(rng, gran)

	for _, ds := range sessions {
		if !rng.Contains(ds.Date) {
			continue
		}
		key, ok := bucketKey(ds, gran)
		if !ok {
			continue
		}
		// emptyAxis derives week keys from the same dates, so
		// in-range sessions always land on the axis.
		i, ok := index[key]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.Sessions++
		b.Productive += ds.Session.ProductiveTime
		b.Neutral += ds.Session.NeutralTime
		b.Wasted += ds.Session.WastedTime
		b.Idle += ds.Session.IdleTime
		b.Total += ds.Session.TotalTime
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Key < buckets[j].Key
	})
	return buckets, nil
}
