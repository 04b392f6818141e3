package analytics

import (
	"sort"

	"github.com/trackview/trackview/internal/activity"
)

// UsageStat is one ranked app/URL entry within a category.
type UsageStat struct {
	Key       string `json:"key"`
	TotalTime int    `json:"total_time"`
	Visits    int    `json:"visits"`
}

// UsageRanking is the merged, ordered usage table for one
// category.
type UsageRanking struct {
	Category activity.Category `json:"category"`
	Entries  []UsageStat       `json:"entries"`
}

// AggregateUsage merges per-session usage maps for a category
// into one ranked table: total_time summed and visits counted
// per key, sorted descending by total_time with ties broken by
// key ascending. The ordering is deterministic under any input
// permutation. Zero-time keys are retained; they may represent
// configured-but-unused apps.
func AggregateUsage(
	sessions []activity.Session, cat activity.Category,
) UsageRanking {
	type acc struct {
		totalTime int
		visits    int
	}
	merged := make(map[string]acc)

	for _, s := range sessions {
		for key, entry := range s.Usage[cat] {
			a := merged[key]
			a.totalTime += entry.TotalTime
			a.visits += len(entry.Visits)
			merged[key] = a
		}
	}

	entries := make([]UsageStat, 0, len(merged))
	for key, a := range merged {
		entries = append(entries, UsageStat{
			Key:       key,
			TotalTime: a.totalTime,
			Visits:    a.visits,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalTime != entries[j].TotalTime {
			return entries[i].TotalTime > entries[j].TotalTime
		}
		return entries[i].Key < entries[j].Key
	})

	return UsageRanking{Category: cat, Entries: entries}
}

// TopByTime returns at most n entries of the ranking, which is
// already ordered by time.
func (r UsageRanking) TopByTime(n int) []UsageStat {
	if n < 0 || n >= len(r.Entries) {
		return r.Entries
	}
	return r.Entries[:n]
}

// TopByVisits returns at most n entries re-ranked by visit
// count descending, ties by key ascending.
func (r UsageRanking) TopByVisits(n int) []UsageStat {
	byVisits := make([]UsageStat, len(r.Entries))
	copy(byVisits, r.Entries)
	sort.Slice(byVisits, func(i, j int) bool {
		if byVisits[i].Visits != byVisits[j].Visits {
			return byVisits[i].Visits > byVisits[j].Visits
		}
		return byVisits[i].Key < byVisits[j].Key
	})
	if n < 0 || n >= len(byVisits) {
		return byVisits
	}
	return byVisits[:n]
}
