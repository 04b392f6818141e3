package analytics

import (
	"math"
	"sort"

	"github.com/trackview/trackview/internal/activity"
)

// UserSummary holds per-user totals across a date range.
type UserSummary struct {
	Username          string  `json:"username"`
	Sessions          int     `json:"sessions"`
	Productive        int     `json:"productive"`
	Neutral           int     `json:"neutral"`
	Wasted            int     `json:"wasted"`
	Idle              int     `json:"idle"`
	Total             int     `json:"total"`
	ProductivityRatio float64 `json:"productivity_ratio"`
}

// ratio returns productive/total rounded to 4 places, defined
// as 0 when total is 0 rather than undefined.
func ratio(productive, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(
		float64(productive)/float64(total)*10000,
	) / 10000
}

// RollupUsers computes per-user summaries for sessions inside
// the range. Every name in usernames appears in the result,
// including users with no activity in range, so consumers can
// render "no activity" instead of dropping the user.
func RollupUsers(
	sessions []activity.UserSession,
	usernames []string,
	rng DateRange,
) (map[string]UserSummary, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]UserSummary, len(usernames))
	for _, name := range usernames {
		out[name] = UserSummary{Username: name}
	}

	for _, us := range sessions {
		if !rng.Contains(us.Date) {
			continue
		}
		s := out[us.Username]
		s.Username = us.Username
		s.Sessions++
		s.Productive += us.Session.ProductiveTime
		s.Neutral += us.Session.NeutralTime
		s.Wasted += us.Session.WastedTime
		s.Idle += us.Session.IdleTime
		s.Total += us.Session.TotalTime
		out[us.Username] = s
	}

	for name, s := range out {
		s.ProductivityRatio = ratio(s.Productive, s.Total)
		out[name] = s
	}
	return out, nil
}

// RankUsers is the derived "most productive" view over a
// rollup: descending by productivity ratio, then by total
// time, ties broken by username ascending.
func RankUsers(rollup map[string]UserSummary) []UserSummary {
	ranked := make([]UserSummary, 0, len(rollup))
	for _, s := range rollup {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ProductivityRatio != b.ProductivityRatio {
			return a.ProductivityRatio > b.ProductivityRatio
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Username < b.Username
	})
	return ranked
}

// DailyUserStat is one day of a single user's activity, for
// the per-user daily statistics table.
type DailyUserStat struct {
	Date              string  `json:"date"`
	Sessions          int     `json:"sessions"`
	Productive        int     `json:"productive"`
	Neutral           int     `json:"neutral"`
	Wasted            int     `json:"wasted"`
	Idle              int     `json:"idle"`
	Total             int     `json:"total"`
	ProductivityRatio float64 `json:"productivity_ratio"`
}

// DailyStats folds one user's sessions into per-day rows over
// the full range, zero-filling inactive days.
func DailyStats(
	sessions []activity.DatedSession, rng DateRange,
) ([]DailyUserStat, error) {
	buckets, err := AggregateIntervals(
		sessions, GranularityDay, rng,
	)
	if err != nil {
		return nil, err
	}
	stats := make([]DailyUserStat, len(buckets))
	for i, b := range buckets {
		stats[i] = DailyUserStat{
			Date:              b.Key,
			Sessions:          b.Sessions,
			Productive:        b.Productive,
			Neutral:           b.Neutral,
			Wasted:            b.Wasted,
			Idle:              b.Idle,
			Total:             b.Total,
			ProductivityRatio: ratio(b.Productive, b.Total),
		}
	}
	return stats, nil
}
