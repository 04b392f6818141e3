package analytics

import "math"

// KPIBundle holds the top-level dashboard metrics. PeriodDelta
// is nil when no prior period was supplied; reporting 0 there
// would falsely imply "no change".
type KPIBundle struct {
	OverallProductivityRatio float64  `json:"overall_productivity_ratio"`
	ActiveUserCount          int      `json:"active_user_count"`
	TotalUserCount           int      `json:"total_user_count"`
	TotalSessions            int      `json:"total_sessions"`
	TotalTrackedSeconds      int      `json:"total_tracked_seconds"`
	AvgSessionSeconds        float64  `json:"avg_session_seconds"`
	PeriodDelta              *float64 `json:"period_delta"`
}

// overallRatio computes sum(productive)/sum(total) across a
// rollup, 0 when nothing was tracked.
func overallRatio(rollup map[string]UserSummary) float64 {
	productive, total := 0, 0
	for _, s := range rollup {
		productive += s.Productive
		total += s.Total
	}
	return ratio(productive, total)
}

// ComputeKPIs derives summary metrics from the current rollup
// and, when present, the prior comparable period's rollup.
// Pure function of its two inputs.
func ComputeKPIs(
	current, prior map[string]UserSummary,
) KPIBundle {
	k := KPIBundle{
		TotalUserCount: len(current),
	}
	for _, s := range current {
		if s.Total > 0 {
			k.ActiveUserCount++
		}
		k.TotalSessions += s.Sessions
		k.TotalTrackedSeconds += s.Total
	}
	k.OverallProductivityRatio = overallRatio(current)
	if k.TotalSessions > 0 {
		k.AvgSessionSeconds = math.Round(
			float64(k.TotalTrackedSeconds)/
				float64(k.TotalSessions)*10,
		) / 10
	}
	if prior != nil {
		delta := math.Round(
			(k.OverallProductivityRatio-overallRatio(prior))*10000,
		) / 10000
		k.PeriodDelta = &delta
	}
	return k
}
