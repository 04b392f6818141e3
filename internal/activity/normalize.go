package activity

import "fmt"

// IssueKind classifies a data-quality problem found while
// normalizing a raw session.
type IssueKind string

const (
	IssueInvalidShift     IssueKind = "invalid_shift"
	IssueNegativeDuration IssueKind = "negative_duration"
	IssueTotalMismatch    IssueKind = "total_mismatch"
	IssueMalformedUsage   IssueKind = "malformed_usage_map"
	IssueUnknownCategory  IssueKind = "unknown_category"
)

// Issue records one normalization finding. Fatal issues cause
// the session to be dropped; non-fatal ones are informational
// and the session is kept.
type Issue struct {
	Kind      IssueKind
	SessionID string
	Detail    string
	Fatal     bool
}

func (i Issue) Error() string {
	return fmt.Sprintf(
		"session %s: %s: %s", i.SessionID, i.Kind, i.Detail,
	)
}

// TotalPolicy decides what happens when total_time disagrees
// with the sum of the four counters beyond the tolerance.
type TotalPolicy int

const (
	// TotalPolicyRecompute replaces total_time with the counter
	// sum and keeps the session. The mismatch is still
	// reported. This is the default.
	TotalPolicyRecompute TotalPolicy = iota
	// TotalPolicyReject drops the session.
	TotalPolicyReject
)

// Options configures normalization. The zero value is the
// recommended default: exact total match required, recompute
// on mismatch.
type Options struct {
	// Tolerance is the allowed absolute difference, in
	// seconds, between total_time and the counter sum.
	Tolerance int
	// TotalPolicy selects recompute-and-continue (default) or
	// reject on mismatch.
	TotalPolicy TotalPolicy
}

// Normalize converts a raw session into canonical form. The
// returned issues describe every deviation from the expected
// shape; ok is false when a fatal issue dropped the session.
// Pure function: the input is never mutated.
func Normalize(
	raw RawSession, opts Options,
) (Session, []Issue, bool) {
	var issues []Issue
	sid := raw.SessionID

	shift := ShiftOn
	switch raw.SessionShift {
	case "", string(ShiftOn):
		// default applies
	case string(ShiftOff):
		shift = ShiftOff
	default:
		issues = append(issues, Issue{
			Kind:      IssueInvalidShift,
			SessionID: sid,
			Detail:    "session_shift " + raw.SessionShift,
			Fatal:     true,
		})
		return Session{}, issues, false
	}

	counters := []struct {
		name  string
		value int
	}{
		{"productive_time", raw.ProductiveTime},
		{"neutral_time", raw.NeutralTime},
		{"wasted_time", raw.WastedTime},
		{"idle_time", raw.IdleTime},
	}
	vals := make([]int, len(counters))
	for i, c := range counters {
		if c.value == AbsentCounter {
			vals[i] = 0 // absent counter defaults to zero
			continue
		}
		if c.value < 0 {
			issues = append(issues, Issue{
				Kind:      IssueNegativeDuration,
				SessionID: sid,
				Detail: fmt.Sprintf(
					"%s = %d", c.name, c.value,
				),
				Fatal: true,
			})
			return Session{}, issues, false
		}
		vals[i] = c.value
	}

	sum := vals[0] + vals[1] + vals[2] + vals[3]
	total := sum
	if raw.HasTotalTime {
		diff := raw.TotalTime - sum
		if diff < 0 {
			diff = -diff
		}
		if diff > opts.Tolerance {
			issues = append(issues, Issue{
				Kind:      IssueTotalMismatch,
				SessionID: sid,
				Detail: fmt.Sprintf(
					"total_time %d, counter sum %d",
					raw.TotalTime, sum,
				),
				Fatal: opts.TotalPolicy == TotalPolicyReject,
			})
			if opts.TotalPolicy == TotalPolicyReject {
				return Session{}, issues, false
			}
			// recompute: total stays the counter sum
		} else {
			total = raw.TotalTime
		}
	}

	usage, usageIssues := normalizeUsage(sid, raw.UsageBreakdown)
	issues = append(issues, usageIssues...)

	return Session{
		SessionID:      sid,
		StartTime:      raw.StartTime,
		EndTime:        raw.EndTime,
		ProductiveTime: vals[0],
		NeutralTime:    vals[1],
		WastedTime:     vals[2],
		IdleTime:       vals[3],
		TotalTime:      total,
		Shift:          shift,
		Usage:          usage,
	}, issues, true
}

// normalizeUsage maps raw category keys onto the closed enum,
// guaranteeing a (possibly empty) map for every known
// category. Unknown categories are preserved under
// CategoryUnknown and flagged; a category whose value is not
// an object is flagged malformed and skipped.
func normalizeUsage(
	sid string, raw map[string]map[string]UsageEntry,
) (map[Category]map[string]UsageEntry, []Issue) {
	usage := make(map[Category]map[string]UsageEntry)
	for _, cat := range KnownCategories {
		usage[cat] = map[string]UsageEntry{}
	}

	var issues []Issue
	for key, items := range raw {
		if items == nil {
			issues = append(issues, Issue{
				Kind:      IssueMalformedUsage,
				SessionID: sid,
				Detail:    "category " + key + " is not a map",
			})
			continue
		}
		cat, known := ParseCategory(key)
		if !known {
			issues = append(issues, Issue{
				Kind:      IssueUnknownCategory,
				SessionID: sid,
				Detail:    "category " + key,
			})
			if usage[CategoryUnknown] == nil {
				usage[CategoryUnknown] = map[string]UsageEntry{}
			}
		}
		dst := usage[cat]
		for app, entry := range items {
			merged := dst[app]
			merged.TotalTime += entry.TotalTime
			merged.Visits = append(
				merged.Visits, entry.Visits...,
			)
			dst[app] = merged
		}
	}
	return usage, issues
}

// NormalizedUser is one user's canonical sessions plus the
// issues found while normalizing them.
type NormalizedUser struct {
	Username     string
	AgentVersion string
	Sessions     []DatedSession
	Issues       []Issue
}

// Diagnostics summarizes a normalization batch. Skipped counts
// sessions dropped by fatal issues; no record is ever silently
// discarded.
type Diagnostics struct {
	SessionsSeen    int               `json:"sessions_seen"`
	SessionsKept    int               `json:"sessions_kept"`
	SessionsSkipped int               `json:"sessions_skipped"`
	IssuesByKind    map[IssueKind]int `json:"issues_by_kind"`
}

// NormalizeDocuments normalizes every session in the given
// documents under the partial-success model: a bad session
// never discards its user or the batch.
func NormalizeDocuments(
	docs []RawUserDocument, opts Options,
) ([]NormalizedUser, Diagnostics) {
	diag := Diagnostics{
		IssuesByKind: make(map[IssueKind]int),
	}
	users := make([]NormalizedUser, 0, len(docs))
	for _, doc := range docs {
		nu := NormalizedUser{
			Username:     doc.Username,
			AgentVersion: doc.AgentVersion,
		}
		for _, de := range doc.Dates {
			for _, raw := range de.Sessions {
				diag.SessionsSeen++
				sess, issues, ok := Normalize(raw, opts)
				nu.Issues = append(nu.Issues, issues...)
				for _, is := range issues {
					diag.IssuesByKind[is.Kind]++
				}
				if !ok {
					diag.SessionsSkipped++
					continue
				}
				diag.SessionsKept++
				nu.Sessions = append(nu.Sessions, DatedSession{
					Date:    de.Date,
					Session: sess,
				})
			}
		}
		users = append(users, nu)
	}
	return users, diag
}
