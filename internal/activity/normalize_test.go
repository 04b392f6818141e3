package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	raw := RawSession{
		SessionID:      "s1",
		ProductiveTime: 600,
		NeutralTime:    AbsentCounter,
		WastedTime:     AbsentCounter,
		IdleTime:       AbsentCounter,
	}
	sess, issues, ok := Normalize(raw, Options{})
	require.True(t, ok)
	assert.Empty(t, issues)
	assert.Equal(t, ShiftOn, sess.Shift)
	assert.Equal(t, 600, sess.ProductiveTime)
	assert.Equal(t, 0, sess.NeutralTime)
	assert.Equal(t, 600, sess.TotalTime)

	// Known categories always have a map, even with no
	// usage data at all.
	for _, cat := range KnownCategories {
		require.NotNil(t, sess.Usage[cat])
	}
}

func TestNormalizeShift(t *testing.T) {
	for _, tt := range []struct {
		in     string
		want   Shift
		wantOK bool
	}{
		{"", ShiftOn, true},
		{"onshift", ShiftOn, true},
		{"offshift", ShiftOff, true},
		{"graveyard", "", false},
	} {
		raw := RawSession{
			SessionID:      "s1",
			SessionShift:   tt.in,
			ProductiveTime: AbsentCounter,
			NeutralTime:    AbsentCounter,
			WastedTime:     AbsentCounter,
			IdleTime:       AbsentCounter,
		}
		sess, issues, ok := Normalize(raw, Options{})
		if !tt.wantOK {
			assert.False(t, ok, "shift %q", tt.in)
			require.Len(t, issues, 1)
			assert.Equal(t, IssueInvalidShift, issues[0].Kind)
			assert.True(t, issues[0].Fatal)
			continue
		}
		require.True(t, ok, "shift %q", tt.in)
		assert.Equal(t, tt.want, sess.Shift)
	}
}

func TestNormalizeNegativeCounterIsFatal(t *testing.T) {
	raw := RawSession{
		SessionID:      "s1",
		ProductiveTime: 100,
		NeutralTime:    -1,
		WastedTime:     AbsentCounter,
		IdleTime:       AbsentCounter,
	}
	_, issues, ok := Normalize(raw, Options{})
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueNegativeDuration, issues[0].Kind)
	assert.Contains(t, issues[0].Detail, "neutral_time")
}

func TestNormalizeTotalMismatch(t *testing.T) {
	mismatched := RawSession{
		SessionID:      "s1",
		ProductiveTime: 300,
		NeutralTime:    100,
		WastedTime:     50,
		IdleTime:       50,
		TotalTime:      600,
		HasTotalTime:   true,
	}

	t.Run("RecomputeKeepsSession", func(t *testing.T) {
		sess, issues, ok := Normalize(mismatched, Options{})
		require.True(t, ok)
		require.Len(t, issues, 1)
		assert.Equal(t, IssueTotalMismatch, issues[0].Kind)
		assert.False(t, issues[0].Fatal)
		// The counter sum wins over the reported total.
		assert.Equal(t, 500, sess.TotalTime)
	})

	t.Run("RejectDropsSession", func(t *testing.T) {
		_, issues, ok := Normalize(mismatched, Options{
			TotalPolicy: TotalPolicyReject,
		})
		assert.False(t, ok)
		require.Len(t, issues, 1)
		assert.True(t, issues[0].Fatal)
	})

	t.Run("WithinToleranceKeepsReportedTotal", func(t *testing.T) {
		sess, issues, ok := Normalize(mismatched, Options{
			Tolerance: 100,
		})
		require.True(t, ok)
		assert.Empty(t, issues)
		assert.Equal(t, 600, sess.TotalTime)
	})

	t.Run("ExactMatchNoIssue", func(t *testing.T) {
		exact := mismatched
		exact.TotalTime = 500
		sess, issues, ok := Normalize(exact, Options{})
		require.True(t, ok)
		assert.Empty(t, issues)
		assert.Equal(t, 500, sess.TotalTime)
	})
}

func TestNormalizeUsageCategories(t *testing.T) {
	raw := RawSession{
		SessionID:      "s1",
		ProductiveTime: 100,
		NeutralTime:    AbsentCounter,
		WastedTime:     AbsentCounter,
		IdleTime:       AbsentCounter,
		UsageBreakdown: map[string]map[string]UsageEntry{
			"productive": {
				"editor": {
					TotalTime: 100,
					Visits:    []string{"a", "b"},
				},
			},
			"gaming": {
				"solitaire": {TotalTime: 50},
			},
			"broken": nil,
		},
	}
	sess, issues, ok := Normalize(raw, Options{})
	require.True(t, ok)

	kinds := make(map[IssueKind]int)
	for _, is := range issues {
		kinds[is.Kind]++
		assert.False(t, is.Fatal)
	}
	assert.Equal(t, 1, kinds[IssueUnknownCategory])
	assert.Equal(t, 1, kinds[IssueMalformedUsage])

	assert.Equal(t, 100,
		sess.Usage[CategoryProductive]["editor"].TotalTime)
	assert.Len(t,
		sess.Usage[CategoryProductive]["editor"].Visits, 2)

	// Unknown categories are carried, not dropped.
	assert.Equal(t, 50,
		sess.Usage[CategoryUnknown]["solitaire"].TotalTime)
	// The malformed category contributes nothing.
	assert.Empty(t, sess.Usage[CategoryWasted])
}

func TestNormalizeDocumentsPartialSuccess(t *testing.T) {
	docs := []RawUserDocument{
		{
			Username: "alice",
			Dates: []RawDateEntry{{
				Date: "2025-06-01",
				Sessions: []RawSession{
					{
						SessionID:      "good",
						ProductiveTime: 100,
						NeutralTime:    AbsentCounter,
						WastedTime:     AbsentCounter,
						IdleTime:       AbsentCounter,
					},
					{
						SessionID:      "bad",
						ProductiveTime: -5,
						NeutralTime:    AbsentCounter,
						WastedTime:     AbsentCounter,
						IdleTime:       AbsentCounter,
					},
				},
			}},
		},
		{Username: "bob"},
	}

	users, diag := NormalizeDocuments(docs, Options{})
	require.Len(t, users, 2)

	assert.Equal(t, 2, diag.SessionsSeen)
	assert.Equal(t, 1, diag.SessionsKept)
	assert.Equal(t, 1, diag.SessionsSkipped)
	assert.Equal(t, 1,
		diag.IssuesByKind[IssueNegativeDuration])

	// The bad session never takes its user down with it.
	require.Len(t, users[0].Sessions, 1)
	assert.Equal(t, "good",
		users[0].Sessions[0].Session.SessionID)
	assert.Equal(t, "2025-06-01", users[0].Sessions[0].Date)

	// A user with no sessions still appears.
	assert.Equal(t, "bob", users[1].Username)
	assert.Empty(t, users[1].Sessions)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	raw := RawSession{
		SessionID:      "s1",
		ProductiveTime: 300,
		NeutralTime:    100,
		WastedTime:     50,
		IdleTime:       50,
		TotalTime:      600,
		HasTotalTime:   true,
		UsageBreakdown: map[string]map[string]UsageEntry{
			"productive": {"editor": {TotalTime: 300}},
		},
	}
	_, _, ok := Normalize(raw, Options{})
	require.True(t, ok)

	assert.Equal(t, 600, raw.TotalTime)
	assert.Equal(t, 300,
		raw.UsageBreakdown["productive"]["editor"].TotalTime)
}
