package activity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceDoc = `{
	"username": "alice",
	"agent_version": "1.4.2",
	"dates": [{
		"date": "2025-06-01",
		"sessions": [{
			"session_id": "s1",
			"start_time": "09:00:00",
			"end_time": "09:30:00",
			"productive_time": 1500,
			"neutral_time": 0,
			"wasted_time": 200,
			"idle_time": 100,
			"total_time": 1800,
			"session_shift": "onshift",
			"usage_breakdown": {
				"productive": {
					"editor": {"total_time": 1500}
				}
			}
		}]
	}]
}`

func writeExport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseUserDocument(t *testing.T) {
	doc, ok := ParseUserDocument(aliceDoc)
	require.True(t, ok)

	assert.Equal(t, "alice", doc.Username)
	assert.Equal(t, "1.4.2", doc.AgentVersion)
	require.Len(t, doc.Dates, 1)
	assert.Equal(t, "2025-06-01", doc.Dates[0].Date)
	require.Len(t, doc.Dates[0].Sessions, 1)

	s := doc.Dates[0].Sessions[0]
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, "09:00:00", s.StartTime)
	assert.Equal(t, 1500, s.ProductiveTime)
	assert.Equal(t, 0, s.NeutralTime)
	assert.True(t, s.HasTotalTime)
	assert.Equal(t, 1800, s.TotalTime)
	assert.Equal(t, "onshift", s.SessionShift)
	assert.Equal(t, 1500,
		s.UsageBreakdown["productive"]["editor"].TotalTime)
}

func TestParseUserDocumentRequiresUsername(t *testing.T) {
	_, ok := ParseUserDocument(`{"dates": []}`)
	assert.False(t, ok)

	_, ok = ParseUserDocument(`{"username": ""}`)
	assert.False(t, ok)
}

func TestParseUserDocumentAbsentCounters(t *testing.T) {
	doc, ok := ParseUserDocument(`{
		"username": "bob",
		"dates": [{
			"date": "2025-06-02",
			"sessions": [{
				"session_id": "s2",
				"productive_time": 300
			}]
		}]
	}`)
	require.True(t, ok)

	s := doc.Dates[0].Sessions[0]
	assert.Equal(t, 300, s.ProductiveTime)
	// Missing counters must stay distinguishable from an
	// explicit zero.
	assert.Equal(t, AbsentCounter, s.NeutralTime)
	assert.Equal(t, AbsentCounter, s.WastedTime)
	assert.Equal(t, AbsentCounter, s.IdleTime)
	assert.False(t, s.HasTotalTime)
}

func TestParseUserDocumentMalformedUsageCategory(t *testing.T) {
	doc, ok := ParseUserDocument(`{
		"username": "bob",
		"dates": [{
			"date": "2025-06-02",
			"sessions": [{
				"session_id": "s2",
				"usage_breakdown": {"wasted": "oops"}
			}]
		}]
	}`)
	require.True(t, ok)

	ub := doc.Dates[0].Sessions[0].UsageBreakdown
	require.Contains(t, ub, "wasted")
	assert.Nil(t, ub["wasted"])
}

func TestParseUserDocumentSkipsDatelessEntries(t *testing.T) {
	doc, ok := ParseUserDocument(`{
		"username": "bob",
		"dates": [
			{"sessions": [{"session_id": "s1"}]},
			{"date": "2025-06-03", "sessions": []}
		]
	}`)
	require.True(t, ok)
	require.Len(t, doc.Dates, 1)
	assert.Equal(t, "2025-06-03", doc.Dates[0].Date)
}

func TestParseDocumentFileJSONL(t *testing.T) {
	path := writeExport(t, "export.jsonl",
		`{"username": "alice", "dates": []}`+"\n"+
			"\n"+
			`{"username": "bob", "dates": []}`+"\n")

	docs, skipped, err := ParseDocumentFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, docs, 2)
	assert.Equal(t, "alice", docs[0].Username)
	assert.Equal(t, "bob", docs[1].Username)
}

func TestParseDocumentFileCountsBadLines(t *testing.T) {
	path := writeExport(t, "export.jsonl",
		`{"username": "alice", "dates": []}`+"\n"+
			"{not json at all\n"+
			`{"dates": []}`+"\n")

	docs, skipped, err := ParseDocumentFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, docs, 1)
	assert.Equal(t, "alice", docs[0].Username)
}

func TestParseDocumentFileArrayForm(t *testing.T) {
	path := writeExport(t, "export.json", `[
		{"username": "alice", "dates": []},
		{"nousername": true},
		{"username": "bob", "dates": []}
	]`)

	docs, skipped, err := ParseDocumentFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, docs, 2)
	assert.Equal(t, "alice", docs[0].Username)
	assert.Equal(t, "bob", docs[1].Username)
}

func TestParseDocumentFileMissing(t *testing.T) {
	_, _, err := ParseDocumentFile(
		filepath.Join(t.TempDir(), "nope.jsonl"),
	)
	assert.Error(t, err)
}
