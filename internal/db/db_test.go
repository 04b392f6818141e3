package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/trackview/trackview/internal/activity"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// sampleDoc builds a document with two dates and three sessions
// for alice. One counter is left absent to exercise NULL
// round-tripping.
func sampleDoc() activity.RawUserDocument {
	return activity.RawUserDocument{
		Username:     "alice",
		AgentVersion: "v1.4.0",
		Dates: []activity.RawDateEntry{
			{
				Date: "2025-06-01",
				Sessions: []activity.RawSession{
					{
						SessionID:      "s1",
						StartTime:      "09:00:00",
						EndTime:        "10:00:00",
						ProductiveTime: 3000,
						NeutralTime:    300,
						WastedTime:     200,
						IdleTime:       100,
						TotalTime:      3600,
						HasTotalTime:   true,
						SessionShift:   "onshift",
						UsageBreakdown: map[string]map[string]activity.UsageEntry{
							"productive": {
								"editor": {
									TotalTime: 3000,
									Visits: []string{
										"main.go", "db.go",
									},
								},
							},
						},
					},
					{
						SessionID:      "s2",
						StartTime:      "13:00:00",
						EndTime:        "13:30:00",
						ProductiveTime: 1800,
						NeutralTime:    activity.AbsentCounter,
						WastedTime:     0,
						IdleTime:       0,
						SessionShift:   "onshift",
					},
				},
			},
			{
				Date: "2025-06-02",
				Sessions: []activity.RawSession{
					{
						SessionID:      "s3",
						StartTime:      "09:00:00",
						EndTime:        "09:30:00",
						ProductiveTime: 900,
						NeutralTime:    600,
						WastedTime:     300,
						IdleTime:       0,
						TotalTime:      1800,
						HasTotalTime:   true,
						SessionShift:   "offshift",
					},
				},
			},
		},
	}
}

func TestOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
}

func TestUpsertAndFetchRoundTrip(t *testing.T) {
	d := openTest(t)
	if err := d.UpsertDocument(sampleDoc(), "spool/a.jsonl"); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	docs, err := d.FetchUsers(context.Background(), UserFilter{})
	if err != nil {
		t.Fatalf("FetchUsers: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	doc := docs[0]
	if doc.Username != "alice" || doc.AgentVersion != "v1.4.0" {
		t.Errorf("unexpected header: %q %q",
			doc.Username, doc.AgentVersion)
	}
	if len(doc.Dates) != 2 {
		t.Fatalf("got %d dates, want 2", len(doc.Dates))
	}
	if doc.Dates[0].Date != "2025-06-01" ||
		doc.Dates[1].Date != "2025-06-02" {
		t.Errorf("dates out of order: %q %q",
			doc.Dates[0].Date, doc.Dates[1].Date)
	}

	s1 := doc.Dates[0].Sessions[0]
	if s1.ProductiveTime != 3000 || !s1.HasTotalTime ||
		s1.TotalTime != 3600 {
		t.Errorf("s1 counters wrong: %+v", s1)
	}
	usage := s1.UsageBreakdown["productive"]["editor"]
	if usage.TotalTime != 3000 || len(usage.Visits) != 2 {
		t.Errorf("usage not preserved: %+v", usage)
	}

	s2 := doc.Dates[0].Sessions[1]
	if s2.NeutralTime != activity.AbsentCounter {
		t.Errorf("absent counter came back as %d",
			s2.NeutralTime)
	}
	if s2.HasTotalTime {
		t.Error("s2 should have no total_time")
	}
	if s2.UsageBreakdown != nil {
		t.Errorf("s2 usage should be nil, got %+v",
			s2.UsageBreakdown)
	}
}

func TestUpsertReplacesSession(t *testing.T) {
	d := openTest(t)
	doc := sampleDoc()
	if err := d.UpsertDocument(doc, "spool/a.jsonl"); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	// Re-export with a corrected counter for s1.
	doc.Dates[0].Sessions[0].ProductiveTime = 3100
	doc.Dates[0].Sessions[0].TotalTime = 3700
	if err := d.UpsertDocument(doc, "spool/b.jsonl"); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	docs, err := d.FetchUsers(context.Background(), UserFilter{})
	if err != nil {
		t.Fatalf("FetchUsers: %v", err)
	}
	s1 := docs[0].Dates[0].Sessions[0]
	if s1.ProductiveTime != 3100 || s1.TotalTime != 3700 {
		t.Errorf("upsert did not replace: %+v", s1)
	}

	st, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.SessionCount != 3 {
		t.Errorf("got %d sessions after re-upsert, want 3",
			st.SessionCount)
	}
}

func TestFetchUsersFilter(t *testing.T) {
	d := openTest(t)
	if err := d.UpsertDocument(sampleDoc(), ""); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	bob := activity.RawUserDocument{
		Username: "bob",
		Dates: []activity.RawDateEntry{{
			Date: "2025-06-03",
			Sessions: []activity.RawSession{{
				SessionID:      "b1",
				ProductiveTime: 100,
				NeutralTime:    0,
				WastedTime:     0,
				IdleTime:       0,
				SessionShift:   "onshift",
			}},
		}},
	}
	if err := d.UpsertDocument(bob, ""); err != nil {
		t.Fatalf("UpsertDocument bob: %v", err)
	}

	t.Run("ByUsername", func(t *testing.T) {
		docs, err := d.FetchUsers(context.Background(),
			UserFilter{Username: "bob"})
		if err != nil {
			t.Fatalf("FetchUsers: %v", err)
		}
		if len(docs) != 1 || docs[0].Username != "bob" {
			t.Errorf("got %+v, want just bob", docs)
		}
	})

	t.Run("ByDateRange", func(t *testing.T) {
		docs, err := d.FetchUsers(context.Background(),
			UserFilter{From: "2025-06-02", To: "2025-06-02"})
		if err != nil {
			t.Fatalf("FetchUsers: %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("got %d documents, want 1", len(docs))
		}
		if len(docs[0].Dates) != 1 ||
			docs[0].Dates[0].Date != "2025-06-02" {
			t.Errorf("range filter leaked dates: %+v",
				docs[0].Dates)
		}
	})

	t.Run("NoMatch", func(t *testing.T) {
		docs, err := d.FetchUsers(context.Background(),
			UserFilter{From: "2030-01-01"})
		if err != nil {
			t.Fatalf("FetchUsers: %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("got %d documents, want 0", len(docs))
		}
	})
}

func TestListUsernames(t *testing.T) {
	d := openTest(t)
	for _, name := range []string{"carol", "alice", "bob"} {
		doc := activity.RawUserDocument{Username: name}
		if err := d.UpsertDocument(doc, ""); err != nil {
			t.Fatalf("UpsertDocument %s: %v", name, err)
		}
	}
	names, err := d.ListUsernames(context.Background())
	if err != nil {
		t.Fatalf("ListUsernames: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q",
				i, names[i], want[i])
		}
	}
}

func TestStats(t *testing.T) {
	d := openTest(t)

	st, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats on empty store: %v", err)
	}
	if st.UserCount != 0 || st.SessionCount != 0 {
		t.Errorf("empty store stats: %+v", st)
	}

	if err := d.UpsertDocument(sampleDoc(), ""); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	st, err = d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.UserCount != 1 || st.SessionCount != 3 ||
		st.DayCount != 2 {
		t.Errorf("stats = %+v", st)
	}
	if st.EarliestDate != "2025-06-01" ||
		st.LatestDate != "2025-06-02" {
		t.Errorf("date bounds = %q..%q",
			st.EarliestDate, st.LatestDate)
	}
	if st.AgentVersions["v1.4.0"] != 1 {
		t.Errorf("agent versions = %+v", st.AgentVersions)
	}
}
