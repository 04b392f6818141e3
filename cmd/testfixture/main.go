// Command testfixture writes synthetic collector export files
// into a spool directory, one JSONL file per user, for manual
// dashboard testing and demos.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

type wireSession struct {
	SessionID      string               `json:"session_id"`
	StartTime      string               `json:"start_time"`
	EndTime        string               `json:"end_time"`
	ProductiveTime int                  `json:"productive_time"`
	NeutralTime    int                  `json:"neutral_time"`
	WastedTime     int                  `json:"wasted_time"`
	IdleTime       int                  `json:"idle_time"`
	TotalTime      int                  `json:"total_time"`
	SessionShift   string               `json:"session_shift"`
	UsageBreakdown map[string]wireUsage `json:"usage_breakdown,omitempty"`
}

type wireUsage map[string]wireEntry

type wireEntry struct {
	TotalTime int      `json:"total_time"`
	Visits    []string `json:"visits,omitempty"`
}

type wireDate struct {
	Date     string        `json:"date"`
	Sessions []wireSession `json:"sessions"`
}

type wireDocument struct {
	Username     string     `json:"username"`
	AgentVersion string     `json:"agent_version"`
	Dates        []wireDate `json:"dates"`
}

var usernames = []string{
	"avila", "benson", "castro", "dixon", "emerson",
	"fowler", "grant", "hobbs", "ingram", "jarvis",
}

var productiveApps = []string{
	"code-editor", "terminal", "docs.internal", "jira",
}
var neutralApps = []string{
	"mail", "calendar", "slack",
}
var wastedApps = []string{
	"youtube.com", "news.site", "social.app",
}

func main() {
	out := flag.String("out", "", "spool directory to write into")
	users := flag.Int("users", 5, "number of users to generate")
	days := flag.Int("days", 30, "number of days ending today")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" {
		fmt.Fprintln(os.Stderr,
			"usage: testfixture -out <spool-dir> [-users N] [-days N]")
		os.Exit(1)
	}
	if *users > len(usernames) {
		log.Fatalf("at most %d users supported", len(usernames))
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("creating spool dir: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)

	for i := range *users {
		doc := generateDocument(rng, usernames[i], end, *days)
		path := filepath.Join(
			*out, fmt.Sprintf("export_%s.jsonl", doc.Username),
		)
		if err := writeDocument(path, doc); err != nil {
			log.Fatalf("writing %s: %v", path, err)
		}
		fmt.Printf("  %s: %d days\n", doc.Username, len(doc.Dates))
	}
	fmt.Printf("Fixture exports written to %s\n", *out)
}

func generateDocument(
	rng *rand.Rand, username string, end time.Time, days int,
) wireDocument {
	doc := wireDocument{
		Username:     username,
		AgentVersion: "1.4.2",
	}
	for d := days - 1; d >= 0; d-- {
		date := end.AddDate(0, 0, -d)
		// Weekends are mostly quiet.
		wd := date.Weekday()
		if (wd == time.Saturday || wd == time.Sunday) &&
			rng.Intn(4) != 0 {
			continue
		}
		entry := wireDate{Date: date.Format("2006-01-02")}
		for s := range 1 + rng.Intn(3) {
			entry.Sessions = append(entry.Sessions,
				generateSession(rng, entry.Date, s))
		}
		doc.Dates = append(doc.Dates, entry)
	}
	return doc
}

func generateSession(
	rng *rand.Rand, date string, ordinal int,
) wireSession {
	startHour := 8 + ordinal*3 + rng.Intn(2)
	productive := 600 + rng.Intn(5400)
	neutral := rng.Intn(1800)
	wasted := rng.Intn(1200)
	idle := rng.Intn(900)

	shift := "onshift"
	if startHour >= 18 {
		shift = "offshift"
	}

	total := productive + neutral + wasted + idle
	return wireSession{
		SessionID: fmt.Sprintf("%s-%d", date, ordinal),
		StartTime: fmt.Sprintf(
			"%02d:%02d:00", startHour, rng.Intn(60),
		),
		EndTime: fmt.Sprintf(
			"%02d:%02d:00", startHour+2, rng.Intn(60),
		),
		ProductiveTime: productive,
		NeutralTime:    neutral,
		WastedTime:     wasted,
		IdleTime:       idle,
		TotalTime:      total,
		SessionShift:   shift,
		UsageBreakdown: map[string]wireUsage{
			"productive": generateUsage(
				rng, productiveApps, productive,
			),
			"neutral": generateUsage(rng, neutralApps, neutral),
			"wasted":  generateUsage(rng, wastedApps, wasted),
		},
	}
}

// generateUsage splits budget seconds across a random subset
// of apps, with visit timestamps roughly one per ten minutes.
func generateUsage(
	rng *rand.Rand, apps []string, budget int,
) wireUsage {
	usage := make(wireUsage)
	remaining := budget
	for _, app := range apps {
		if remaining <= 0 || rng.Intn(3) == 0 {
			continue
		}
		spent := rng.Intn(remaining + 1)
		remaining -= spent

		visits := make([]string, 0, spent/600)
		for v := 0; v < spent/600; v++ {
			visits = append(visits, fmt.Sprintf(
				"%02d:%02d:00", 9+rng.Intn(9), rng.Intn(60),
			))
		}
		usage[app] = wireEntry{TotalTime: spent, Visits: visits}
	}
	return usage
}

func writeDocument(path string, doc wireDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return f.Close()
}
