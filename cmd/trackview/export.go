package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/trackview/trackview/internal/activity"
	"github.com/trackview/trackview/internal/analytics"
	"github.com/trackview/trackview/internal/config"
	"github.com/trackview/trackview/internal/db"
	"github.com/trackview/trackview/internal/server"
)

type exportFlags struct {
	kind     string
	from     string
	to       string
	category string
	username string
	out      string
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var ef exportFlags
	fs.StringVar(&ef.kind, "kind", "users",
		"What to export: users or usage")
	fs.StringVar(&ef.from, "from", "",
		"Range start (YYYY-MM-DD, default 7 days ago)")
	fs.StringVar(&ef.to, "to", "",
		"Range end (YYYY-MM-DD, default today)")
	fs.StringVar(&ef.category, "category", "productive",
		"Usage category for -kind usage")
	fs.StringVar(&ef.username, "username", "",
		"Restrict to one user")
	fs.StringVar(&ef.out, "out", "",
		"Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if err := export(cfg, ef); err != nil {
		log.Fatalf("export: %v", err)
	}
}

func export(cfg config.Config, ef exportFlags) error {
	now := time.Now().UTC()
	if ef.to == "" {
		ef.to = now.Format("2006-01-02")
	}
	if ef.from == "" {
		ef.from = now.AddDate(0, 0, -6).Format("2006-01-02")
	}
	rng := analytics.DateRange{From: ef.from, To: ef.to}
	if err := rng.Validate(); err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	ctx := context.Background()
	docs, err := database.FetchUsers(ctx, db.UserFilter{
		Username: ef.username,
		From:     rng.From,
		To:       rng.To,
	})
	if err != nil {
		return err
	}

	opts := activity.Options{Tolerance: cfg.Tolerance}
	if cfg.TotalPolicy == "reject" {
		opts.TotalPolicy = activity.TotalPolicyReject
	}
	users, diag := activity.NormalizeDocuments(docs, opts)
	if diag.SessionsSkipped > 0 {
		log.Printf("export: %d session(s) skipped as invalid",
			diag.SessionsSkipped)
	}

	var out io.Writer = os.Stdout
	if ef.out != "" {
		f, err := os.Create(ef.out)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}
	cw := csv.NewWriter(out)

	switch ef.kind {
	case "users":
		usernames := []string{ef.username}
		if ef.username == "" {
			usernames, err = database.ListUsernames(ctx)
			if err != nil {
				return err
			}
		}
		rollup, err := analytics.RollupUsers(
			activity.Flatten(users), usernames, rng,
		)
		if err != nil {
			return err
		}
		if err := server.WriteUserRollupCSV(
			cw, analytics.RankUsers(rollup),
		); err != nil {
			return err
		}

	case "usage":
		cat, ok := activity.ParseCategory(ef.category)
		if !ok {
			return fmt.Errorf(
				"unknown category %q", ef.category,
			)
		}
		var sessions []activity.Session
		for _, u := range users {
			for _, ds := range u.Sessions {
				sessions = append(sessions, ds.Session)
			}
		}
		ranking := analytics.AggregateUsage(sessions, cat)
		if err := server.WriteUsageCSV(
			cw, cat, ranking.Entries,
		); err != nil {
			return err
		}

	default:
		return fmt.Errorf(
			"unknown export kind %q (want users or usage)",
			ef.kind,
		)
	}

	if ef.out != "" {
		if err := runPostExport(cfg, ef.out); err != nil {
			return err
		}
	}
	return nil
}

// runPostExport runs the configured post-export command with
// the output path appended, so exports can be shipped or
// compressed automatically.
func runPostExport(cfg config.Config, outPath string) error {
	args, err := cfg.ExportCommandArgs()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd := exec.Command(args[0], append(args[1:], outPath)...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("post-export command: %w", err)
	}
	return nil
}
