package db

import (
	"context"
	"fmt"
)

// Stats summarizes what the snapshot store currently holds.
type Stats struct {
	UserCount     int            `json:"user_count"`
	SessionCount  int            `json:"session_count"`
	DayCount      int            `json:"day_count"`
	EarliestDate  string         `json:"earliest_date,omitempty"`
	LatestDate    string         `json:"latest_date,omitempty"`
	AgentVersions map[string]int `json:"agent_versions"`
}

// Stats computes aggregate counts over the store.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var earliest, latest *string
	err := db.reader.QueryRowContext(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM users),
		     COUNT(*),
		     COUNT(DISTINCT date),
		     MIN(date), MAX(date)
		   FROM sessions`,
	).Scan(
		&s.UserCount, &s.SessionCount, &s.DayCount,
		&earliest, &latest,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	if earliest != nil {
		s.EarliestDate = *earliest
	}
	if latest != nil {
		s.LatestDate = *latest
	}

	s.AgentVersions = make(map[string]int)
	rows, err := db.reader.QueryContext(ctx,
		`SELECT agent_version, COUNT(*) FROM users
		  WHERE agent_version != ''
		  GROUP BY agent_version`,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("querying agent versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return Stats{}, fmt.Errorf(
				"scanning agent version: %w", err,
			)
		}
		s.AgentVersions[v] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf(
			"iterating agent versions: %w", err,
		)
	}
	return s, nil
}
