package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trackview/trackview/internal/activity"
)

// UserFilter restricts FetchUsers. Zero value means all users,
// all dates.
type UserFilter struct {
	Username string // exact match, "" = all
	From     string // YYYY-MM-DD inclusive, "" = open
	To       string // YYYY-MM-DD inclusive, "" = open
}

// nullableCounter converts a raw counter to its SQL form:
// NULL when the collector omitted the field.
func nullableCounter(v int) any {
	if v == activity.AbsentCounter {
		return nil
	}
	return v
}

// counterValue converts a scanned nullable column back to the
// raw counter representation.
func counterValue(v *int64) int {
	if v == nil {
		return activity.AbsentCounter
	}
	return int(*v)
}

// UpsertDocument writes one raw user document into the store,
// replacing any prior rows for the same (username, session_id)
// pairs. The nested wire shape is preserved exactly: absent
// counters stay absent and usage maps round-trip through JSON.
func (db *DB) UpsertDocument(
	doc activity.RawUserDocument, sourcePath string,
) error {
	return db.Update(func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.Exec(
			`INSERT INTO users (username, agent_version, updated_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT(username) DO UPDATE SET
			     agent_version = excluded.agent_version,
			     updated_at = excluded.updated_at`,
			doc.Username, doc.AgentVersion, now,
		); err != nil {
			return fmt.Errorf(
				"upserting user %s: %w", doc.Username, err,
			)
		}

		stmt, err := tx.Prepare(
			`INSERT INTO sessions (
			     username, date, session_id, start_time,
			     end_time, productive_time, neutral_time,
			     wasted_time, idle_time, total_time,
			     session_shift, usage_json, source_path
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(username, session_id) DO UPDATE SET
			     date = excluded.date,
			     start_time = excluded.start_time,
			     end_time = excluded.end_time,
			     productive_time = excluded.productive_time,
			     neutral_time = excluded.neutral_time,
			     wasted_time = excluded.wasted_time,
			     idle_time = excluded.idle_time,
			     total_time = excluded.total_time,
			     session_shift = excluded.session_shift,
			     usage_json = excluded.usage_json,
			     source_path = excluded.source_path`,
		)
		if err != nil {
			return fmt.Errorf("preparing session insert: %w", err)
		}
		defer stmt.Close()

		for _, de := range doc.Dates {
			for _, s := range de.Sessions {
				usageJSON := "{}"
				if s.UsageBreakdown != nil {
					b, err := json.Marshal(s.UsageBreakdown)
					if err != nil {
						return fmt.Errorf(
							"marshaling usage for %s: %w",
							s.SessionID, err,
						)
					}
					usageJSON = string(b)
				}

				var total any
				if s.HasTotalTime {
					total = s.TotalTime
				}

				if _, err := stmt.Exec(
					doc.Username, de.Date, s.SessionID,
					s.StartTime, s.EndTime,
					nullableCounter(s.ProductiveTime),
					nullableCounter(s.NeutralTime),
					nullableCounter(s.WastedTime),
					nullableCounter(s.IdleTime),
					total, s.SessionShift,
					usageJSON, sourcePath,
				); err != nil {
					return fmt.Errorf(
						"inserting session %s: %w",
						s.SessionID, err,
					)
				}
			}
		}
		return nil
	})
}

// ListUsernames returns all known usernames in ascending order.
func (db *DB) ListUsernames(
	ctx context.Context,
) ([]string, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT username FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning username: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usernames: %w", err)
	}
	return names, nil
}

// FetchUsers reconstructs raw user documents matching the
// filter. This is the engine's sole ingestion boundary: the
// analytics layer never queries storage directly.
func (db *DB) FetchUsers(
	ctx context.Context, f UserFilter,
) ([]activity.RawUserDocument, error) {
	where := "1=1"
	var args []any
	if f.Username != "" {
		where += " AND s.username = ?"
		args = append(args, f.Username)
	}
	if f.From != "" {
		where += " AND s.date >= ?"
		args = append(args, f.From)
	}
	if f.To != "" {
		where += " AND s.date <= ?"
		args = append(args, f.To)
	}

	query := `SELECT s.username, u.agent_version, s.date,
	       s.session_id, s.start_time, s.end_time,
	       s.productive_time, s.neutral_time, s.wasted_time,
	       s.idle_time, s.total_time, s.session_shift,
	       s.usage_json
	  FROM sessions s
	  JOIN users u ON u.username = s.username
	 WHERE ` + where + `
	 ORDER BY s.username, s.date, s.session_id`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var (
		docs []activity.RawUserDocument
		cur  *activity.RawUserDocument
	)
	for rows.Next() {
		var (
			username, agentVersion, date  string
			sessionID, startTime, endTime string
			productive, neutral           *int64
			wasted, idle, total           *int64
			shift, usageJSON              string
		)
		if err := rows.Scan(
			&username, &agentVersion, &date,
			&sessionID, &startTime, &endTime,
			&productive, &neutral, &wasted, &idle,
			&total, &shift, &usageJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		if cur == nil || cur.Username != username {
			docs = append(docs, activity.RawUserDocument{
				Username:     username,
				AgentVersion: agentVersion,
			})
			cur = &docs[len(docs)-1]
		}

		raw := activity.RawSession{
			SessionID:      sessionID,
			StartTime:      startTime,
			EndTime:        endTime,
			ProductiveTime: counterValue(productive),
			NeutralTime:    counterValue(neutral),
			WastedTime:     counterValue(wasted),
			IdleTime:       counterValue(idle),
			SessionShift:   shift,
		}
		if total != nil {
			raw.TotalTime = int(*total)
			raw.HasTotalTime = true
		}
		if usageJSON != "" && usageJSON != "{}" {
			var usage map[string]map[string]activity.UsageEntry
			if err := json.Unmarshal(
				[]byte(usageJSON), &usage,
			); err != nil {
				return nil, fmt.Errorf(
					"decoding usage for %s: %w", sessionID, err,
				)
			}
			raw.UsageBreakdown = usage
		}

		n := len(cur.Dates)
		if n == 0 || cur.Dates[n-1].Date != date {
			cur.Dates = append(cur.Dates, activity.RawDateEntry{
				Date: date,
			})
			n++
		}
		cur.Dates[n-1].Sessions = append(
			cur.Dates[n-1].Sessions, raw,
		)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}
