package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/trackview/trackview/internal/activity"
	"github.com/trackview/trackview/internal/analytics"
)

// csvHeader sets the download headers for a CSV response.
func csvHeader(w http.ResponseWriter, name, from, to string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(
		`attachment; filename="%s_%s_%s.csv"`, name, from, to,
	))
}

// WriteUserRollupCSV writes ranked user summaries as CSV. The
// CLI export subcommand shares this with the HTTP handler.
func WriteUserRollupCSV(
	w *csv.Writer, users []analytics.UserSummary,
) error {
	if err := w.Write([]string{
		"username", "sessions", "productive", "neutral",
		"wasted", "idle", "total", "productivity_ratio",
	}); err != nil {
		return err
	}
	for _, u := range users {
		if err := w.Write([]string{
			u.Username,
			strconv.Itoa(u.Sessions),
			strconv.Itoa(u.Productive),
			strconv.Itoa(u.Neutral),
			strconv.Itoa(u.Wasted),
			strconv.Itoa(u.Idle),
			strconv.Itoa(u.Total),
			strconv.FormatFloat(
				u.ProductivityRatio, 'f', 4, 64,
			),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteUsageCSV writes a usage ranking as CSV.
func WriteUsageCSV(
	w *csv.Writer, cat activity.Category, stats []analytics.UsageStat,
) error {
	if err := w.Write([]string{
		"category", "key", "total_time", "visits",
	}); err != nil {
		return err
	}
	for _, u := range stats {
		if err := w.Write([]string{
			string(cat),
			u.Key,
			strconv.Itoa(u.TotalTime),
			strconv.Itoa(u.Visits),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Server) handleExportUsers(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultSummaryDays)
	if !ok {
		return
	}
	users, _, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	summaries, err := s.rollup(r.Context(), f, users)
	if err != nil {
		s.serveError(w, err)
		return
	}

	csvHeader(w, "users", f.Range.From, f.Range.To)
	cw := csv.NewWriter(w)
	if err := WriteUserRollupCSV(
		cw, analytics.RankUsers(summaries),
	); err != nil {
		// Headers already sent; nothing sane left to do.
		return
	}
}

func (s *Server) handleExportUsage(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultSummaryDays)
	if !ok {
		return
	}
	cat := activity.CategoryProductive
	if v := r.URL.Query().Get("category"); v != "" {
		parsed, ok := activity.ParseCategory(v)
		if !ok {
			writeError(w, http.StatusBadRequest,
				"unknown category: "+v)
			return
		}
		cat = parsed
	}

	users, _, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	ranking := analytics.AggregateUsage(bareSessions(users), cat)

	csvHeader(w, "usage", f.Range.From, f.Range.To)
	cw := csv.NewWriter(w)
	_ = WriteUsageCSV(cw, cat, ranking.Entries)
}
