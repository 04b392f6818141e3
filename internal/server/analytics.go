package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/trackview/trackview/internal/activity"
	"github.com/trackview/trackview/internal/analytics"
	"github.com/trackview/trackview/internal/db"
)

const (
	// Overview-style views default to the trailing week,
	// trend views to the trailing month.
	defaultSummaryDays = 7
	defaultTrendDays   = 30

	defaultUsageLimit = 10
)

// analyticsFilter carries the validated common query params.
type analyticsFilter struct {
	Range    analytics.DateRange
	Username string
}

// isValidDate checks that s is a well-formed YYYY-MM-DD string.
func isValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// defaultDateRange returns (from, to) defaulting to the last
// days days ending today.
func (s *Server) defaultDateRange(
	from, to string, days int,
) (string, string) {
	now := s.now().UTC()
	if to == "" {
		to = now.Format("2006-01-02")
	}
	if from == "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			t = now
		}
		from = t.AddDate(0, 0, -(days - 1)).
			Format("2006-01-02")
	}
	return from, to
}

// parseFilter extracts the common analytics params from a
// request, applying the given default window length.
func (s *Server) parseFilter(
	w http.ResponseWriter, r *http.Request, defaultDays int,
) (analyticsFilter, bool) {
	q := r.URL.Query()
	from, to := s.defaultDateRange(
		q.Get("from"), q.Get("to"), defaultDays,
	)

	if !isValidDate(from) || !isValidDate(to) {
		writeError(w, http.StatusBadRequest,
			"invalid date format: use YYYY-MM-DD")
		return analyticsFilter{}, false
	}
	if from > to {
		writeError(w, http.StatusBadRequest,
			"from must not be after to")
		return analyticsFilter{}, false
	}

	return analyticsFilter{
		Range:    analytics.DateRange{From: from, To: to},
		Username: q.Get("username"),
	}, true
}

// normOptions maps the configured mismatch handling onto
// normalization options.
func (s *Server) normOptions() activity.Options {
	opts := activity.Options{Tolerance: s.cfg.Tolerance}
	if s.cfg.TotalPolicy == "reject" {
		opts.TotalPolicy = activity.TotalPolicyReject
	}
	return opts
}

// loadSessions fetches the filtered documents and normalizes
// them into canonical sessions.
func (s *Server) loadSessions(
	ctx context.Context, f analyticsFilter,
) ([]activity.NormalizedUser, activity.Diagnostics, error) {
	docs, err := s.db.FetchUsers(ctx, db.UserFilter{
		Username: f.Username,
		From:     f.Range.From,
		To:       f.Range.To,
	})
	if err != nil {
		return nil, activity.Diagnostics{}, err
	}
	users, diag := activity.NormalizeDocuments(
		docs, s.normOptions(),
	)
	return users, diag, nil
}

// datedSessions flattens normalized users into one dated
// session stream.
func datedSessions(
	users []activity.NormalizedUser,
) []activity.DatedSession {
	var out []activity.DatedSession
	for _, u := range users {
		out = append(out, u.Sessions...)
	}
	return out
}

// bareSessions strips dates for usage aggregation.
func bareSessions(
	users []activity.NormalizedUser,
) []activity.Session {
	var out []activity.Session
	for _, u := range users {
		for _, ds := range u.Sessions {
			out = append(out, ds.Session)
		}
	}
	return out
}

// rollup computes per-user summaries over the filter range,
// seeding every known user so inactive ones still appear.
func (s *Server) rollup(
	ctx context.Context, f analyticsFilter,
	users []activity.NormalizedUser,
) (map[string]analytics.UserSummary, error) {
	var usernames []string
	if f.Username != "" {
		usernames = []string{f.Username}
	} else {
		var err error
		usernames, err = s.db.ListUsernames(ctx)
		if err != nil {
			return nil, err
		}
	}
	return analytics.RollupUsers(
		activity.Flatten(users), usernames, f.Range,
	)
}

func (s *Server) serveError(
	w http.ResponseWriter, err error,
) {
	if isContextError(err) {
		return
	}
	log.Printf("analytics error: %v", err)
	writeError(w, http.StatusInternalServerError,
		"internal server error")
}

func (s *Server) handleAnalyticsSummary(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultSummaryDays)
	if !ok {
		return
	}
	users, diag, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	summaries, err := s.rollup(r.Context(), f, users)
	if err != nil {
		s.serveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":        f.Range.From,
		"to":          f.Range.To,
		"kpis":        analytics.ComputeKPIs(summaries, nil),
		"users":       analytics.RankUsers(summaries),
		"diagnostics": diag,
	})
}

func (s *Server) handleAnalyticsKPIs(
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
	current, err := s.rollup(r.Context(), f, users)
	if err != nil {
		s.serveError(w, err)
		return
	}

	// The prior comparable period feeds the delta KPI. When
	// it cannot be derived the delta stays null rather
	// than a misleading zero.
	var prior map[string]analytics.UserSummary
	if priorRange, err := f.Range.PriorPeriod(); err == nil {
		pf := analyticsFilter{
			Range:    priorRange,
			Username: f.Username,
		}
		priorUsers, _, err := s.loadSessions(r.Context(), pf)
		if err != nil {
			s.serveError(w, err)
			return
		}
		prior, err = s.rollup(r.Context(), pf, priorUsers)
		if err != nil {
			s.serveError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK,
		analytics.ComputeKPIs(current, prior))
}

func (s *Server) handleAnalyticsActivity(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultTrendDays)
	if !ok {
		return
	}
	gran, ok := analytics.ParseGranularity(
		r.URL.Query().Get("granularity"),
	)
	if !ok {
		writeError(w, http.StatusBadRequest,
			"granularity must be hour, day, or week")
		return
	}

	users, _, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	buckets, err := analytics.AggregateIntervals(
		datedSessions(users), gran, f.Range,
	)
	if err != nil {
		s.serveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"granularity": gran,
		"buckets":     buckets,
	})
}

func (s *Server) handleAnalyticsHeatmap(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultTrendDays)
	if !ok {
		return
	}
	users, _, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	entries, levels, err := analytics.CalendarHeatmap(
		datedSessions(users), f.Range,
	)
	if err != nil {
		s.serveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"levels":  levels,
	})
}

func (s *Server) handleAnalyticsHourOfWeek(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultTrendDays)
	if !ok {
		return
	}
	users, _, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	cells, err := analytics.HourOfWeek(
		datedSessions(users), f.Range,
	)
	if err != nil {
		s.serveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cells": cells,
	})
}

func (s *Server) handleAnalyticsUsers(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultSummaryDays)
	if !ok {
		return
	}
	users, diag, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	summaries, err := s.rollup(r.Context(), f, users)
	if err != nil {
		s.serveError(w, err)
		return
	}

	resp := map[string]any{
		"users":       analytics.RankUsers(summaries),
		"diagnostics": diag,
	}

	// Per-user drilldown adds a zero-filled daily series.
	if f.Username != "" {
		daily, err := analytics.DailyStats(
			datedSessions(users), f.Range,
		)
		if err != nil {
			s.serveError(w, err)
			return
		}
		resp["daily"] = daily
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyticsUsage(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultSummaryDays)
	if !ok {
		return
	}
	q := r.URL.Query()

	cat := activity.CategoryProductive
	if v := q.Get("category"); v != "" {
		parsed, ok := activity.ParseCategory(v)
		if !ok {
			writeError(w, http.StatusBadRequest,
				"unknown category: "+v)
			return
		}
		cat = parsed
	}

	limit := defaultUsageLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest,
				"limit must be a positive integer")
			return
		}
		limit = n
	}

	users, _, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}
	ranking := analytics.AggregateUsage(bareSessions(users), cat)

	writeJSON(w, http.StatusOK, map[string]any{
		"category":  cat,
		"by_time":   ranking.TopByTime(limit),
		"by_visits": ranking.TopByVisits(limit),
	})
}
