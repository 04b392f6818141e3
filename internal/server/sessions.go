package server

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/trackview/trackview/internal/activity"
	"github.com/trackview/trackview/internal/db"
)

const (
	defaultSessionLimit = 100
	maxSessionLimit     = 1000
)

// sessionView is the API shape of one canonical session.
type sessionView struct {
	Username   string         `json:"username"`
	Date       string         `json:"date"`
	SessionID  string         `json:"session_id"`
	StartTime  string         `json:"start_time"`
	EndTime    string         `json:"end_time"`
	Productive int            `json:"productive"`
	Neutral    int            `json:"neutral"`
	Wasted     int            `json:"wasted"`
	Idle       int            `json:"idle"`
	Total      int            `json:"total"`
	Shift      activity.Shift `json:"shift"`

	// Usage is only populated on the detail endpoint.
	Usage map[activity.Category]map[string]activity.UsageEntry `json:"usage,omitempty"`
}

func makeSessionView(
	username string, ds activity.DatedSession, withUsage bool,
) sessionView {
	v := sessionView{
		Username:   username,
		Date:       ds.Date,
		SessionID:  ds.Session.SessionID,
		StartTime:  ds.Session.StartTime,
		EndTime:    ds.Session.EndTime,
		Productive: ds.Session.ProductiveTime,
		Neutral:    ds.Session.NeutralTime,
		Wasted:     ds.Session.WastedTime,
		Idle:       ds.Session.IdleTime,
		Total:      ds.Session.TotalTime,
		Shift:      ds.Session.Shift,
	}
	if withUsage {
		v.Usage = ds.Session.Usage
	}
	return v
}

func clampLimit(n, def, ceiling int) int {
	if n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}

// handleListSessions serves the session browser: canonical
// sessions in the requested window, most recent first.
func (s *Server) handleListSessions(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := s.parseFilter(w, r, defaultSummaryDays)
	if !ok {
		return
	}

	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest,
				"limit must be a positive integer")
			return
		}
		limit = clampLimit(n, defaultSessionLimit, maxSessionLimit)
	}

	users, diag, err := s.loadSessions(r.Context(), f)
	if err != nil {
		s.serveError(w, err)
		return
	}

	var views []sessionView
	for _, u := range users {
		for _, ds := range u.Sessions {
			views = append(views,
				makeSessionView(u.Username, ds, false))
		}
	}
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime > b.StartTime
		}
		return a.SessionID < b.SessionID
	})

	total := len(views)
	if total > limit {
		views = views[:limit]
	}
	if views == nil {
		views = []sessionView{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":        f.Range.From,
		"to":          f.Range.To,
		"total":       total,
		"sessions":    views,
		"diagnostics": diag,
	})
}

// handleGetSession serves one session with its full usage
// breakdown. An optional username parameter narrows the lookup
// when collectors reuse session ids.
func (s *Server) handleGetSession(
	w http.ResponseWriter, r *http.Request,
) {
	id := r.PathValue("id")

	docs, err := s.db.FetchUsers(r.Context(), db.UserFilter{
		Username: r.URL.Query().Get("username"),
	})
	if err != nil {
		s.serveError(w, err)
		return
	}
	users, _ := activity.NormalizeDocuments(
		docs, s.normOptions(),
	)

	for _, u := range users {
		for _, ds := range u.Sessions {
			if ds.Session.SessionID == id {
				writeJSON(w, http.StatusOK,
					makeSessionView(u.Username, ds, true))
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "session not found")
}
