package server

import (
	"net/http"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/trackview/trackview/internal/timeutil"
)

// minAgentVersion is the oldest collector agent version whose
// exports this backend fully understands. Older agents still
// sync, but stats flags them for upgrade.
const minAgentVersion = "v1.2.0"

// outdatedVersions returns the versions below the supported
// floor, sorted ascending. Collectors report versions without
// the leading v, so normalize before comparing. Unparseable
// versions are flagged too, since an agent we cannot identify
// cannot be trusted to be current.
func outdatedVersions(versions map[string]int) []string {
	var out []string
	for v := range versions {
		canon := "v" + strings.TrimPrefix(v, "v")
		if !semver.IsValid(canon) ||
			semver.Compare(canon, minAgentVersion) < 0 {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Server) handleGetStats(
	w http.ResponseWriter, r *http.Request,
) {
	st, err := s.db.Stats(r.Context())
	if err != nil {
		s.serveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"store":           st,
		"outdated_agents": outdatedVersions(st.AgentVersions),
		"min_agent":       minAgentVersion,
		"last_sync":       timeutil.Ptr(s.engine.LastSync()),
	})
}

func (s *Server) handleListUsers(
	w http.ResponseWriter, r *http.Request,
) {
	names, err := s.db.ListUsernames(r.Context())
	if err != nil {
		s.serveError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": names,
	})
}

// handleTriggerSync kicks off a full sync in the background.
// Not timeout-wrapped: the response returns immediately while
// ingestion proceeds.
func (s *Server) handleTriggerSync(
	w http.ResponseWriter, _ *http.Request,
) {
	go s.engine.SyncAll()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "sync started",
	})
}

func (s *Server) handleSyncStatus(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, map[string]any{
		"last_sync": timeutil.Ptr(s.engine.LastSync()),
		"stats":     s.engine.LastSyncStats(),
	})
}
