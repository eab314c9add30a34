package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"labstock/internal/core"
	"labstock/internal/storage"
)

const maxWidgets = 50

func prefScope(r *http.Request) (orgID, userID string, err error) {
	orgID = strings.TrimSpace(r.URL.Query().Get("organizationId"))
	userID = strings.TrimSpace(r.URL.Query().Get("userId"))
	if orgID == "" || userID == "" {
		return "", "", core.Invalidf("organizationId and userId are required")
	}
	return orgID, userID, nil
}

func (s *Server) handleGetWidgetPrefs(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := prefScope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prefs, err := s.prefs.GetWidgetPrefs(r.Context(), orgID, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if prefs == nil {
		prefs = []storage.WidgetPref{}
	}
	s.writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutWidgetPrefs(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := prefScope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var prefs []storage.WidgetPref
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		s.writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(prefs) > maxWidgets {
		s.writeError(w, r, core.Invalidf("too many widgets (max %d)", maxWidgets))
		return
	}
	seen := map[string]struct{}{}
	for _, p := range prefs {
		if strings.TrimSpace(p.WidgetID) == "" {
			s.writeError(w, r, core.Invalidf("widget id must not be empty"))
			return
		}
		if _, dup := seen[p.WidgetID]; dup {
			s.writeError(w, r, core.Invalidf("duplicate widget id %q", p.WidgetID))
			return
		}
		seen[p.WidgetID] = struct{}{}
		if p.W <= 0 || p.H <= 0 || p.X < 0 || p.Y < 0 {
			s.writeError(w, r, core.Invalidf("invalid geometry for widget %q", p.WidgetID))
			return
		}
	}

	if err := s.prefs.PutWidgetPrefs(r.Context(), orgID, userID, prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prefs)
}
