package http

import (
	"net/http"
	"strings"

	"labstock/internal/core"
)

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rng, err := s.reports.ResolveRange(filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := cacheKey(filter, rng)
	if cached, ok := s.reportCache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.reports.Aggregate(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.reportCache.Set(key, result)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBudgetUsage(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("organizationId"))
	if orgID == "" {
		s.writeError(w, r, core.Invalidf("organizationId is required"))
		return
	}
	period, err := core.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	usage, err := s.reports.BudgetUsage(r.Context(), orgID, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, usage)
}
