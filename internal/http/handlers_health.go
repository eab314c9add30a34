package http

import "net/http"

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz verifies database reachability before reporting ready.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unreachable"})
			return
		}
	}

	requests, avgMicros := s.tracer.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"requests":           requests,
		"avg_duration_us":    avgMicros,
		"report_cache_items": s.reportCache.Size(),
	})
}
