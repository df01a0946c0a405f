package httpapi

import (
	"net/http"
)

func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	if err := s.probes.Liveness(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	report, err := s.probes.Readiness(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
