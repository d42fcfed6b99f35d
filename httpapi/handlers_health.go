package httpapi

import (
	"net/http"

	"github.com/kevin-toles/llm-gateway/gwerrors"
)

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth implements GET /health: a pure liveness check, no
// dependency reached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

// handleReady implements GET /health/ready: readiness gated on the
// session store being reachable. A probe id that simply doesn't exist is
// treated as "store reachable" (KindSessionMissing); any other error
// (KindSessionStore, connection failures) fails readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
		return
	}

	_, err := s.sessions.Get(r.Context(), "__readiness_probe__")
	if err != nil && !gwerrors.IsSessionNotFound(err) {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
}
