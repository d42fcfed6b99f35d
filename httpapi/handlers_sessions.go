package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kevin-toles/llm-gateway/gwerrors"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleCreateSession implements POST /v1/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.CreatedAt.Add(s.sessions.TTL()),
	})
}

// handleGetSession implements GET /v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.UpdatedAt.Add(s.sessions.TTL()),
	})
}

// handleDeleteSession implements DELETE /v1/sessions/{id}, idempotent per
// the documented contract.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		if !gwerrors.IsSessionNotFound(err) {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
