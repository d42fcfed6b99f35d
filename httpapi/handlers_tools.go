package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/message"
)

// handleListTools implements GET /v1/tools.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tools.List())
}

type toolExecuteRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// handleExecuteTool implements POST /v1/tools/execute: executes a single
// named tool outside the model's tool-call loop, e.g. for client-side
// testing of a tool's wiring.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req toolExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerrors.New(gwerrors.KindValidation, "invalid request body"))
		return
	}
	if !s.tools.Has(req.Name) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: ErrorDetail{Message: "unknown tool: " + req.Name, Type: "not_found_error"}})
		return
	}

	result := s.executor.Execute(r.Context(), message.ToolCall{ID: "manual", Name: req.Name, Arguments: req.Arguments})
	if result.IsError {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
