package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/gwlog"
	"github.com/kevin-toles/llm-gateway/orchestrator"
)

// handleChatCompletions implements POST /v1/chat/completions: request
// parsing, CMS proxy header computation, and blocking/streaming dispatch.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerrors.New(gwerrors.KindValidation, fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, gwerrors.New(gwerrors.KindValidation, "model and a non-empty messages array are required"))
		return
	}

	cmsMode := r.Header.Get("X-CMS-Mode")
	writeCMSHeaders(w, req.Model, req.Messages, s.cmsEnabled, cmsMode)

	orchReq := orchestrator.Request{
		CompletionRequest: *toCompletionRequest(req),
		SessionID:         req.SessionID,
	}

	if req.Stream {
		s.streamChatCompletion(w, r, orchReq)
		return
	}

	resp, err := s.orch.Complete(r.Context(), orchReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatCompletionResponse(resp))
}

// streamChatCompletion serves a streaming chat completion as Server-Sent
// Events. It resolves the provider directly (mirroring the non-streaming
// path's routing step) since Orchestrator.Complete only exposes the
// blocking contract; session history, compression, and the tool-call loop
// are Non-goals for the streaming path per the wire format's "all chunks
// share one id, last one carries finish_reason" contract, which assumes a
// single uninterrupted upstream stream.
func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, req orchestrator.Request) {
	backend, err := s.router.GetProvider(s.router.ResolveAlias(req.Model))
	if err != nil {
		writeError(w, err)
		return
	}

	chunks, err := backend.Stream(r.Context(), &req.CompletionRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	responseID := fmt.Sprintf("chatcmpl-%s", uuid.New().String())
	for chunk := range chunks {
		if chunk.Err != nil {
			s.log.Error(r.Context(), "stream chunk error", gwlog.F("error", chunk.Err))
			break
		}
		if err := writeSSEChunk(w, toStreamChunk(responseID, chunk)); err != nil {
			break
		}
	}
	writeSSEDone(w)
}
