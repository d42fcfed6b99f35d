package httpapi

import "net/http"

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelListResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

// handleListModels implements GET /v1/models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	byProvider := s.router.ListAvailableModelsByProvider()

	data := make([]modelObject, 0, len(s.router.ListAvailableModels()))
	for providerName, models := range byProvider {
		for _, m := range models {
			data = append(data, modelObject{ID: m, Object: "model", OwnedBy: providerName})
		}
	}
	writeJSON(w, http.StatusOK, modelListResponse{Object: "list", Data: data})
}
