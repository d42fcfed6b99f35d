package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/kevin-toles/llm-gateway/gwerrors"
)

// writeError converts err to the OpenAI-style {"error": {...}} envelope at
// the status StatusCodeOf maps its Kind to.
func writeError(w http.ResponseWriter, err error) {
	status := gwerrors.StatusCodeOf(err)
	body := ErrorBody{Error: ErrorDetail{Message: err.Error(), Type: errorType(status)}}
	writeJSON(w, status, body)
}

func errorType(status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return "invalid_request_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadGateway:
		return "provider_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusServiceUnavailable:
		return "unavailable_error"
	case http.StatusBadRequest:
		return "invalid_request_error"
	default:
		return "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
