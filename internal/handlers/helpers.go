package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/nuntius/internal/common"
)

// correlationHeader carries the request correlation id on every response
const correlationHeader = "X-Correlation-ID"

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// errorResponse is the error envelope returned to API clients
type errorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeError maps an error kind to its HTTP status and writes the envelope
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	writeErrorStatus(w, r, err, statusForKind(kind))
}

// writeErrorStatus writes the error envelope with an explicit status
func writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	correlationID := w.Header().Get(correlationHeader)
	if correlationID == "" {
		correlationID = r.Header.Get(correlationHeader)
	}
	writeJSON(w, status, errorResponse{
		Error:         err.Error(),
		Kind:          string(common.KindOf(err)),
		CorrelationID: correlationID,
	})
}

// statusForKind maps the error taxonomy to HTTP statuses
func statusForKind(kind common.ErrorKind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindStateViolation:
		return http.StatusBadRequest
	case common.KindDuplicate:
		return http.StatusConflict
	case common.KindRateLimit:
		return http.StatusTooManyRequests
	case common.KindTimeout:
		return http.StatusGatewayTimeout
	case common.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON binds a request body, rejecting unknown fields
func decodeJSON(r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return common.WrapError(common.KindValidation, "invalid request body", err)
	}
	return nil
}

// methodNotAllowed writes a 405 response
func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
