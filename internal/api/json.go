package api

import (
	"encoding/json"
	"net/http"

	"vrpengine/internal/vrperr"
)

// Problem represents an RFC7807 problem details response body. Code and Details
// carry the engine error taxonomy when the failure came from a boundary call.
type Problem struct {
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Status   int             `json:"status"`
	Detail   string          `json:"detail,omitempty"`
	Instance string          `json:"instance,omitempty"`
	Code     vrperr.Kind     `json:"code,omitempty"`
	Details  []vrperr.Detail `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw sends an already encoded JSON document.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeEngineError maps a boundary error payload onto a problem response.
func writeEngineError(w http.ResponseWriter, err error, instance string) {
	ve := vrperr.From(err)
	status := statusOf(ve.Kind)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    string(ve.Kind),
		Status:   status,
		Detail:   ve.Message,
		Instance: instance,
		Code:     ve.Kind,
		Details:  ve.Details,
	})
}

func statusOf(k vrperr.Kind) int {
	switch k {
	case vrperr.Validation:
		return http.StatusBadRequest
	case vrperr.MatrixMissing, vrperr.Serialization:
		return http.StatusUnprocessableEntity
	case vrperr.Cancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
