package httputil

import (
	"encoding/json"
	"net/http"

	"mrilo/internal/domain/models"
)

// CORS headers attached to every chat envelope, including preflight answers.
const (
	AllowOrigin  = "*"
	AllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// SetCORSHeaders writes the static chat CORS headers
func SetCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", AllowOrigin)
	w.Header().Set("Access-Control-Allow-Headers", AllowHeaders)
}

// WriteEnvelope writes a chat envelope with its status and the CORS headers.
// Unlike RespondError, failures keep the {error} envelope shape.
func WriteEnvelope(w http.ResponseWriter, env models.Envelope) {
	status := env.Status
	if status == 0 {
		status = http.StatusOK
	}

	payload, err := json.Marshal(env)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"failed to encode response"}`)
	}

	SetCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}
