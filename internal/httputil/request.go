package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxBodyBytes bounds every JSON request body. Chat bundles with long
// histories are the largest payloads.
const maxBodyBytes = 10 << 20

// ParseJSON decodes JSON from the request body into the given destination.
// It limits the request body size to prevent abuse and provides clear error messages.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	// Requires w for proper 413 response
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
