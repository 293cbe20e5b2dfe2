package handlers

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// writeJSON encodes v as JSON and writes it to the response with the given
// HTTP status code. Content-Type is always set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// At this point headers are already sent; log but cannot change status.
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response with the given HTTP status code.
// The response body is {"error": "message"}.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// queryInt reads a non-negative integer query parameter. Missing values yield
// def; values above ceil are clamped.
func queryInt(r *http.Request, name string, def, ceil int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %q parameter: %w", name, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %q parameter: must not be negative", name)
	}
	if ceil > 0 && n > ceil {
		n = ceil
	}
	return n, nil
}

// parseIdentity extracts an article identity (64 hex characters) from a chi
// URL parameter.
func parseIdentity(r *http.Request, param string) (string, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return "", fmt.Errorf("missing URL parameter %q", param)
	}
	if len(raw) != 64 {
		return "", fmt.Errorf("invalid %q parameter: want 64 hex characters", param)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid %q parameter: %w", param, err)
	}
	return raw, nil
}
