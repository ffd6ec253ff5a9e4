package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"gallery/internal/auth"
	"gallery/internal/gallery"
	"gallery/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError renders err as {"error": message}. Failures with an underlying
// cause are logged here, once.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := gallery.AsError(err)
	status := e.Kind.Status()
	if e.Err != nil || status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": e.Message})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func success(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// queryID parses an integer query parameter. Missing or malformed values
// read as 0.
func queryID(r *http.Request, key string) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// caller returns the identity placed by the session middleware, or nil.
func caller(r *http.Request) *auth.Identity {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return &id
	}
	return nil
}
