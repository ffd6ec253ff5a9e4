package middleware

import (
	"net/http"

	"github.com/goccy/go-json"

	"gallery/internal/auth"
)

// Session resolves the caller's session into an auth.Identity on the request
// context. Requests without a valid session pass through unchanged; handlers
// decide whether that is acceptable.
func Session(sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := sessions.Load(r); ok {
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests that carry no identity with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
