package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"gallery/internal/logging"
)

// RequestID assigns each request an id, echoes it in X-Request-ID and stores
// it in the context for logging.Ctx. An id sent by an upstream proxy is kept.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), requestID)))
	})
}
