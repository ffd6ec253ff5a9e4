package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gallery/internal/auth"
	"gallery/internal/middleware"
)

type RouterConfig struct {
	CORSOrigins     []string
	LoginRateLimit  int
	LoginRateWindow time.Duration
	Metrics         bool
	// MCP is mounted at /mcp behind session auth when non-nil.
	MCP http.Handler
	// Web serves the browser client for every path not matched above.
	Web http.Handler
}

// NewRouter wires every route and the middleware chain:
// request id, access log, CORS, then per-route metrics and session lookup.
func NewRouter(h *Handlers, sessions *auth.Sessions, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Metrics, middleware.Session(sessions))
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.NotFoundHandler = notFound

	r.HandleFunc("/healthz", HealthHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFound
	api.Handle("/auth", loginLimited(h, cfg))
	api.HandleFunc("/libraries", h.LibrariesHandler)
	api.HandleFunc("/media", h.MediaHandler)
	api.HandleFunc("/download", h.DownloadHandler)
	api.HandleFunc("/users", h.UsersHandler)

	r.Handle("/uploads/{filename}", middleware.RequireAuth(http.HandlerFunc(h.ServeUploadHandler))).
		Methods(http.MethodGet, http.MethodHead)

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", middleware.RequireAuth(cfg.MCP))
	}
	if cfg.Web != nil {
		r.PathPrefix("/").Handler(cfg.Web)
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return middleware.RequestID(middleware.Logging(corsHandler(r)))
}

// loginLimited rate limits login attempts per client IP. The other auth
// actions are not limited.
func loginLimited(h *Handlers, cfg RouterConfig) http.Handler {
	authHandler := http.HandlerFunc(h.AuthHandler)
	if cfg.LoginRateLimit <= 0 {
		return authHandler
	}
	limited := httprate.Limit(
		cfg.LoginRateLimit,
		cfg.LoginRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusTooManyRequests, "Too many login attempts")
		}),
	)(authHandler)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "login" {
			limited.ServeHTTP(w, r)
			return
		}
		authHandler.ServeHTTP(w, r)
	})
}
