// Package web serves the embedded browser client.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"gallery/internal/logging"
)

//go:embed static
var files embed.FS

// Handler serves index.html at "/" with a cache-busting version and the
// assets under /static/.
func Handler(version string) http.Handler {
	static, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	tmpl := template.Must(template.ParseFS(static, "index.html"))
	assets := http.StripPrefix("/static/", http.FileServer(http.FS(static)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/" || r.URL.Path == "/index.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := tmpl.Execute(w, map[string]string{"Version": version}); err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("failed to render index")
			}
		case strings.HasPrefix(r.URL.Path, "/static/") && r.URL.Path != "/static/index.html":
			assets.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
