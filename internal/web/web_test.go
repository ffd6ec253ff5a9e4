package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	h := Handler("12345")

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/", http.StatusOK, "app.js?v=12345"},
		{"/static/app.js", http.StatusOK, "restoreSession"},
		{"/static/style.css", http.StatusOK, "--accent"},
		{"/static/missing.js", http.StatusNotFound, ""},
		{"/elsewhere", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}
