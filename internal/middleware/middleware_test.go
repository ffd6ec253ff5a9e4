package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"gallery/internal/auth"
	"gallery/internal/logging"
	"gallery/internal/models"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("generated id %q, header %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "upstream-1" || rec.Header().Get("X-Request-ID") != "upstream-1" {
		t.Fatalf("upstream id not kept: %q", seen)
	}
}

func TestRequireAuth(t *testing.T) {
	called := false
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/uploads/x.jpg", nil))
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("status %d, called %v", rec.Code, called)
	}
	if !strings.Contains(rec.Body.String(), "Not authenticated") {
		t.Errorf("body = %s", rec.Body.String())
	}

	req := httptest.NewRequest("GET", "/uploads/x.jpg", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: 2, Role: models.RoleClient}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !called {
		t.Fatal("authenticated request rejected")
	}
}

func TestSessionMiddleware(t *testing.T) {
	sessions, err := auth.NewSessions(auth.SessionOptions{
		Dir:        t.TempDir(),
		Secret:     "0123456789abcdef0123456789abcdef",
		CookieName: "sid",
		MaxAge:     time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	login := httptest.NewRecorder()
	want := auth.Identity{UserID: 1, Username: "admin", Role: models.RoleAdmin}
	if err := sessions.Establish(login, httptest.NewRequest("POST", "/", nil), want); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	var got auth.Identity
	var ok bool
	h := Session(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = auth.IdentityFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if ok {
		t.Fatal("identity without cookie")
	}

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !ok || got != want {
		t.Fatalf("identity = %+v, %v", got, ok)
	}
}

func TestLoggingAndMetricsCaptureStatus(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Logging, Metrics)
	r.HandleFunc("/api/media", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/media", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	sw := wrap(httptest.NewRecorder())
	if wrap(sw) != sw {
		t.Error("wrap re-wrapped a statusWriter")
	}
}
