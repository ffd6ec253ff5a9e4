package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"gallery/internal/auth"
	"gallery/internal/gallery"
	"gallery/internal/models"
)

// multipartMemory is how much of an upload is buffered in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

type Handlers struct {
	svc      *gallery.Service
	sessions *auth.Sessions
}

func NewHandlers(svc *gallery.Service, sessions *auth.Sessions) *Handlers {
	return &Handlers{svc: svc, sessions: sessions}
}

// AuthHandler serves /api/auth?action=login|logout|current.
func (h *Handlers) AuthHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "login":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.login(w, r)
	case "logout":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.sessions.Destroy(w, r)
		success(w)
	case "current":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		id, err := h.svc.CurrentUser(caller(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": id.User()})
	default:
		writeMessage(w, http.StatusNotFound, "Action not found")
	}
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var creds gallery.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "Username and password required")
		return
	}
	id, err := h.svc.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.sessions.Establish(w, r, id); err != nil {
		writeError(w, r, &gallery.Error{Kind: gallery.KindStorageFailure, Message: "Failed to create session", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": id.User()})
}

func (h *Handlers) LibrariesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		libs, err := h.svc.ListLibraries(r.Context(), caller(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, libs)

	case http.MethodPost:
		// A malformed body reaches the service as empty input so that
		// authorization is still decided first.
		var in gallery.LibraryInput
		if err := decodeJSON(r, &in); err != nil {
			in = gallery.LibraryInput{}
		}
		lib, err := h.svc.CreateLibrary(r.Context(), caller(r), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "library": lib})

	case http.MethodDelete:
		if err := h.svc.DeleteLibrary(r.Context(), caller(r), queryID(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		success(w)

	default:
		methodNotAllowed(w)
	}
}

// MediaHandler serves listing, upload and deletion, and ?action=topics.
func (h *Handlers) MediaHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") == "topics" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		topics, err := h.svc.Topics(r.Context(), caller(r), queryID(r, "library"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, topics)
		return
	}

	switch r.Method {
	case http.MethodGet:
		filter := models.MediaFilter{
			LibraryID: queryID(r, "library"),
			Topic:     r.URL.Query().Get("topic"),
		}
		items, err := h.svc.ListMedia(r.Context(), caller(r), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		h.upload(w, r)

	case http.MethodDelete:
		if err := h.svc.DeleteMedia(r.Context(), caller(r), queryID(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		success(w)

	default:
		methodNotAllowed(w)
	}
}

// upload refuses non-admins before reading the body, and caps the body at
// the service's request limit.
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequireAdmin(caller(r)); err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxRequestSize())

	var req gallery.UploadRequest
	err := r.ParseMultipartForm(multipartMemory)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusBadRequest, "Upload too large")
		return
	}
	if err == nil {
		defer r.MultipartForm.RemoveAll()
		req.LibraryID, _ = strconv.ParseInt(r.FormValue("libraryId"), 10, 64)
		req.Topic = r.FormValue("topic")
		for _, key := range []string{"files[]", "files"} {
			for _, fh := range r.MultipartForm.File[key] {
				req.Files = append(req.Files, uploadFile(fh))
			}
		}
	}

	res, err := h.svc.Upload(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func uploadFile(fh *multipart.FileHeader) gallery.UploadFile {
	return gallery.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (h *Handlers) UsersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := h.svc.ListUsers(r.Context(), caller(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)

	case http.MethodPost:
		var in gallery.UserInput
		if err := decodeJSON(r, &in); err != nil {
			in = gallery.UserInput{}
		}
		u, err := h.svc.CreateUser(r.Context(), caller(r), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})

	case http.MethodDelete:
		if err := h.svc.DeleteUser(r.Context(), caller(r), queryID(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		success(w)

	default:
		methodNotAllowed(w)
	}
}

// DownloadHandler streams a media file as an attachment under its original name.
func (h *Handlers) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	m, f, err := h.svc.OpenMedia(r.Context(), caller(r), queryID(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", contentDisposition(m.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

// contentDisposition quotes plain ASCII names as-is and falls back to RFC 2231
// encoding for anything else.
func contentDisposition(name string) string {
	plain := name != ""
	for _, c := range name {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			plain = false
			break
		}
	}
	if plain {
		return `attachment; filename="` + name + `"`
	}
	if d := mime.FormatMediaType("attachment", map[string]string{"filename": name}); d != "" {
		return d
	}
	return "attachment; filename=\"" + strings.Map(func(c rune) rune {
		if c < 0x20 || c == '"' || c == '\\' {
			return '_'
		}
		return c
	}, name) + "\""
}

// ServeUploadHandler serves a stored file inline for the gallery view. The
// content type comes from the stored name, never from sniffing the bytes.
func (h *Handlers) ServeUploadHandler(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.OpenBlob(caller(r), mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", gallery.ContentTypeFor(fi.Name()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
