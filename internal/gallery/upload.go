package gallery

import (
	"context"
	"errors"
	"image"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"gallery/internal/auth"
	"gallery/internal/blob"
	"gallery/internal/logging"
	"gallery/internal/metrics"
	"gallery/internal/models"
	"gallery/internal/store"
	"gallery/internal/validation"
)

// Rejection reasons reported per skipped file.
const (
	ReasonUnsupportedType = "unsupported type"
	ReasonTooLarge        = "file too large"
	ReasonNotStored       = "could not be stored"
)

// UploadFile is one file from a multipart upload. Size is the size declared
// by the client; the bytes actually read are bounded separately.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type UploadRequest struct {
	LibraryID int64        `validate:"gt=0"`
	Topic     string       `validate:"notblank"`
	Files     []UploadFile `validate:"min=1"`
}

type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type UploadResult struct {
	Success  bool           `json:"success"`
	Files    []models.Media `json:"files"`
	Rejected []Rejection    `json:"rejected"`
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// extensions lists the file extensions accepted for each known media type.
// The first one replaces a client extension that does not match the
// declared type.
var extensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
	"video/mp4":  {".mp4", ".m4v"},
	"video/webm": {".webm"},
	"video/ogg":  {".ogv", ".ogg"},
}

// ContentTypeFor returns the media type a stored file is served as. Names
// whose extension is not a known media type are served as
// application/octet-stream.
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for typ, exts := range extensions {
		for _, e := range exts {
			if e == ext {
				return typ
			}
		}
	}
	return "application/octet-stream"
}

// storageName builds "<uuid>_<sanitized base><.ext>" from a client filename.
// For known media types the extension is forced to agree with contentType.
func storageName(original, contentType string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := filepath.Ext(base)
	stem := unsafeChars.ReplaceAllString(strings.TrimSuffix(base, ext), "")
	ext = unsafeChars.ReplaceAllString(ext, "")
	if ext == "." {
		ext = ""
	}
	if exts, ok := extensions[contentType]; ok && !slices.Contains(exts, strings.ToLower(ext)) {
		ext = exts[0]
	}
	return uuid.New().String() + "_" + stem + ext
}

// Upload stores every acceptable file and records them in one store write.
// Files with a disallowed type or over the size ceiling are skipped and
// listed in Rejected; they do not fail the request.
func (s *Service) Upload(ctx context.Context, caller *auth.Identity, req UploadRequest) (UploadResult, error) {
	if err := requireAdmin(caller); err != nil {
		return UploadResult{}, err
	}
	if err := validation.Struct(req); err != nil {
		return UploadResult{}, newError(KindBadRequest, "Files, library ID, and topic required")
	}
	if _, err := s.store.GetLibrary(ctx, req.LibraryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UploadResult{}, newError(KindBadRequest, "Library not found")
		}
		return UploadResult{}, storageFailure("Failed to load library", err)
	}

	result := UploadResult{Success: true, Files: []models.Media{}, Rejected: []Rejection{}}
	var pending []models.Media
	for _, f := range req.Files {
		m, reason := s.storeFile(ctx, f, req.Topic)
		if reason != "" {
			metrics.UploadedFiles.WithLabelValues(reason).Inc()
			result.Rejected = append(result.Rejected, Rejection{Name: f.Name, Reason: reason})
			continue
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		return result, nil
	}

	added, err := s.store.AddMedia(ctx, req.LibraryID, pending)
	if err != nil {
		for _, m := range pending {
			s.removeBlob(ctx, m.Filename)
		}
		if errors.Is(err, store.ErrLibraryMissing) {
			return UploadResult{}, newError(KindBadRequest, "Library not found")
		}
		return UploadResult{}, storageFailure("Failed to save media records", err)
	}

	for _, m := range added {
		metrics.UploadedFiles.WithLabelValues("accepted").Inc()
		metrics.UploadedBytes.Add(float64(m.Size))
	}
	result.Files = added
	logging.Ctx(ctx).Info().
		Int64("library_id", req.LibraryID).
		Int("accepted", len(added)).
		Int("rejected", len(result.Rejected)).
		Msg("media uploaded")
	return result, nil
}

// storeFile writes one file to blob storage. It returns a rejection reason
// instead of a record when the file is skipped.
func (s *Service) storeFile(ctx context.Context, f UploadFile, topic string) (models.Media, string) {
	if !s.allowedTypes[f.ContentType] {
		return models.Media{}, ReasonUnsupportedType
	}
	if f.Size > s.maxFileSize {
		return models.Media{}, ReasonTooLarge
	}

	rc, err := f.Open()
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("name", f.Name).Msg("failed to open upload part")
		return models.Media{}, ReasonNotStored
	}
	defer rc.Close()

	name := storageName(f.Name, f.ContentType)
	written, err := s.blobs.Save(rc, name, s.maxFileSize)
	if errors.Is(err, blob.ErrTooLarge) {
		return models.Media{}, ReasonTooLarge
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("name", f.Name).Msg("failed to store upload")
		return models.Media{}, ReasonNotStored
	}

	m := models.Media{
		Name:       f.Name,
		Filename:   name,
		Type:       models.KindForMIME(f.ContentType),
		Topic:      topic,
		UploadedAt: s.now(),
		Size:       written,
	}
	if m.Type == models.KindImage {
		m.Width, m.Height = s.probeDimensions(name)
	}
	return m, ""
}

// probeDimensions reads the image header. Undecodable images report 0x0.
func (s *Service) probeDimensions(name string) (int, int) {
	f, err := s.blobs.Open(name)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
