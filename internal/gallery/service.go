// Package gallery implements the library, media, user and login operations.
// Every exported method takes the caller's identity (nil when anonymous) and
// checks it before touching storage.
package gallery

import (
	"time"

	"gallery/internal/blob"
	"gallery/internal/store"
)

// Options bounds uploads. MaxRequestSize below MaxFileSize is raised to
// MaxFileSize plus room for multipart framing.
type Options struct {
	MaxFileSize    int64
	MaxRequestSize int64
	AllowedTypes   []string
}

const multipartOverhead = 1 << 20

type Service struct {
	store        store.Store
	blobs        blob.Storage
	maxFileSize  int64
	maxRequest   int64
	allowedTypes map[string]bool
	now          func() time.Time
}

func New(st store.Store, blobs blob.Storage, opts Options) *Service {
	allowed := make(map[string]bool, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		allowed[t] = true
	}
	maxRequest := opts.MaxRequestSize
	if maxRequest < opts.MaxFileSize {
		maxRequest = opts.MaxFileSize + multipartOverhead
	}
	return &Service{
		store:        st,
		blobs:        blobs,
		maxFileSize:  opts.MaxFileSize,
		maxRequest:   maxRequest,
		allowedTypes: allowed,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// MaxRequestSize is the largest upload request body worth reading.
func (s *Service) MaxRequestSize() int64 { return s.maxRequest }
