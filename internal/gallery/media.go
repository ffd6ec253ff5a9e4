package gallery

import (
	"context"
	"errors"
	"os"

	"gallery/internal/auth"
	"gallery/internal/blob"
	"gallery/internal/models"
	"gallery/internal/store"
)

// URLPrefix is where blobs are served inline.
const URLPrefix = "/uploads/"

func (s *Service) ListMedia(ctx context.Context, caller *auth.Identity, filter models.MediaFilter) ([]models.MediaItem, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	media, err := s.store.ListMedia(ctx, filter)
	if err != nil {
		return nil, storageFailure("Failed to load media", err)
	}
	items := make([]models.MediaItem, len(media))
	for i, m := range media {
		items[i] = models.MediaItem{Media: m, URL: URLPrefix + m.Filename}
	}
	return items, nil
}

// Topics returns the distinct topics in the order they first appear.
func (s *Service) Topics(ctx context.Context, caller *auth.Identity, libraryID int64) ([]string, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	media, err := s.store.ListMedia(ctx, models.MediaFilter{LibraryID: libraryID})
	if err != nil {
		return nil, storageFailure("Failed to load media", err)
	}
	seen := make(map[string]bool)
	topics := []string{}
	for _, m := range media {
		if !seen[m.Topic] {
			seen[m.Topic] = true
			topics = append(topics, m.Topic)
		}
	}
	return topics, nil
}

// DeleteMedia persists the record removal first, then drops the blob.
func (s *Service) DeleteMedia(ctx context.Context, caller *auth.Identity, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if id <= 0 {
		return newError(KindBadRequest, "Media ID required")
	}

	m, err := s.store.DeleteMedia(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, "Media not found")
	}
	if err != nil {
		return storageFailure("Failed to delete media", err)
	}
	s.removeBlob(ctx, m.Filename)
	return nil
}

// OpenMedia returns the record and an open handle on its blob for download.
// The caller closes the file.
func (s *Service) OpenMedia(ctx context.Context, caller *auth.Identity, id int64) (models.Media, *os.File, error) {
	if err := requireAuth(caller); err != nil {
		return models.Media{}, nil, err
	}
	if id <= 0 {
		return models.Media{}, nil, newError(KindBadRequest, "Media ID required")
	}

	m, err := s.store.GetMedia(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Media{}, nil, newError(KindNotFound, "Media not found")
	}
	if err != nil {
		return models.Media{}, nil, storageFailure("Failed to load media", err)
	}

	f, err := s.OpenBlob(caller, m.Filename)
	if err != nil {
		return models.Media{}, nil, err
	}
	return m, f, nil
}

// OpenBlob opens a stored file by its storage name.
func (s *Service) OpenBlob(caller *auth.Identity, filename string) (*os.File, error) {
	if err := requireAuth(caller); err != nil {
		return nil, err
	}
	f, err := s.blobs.Open(filename)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, newError(KindNotFound, "File not found")
	}
	if err != nil {
		return nil, storageFailure("Failed to open file", err)
	}
	return f, nil
}
